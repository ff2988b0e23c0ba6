// internal/workers/applications/submit-application/handler_test.go
package submitapplication

import (
	"testing"

	"scholarship-workers/internal/common/config"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/services/applications"
	"scholarship-workers/internal/workers/workertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Execute_ReservesQuota(t *testing.T) {
	env := workertest.New(t)
	env.PublishedCall(1)
	handler := NewHandler(LoadConfig(config.WorkerConfig{}), nil, env.Applications, env.Log)
	app := env.Draft(t, "stu-1")

	out, err := handler.Execute(workertest.ApplicantCtx("stu-1"), &Input{ApplicationID: app.ID})
	require.NoError(t, err)
	assert.Equal(t, "RECEIVED", out.ApplicationState)
	assert.NotEmpty(t, out.QuotaHandleID)
	assert.NotEmpty(t, out.SubmittedAt)

	q, _ := env.Store.Quota("q-food")
	assert.Equal(t, 1, q.Reserved)

	_, err = handler.Execute(workertest.ApplicantCtx("stu-1"), &Input{ApplicationID: app.ID})
	assert.ErrorIs(t, err, errors.ErrInvalidApplicationState)
}

func TestHandler_Execute_IncompleteAndExhausted(t *testing.T) {
	env := workertest.New(t)
	env.PublishedCall(1)
	handler := NewHandler(LoadConfig(config.WorkerConfig{}), nil, env.Applications, env.Log)

	bare, err := env.Applications.Create(workertest.ApplicantCtx("stu-1"),
		applications.CreateRequest{CallID: workertest.CallID, ScholarshipType: "FOOD", Faculty: "LAW"})
	require.NoError(t, err)
	_, err = handler.Execute(workertest.ApplicantCtx("stu-1"), &Input{ApplicationID: bare.ID})
	assert.ErrorIs(t, err, errors.ErrIncompleteApplication)

	first := env.Draft(t, "stu-2")
	second := env.Draft(t, "stu-3")
	_, err = handler.Execute(workertest.ApplicantCtx("stu-2"), &Input{ApplicationID: first.ID})
	require.NoError(t, err)
	_, err = handler.Execute(workertest.ApplicantCtx("stu-3"), &Input{ApplicationID: second.ID})
	assert.ErrorIs(t, err, errors.ErrQuotaExhausted)

	_, err = handler.Execute(workertest.ApplicantCtx("stu-1"), &Input{})
	assert.ErrorIs(t, err, errors.ErrValidationFailed)
}
