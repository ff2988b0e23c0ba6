// internal/workers/applications/create-application/handler_test.go
package createapplication

import (
	"testing"

	"scholarship-workers/internal/common/config"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/workers/workertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Execute_CreatesDraft(t *testing.T) {
	env := workertest.New(t)
	env.PublishedCall(2)
	handler := NewHandler(LoadConfig(config.WorkerConfig{}), nil, env.Applications, env.Log)

	input := &Input{CallID: workertest.CallID, ScholarshipType: "FOOD", Faculty: "ENGINEERING"}
	out, err := handler.Execute(workertest.ApplicantCtx("stu-1"), input)
	require.NoError(t, err)
	assert.NotEmpty(t, out.ApplicationID)
	assert.Equal(t, string(models.ApplicationDraft), out.ApplicationState)
	assert.Equal(t, "stu-1", out.ApplicantID)

	_, err = handler.Execute(workertest.ApplicantCtx("stu-1"), input)
	assert.ErrorIs(t, err, errors.ErrDuplicateApplication)
}

func TestHandler_Execute_Rejections(t *testing.T) {
	env := workertest.New(t)
	env.PublishedCall(2)
	handler := NewHandler(LoadConfig(config.WorkerConfig{}), nil, env.Applications, env.Log)

	_, err := handler.Execute(workertest.ApplicantCtx("stu-1"), &Input{CallID: workertest.CallID, Faculty: "LAW"})
	assert.ErrorIs(t, err, errors.ErrValidationFailed)

	_, err = handler.Execute(workertest.ApplicantCtx("stu-1"), &Input{CallID: workertest.CallID, ScholarshipType: "HOUSING", Faculty: "LAW"})
	assert.ErrorIs(t, err, errors.ErrQuotaExhausted, "no HOUSING quota exists")

	env.SetCallState(models.CallPaused)
	_, err = handler.Execute(workertest.ApplicantCtx("stu-2"), &Input{CallID: workertest.CallID, ScholarshipType: "FOOD", Faculty: "LAW"})
	assert.ErrorIs(t, err, errors.ErrCallNotAcceptingSubmissions)
}
