// internal/workers/applications/observe-application/handler_test.go
package observeapplication

import (
	"testing"

	"scholarship-workers/internal/common/config"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/workers/workertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Execute_RemembersPriorState(t *testing.T) {
	env := workertest.New(t)
	env.PublishedCall(2)
	handler := NewHandler(LoadConfig(config.WorkerConfig{}), nil, env.Applications, env.Log)
	app := env.Received(t, "stu-1")

	out, err := handler.Execute(workertest.DirectorCtx(), &Input{ApplicationID: app.ID, Note: " missing payslip "})
	require.NoError(t, err)
	assert.Equal(t, "OBSERVED", out.ApplicationState)
	assert.Equal(t, "RECEIVED", out.PriorState)

	stored, err := env.Store.GetApplication(workertest.DirectorCtx(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, "missing payslip", stored.ObservationNote)

	_, err = handler.Execute(workertest.DirectorCtx(), &Input{ApplicationID: app.ID})
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition, "already observed")
}

func TestHandler_Execute_ApplicantCannotObserve(t *testing.T) {
	env := workertest.New(t)
	env.PublishedCall(2)
	handler := NewHandler(LoadConfig(config.WorkerConfig{}), nil, env.Applications, env.Log)
	app := env.Draft(t, "stu-1")

	_, err := handler.Execute(workertest.ApplicantCtx("stu-1"), &Input{ApplicationID: app.ID})
	assert.ErrorIs(t, err, errors.ErrForbidden)
}
