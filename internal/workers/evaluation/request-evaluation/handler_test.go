// internal/workers/evaluation/request-evaluation/handler_test.go
package requestevaluation

import (
	"testing"

	"scholarship-workers/internal/common/config"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/workers/workertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Execute_ReturnsPreview(t *testing.T) {
	env := workertest.New(t)
	env.PublishedCall(2)
	handler := NewHandler(LoadConfig(config.WorkerConfig{}), nil, env.Evaluation, env.Log)
	app := env.Received(t, "stu-1")

	out, err := handler.Execute(workertest.DirectorCtx(), &Input{ApplicationID: app.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, out.PreviewID)
	assert.Empty(t, out.Scores.CheckBounds())
	assert.InDelta(t, out.Scores.Socioeconomic+out.Scores.Academic, out.Scores.Total, 1e-9)
	assert.NotEmpty(t, out.ModelVersion)
	assert.NotEmpty(t, out.ExpiresAt)

	_, err = handler.Execute(workertest.DirectorCtx(), &Input{ApplicationID: app.ID})
	assert.ErrorIs(t, err, errors.ErrEvaluationInProgress)
}

func TestHandler_Execute_Rejections(t *testing.T) {
	env := workertest.New(t)
	env.PublishedCall(2)
	handler := NewHandler(LoadConfig(config.WorkerConfig{}), nil, env.Evaluation, env.Log)
	draft := env.Draft(t, "stu-1")

	_, err := handler.Execute(workertest.DirectorCtx(), &Input{ApplicationID: draft.ID})
	assert.ErrorIs(t, err, errors.ErrInvalidApplicationState)

	_, err = handler.Execute(workertest.ApplicantCtx("stu-1"), &Input{ApplicationID: draft.ID})
	assert.ErrorIs(t, err, errors.ErrForbidden)

	_, err = handler.Execute(workertest.DirectorCtx(), &Input{})
	assert.ErrorIs(t, err, errors.ErrValidationFailed)
}
