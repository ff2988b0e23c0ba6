// internal/workers/evaluation/accept-evaluation/handler_test.go
package acceptevaluation

import (
	"context"
	"testing"

	"scholarship-workers/internal/common/config"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/workers/workertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Execute_PersistsPreviewScores(t *testing.T) {
	env := workertest.New(t)
	env.PublishedCall(2)
	handler := NewHandler(LoadConfig(config.WorkerConfig{}), nil, env.Evaluation, env.Log)
	app := env.Received(t, "stu-1")
	preview, err := env.Evaluation.RequestEvaluation(workertest.DirectorCtx(), app.ID)
	require.NoError(t, err)

	out, err := handler.Execute(workertest.DirectorCtx(), &Input{ApplicationID: app.ID, PreviewID: preview.ID})
	require.NoError(t, err)
	assert.Equal(t, preview.Result.Scores, out.Scores)
	assert.NotEmpty(t, out.EvaluationID)

	stored, err := env.Store.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationEvaluated, stored.State)
	require.NotNil(t, stored.Score)
	assert.Equal(t, preview.Result.Scores, *stored.Score)

	_, err = handler.Execute(workertest.DirectorCtx(), &Input{ApplicationID: app.ID, PreviewID: preview.ID})
	assert.ErrorIs(t, err, errors.ErrPreviewExpiredOrNotFound, "a preview is consumed once")
}

func TestHandler_Execute_UnknownPreview(t *testing.T) {
	env := workertest.New(t)
	env.PublishedCall(2)
	handler := NewHandler(LoadConfig(config.WorkerConfig{}), nil, env.Evaluation, env.Log)
	app := env.Received(t, "stu-1")

	_, err := handler.Execute(workertest.DirectorCtx(), &Input{ApplicationID: app.ID, PreviewID: "nope"})
	assert.ErrorIs(t, err, errors.ErrPreviewExpiredOrNotFound)

	_, err = handler.Execute(workertest.DirectorCtx(), &Input{ApplicationID: app.ID})
	assert.ErrorIs(t, err, errors.ErrValidationFailed)
}
