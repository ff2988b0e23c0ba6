// internal/workers/evaluation/evaluate-batch/handler_test.go
package evaluatebatch

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

func TestHandler_Execute_RanksReceivedApplications(t *testing.T) {
	env := workertest.New(t)
	env.PublishedCall(5)
	handler := NewHandler(LoadConfig(config.WorkerConfig{}), nil, env.Evaluation, env.Log)
	for _, id := range []string{"stu-1", "stu-2", "stu-3"} {
		env.Received(t, id)
	}
	env.SetCallState(models.CallClosed)

	out, err := handler.Execute(workertest.DirectorCtx(), &Input{CallID: workertest.CallID})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Processed)
	assert.Equal(t, 3, out.Succeeded)
	assert.False(t, out.HasPartialFailure)
	require.Len(t, out.Ranking, 3)
	assert.Len(t, out.RankedIDs, 3)
	for i, r := range out.Ranking {
		assert.Equal(t, i+1, r.Rank)
		assert.Equal(t, r.ApplicationID, out.RankedIDs[i])
	}

	evaluated, err := env.Store.ListByCallAndState(context.Background(), workertest.CallID, models.ApplicationEvaluated)
	require.NoError(t, err)
	assert.Len(t, evaluated, 3)

	again, err := handler.Execute(workertest.DirectorCtx(), &Input{CallID: workertest.CallID})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Processed)
}

func TestHandler_Execute_Rejections(t *testing.T) {
	env := workertest.New(t)
	env.PublishedCall(5)
	handler := NewHandler(LoadConfig(config.WorkerConfig{}), nil, env.Evaluation, env.Log)

	_, err := handler.Execute(workertest.DirectorCtx(), &Input{})
	assert.ErrorIs(t, err, errors.ErrValidationFailed)

	_, err = handler.Execute(workertest.ApplicantCtx("stu-1"), &Input{CallID: workertest.CallID})
	assert.ErrorIs(t, err, errors.ErrForbidden)

	env.SetCallState(models.CallDraft)
	_, err = handler.Execute(workertest.DirectorCtx(), &Input{CallID: workertest.CallID})
	assert.ErrorIs(t, err, errors.ErrInvalidCallState)
}
