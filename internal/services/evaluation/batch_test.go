// internal/services/evaluation/batch_test.go
package evaluation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateBatch_RanksByScoreThenSubmission(t *testing.T) {
	scorer := tableScorer{
		scores: map[string]models.Scores{
			"a": models.NewScores(63, 27), // 90, submitted last
			"b": models.NewScores(40, 20), // 60
			"c": models.NewScores(63, 27), // 90, submitted first
			"d": models.NewScores(25, 15), // 40
		},
		fail: map[string]error{"e": errors.NewScoringServiceFailedError(fmt.Errorf("model unavailable"))},
	}
	f := newFixture(t, scorer, Settings{BatchConcurrency: 2})
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	f.received("a", base.Add(3*time.Hour))
	f.received("b", base.Add(1*time.Hour))
	f.received("c", base)
	f.received("d", base.Add(2*time.Hour))
	f.received("e", base.Add(4*time.Hour))
	f.store.PutApplication(&models.Application{ID: "done", CallID: "call-1", ApplicantID: "u-done", State: models.ApplicationEvaluated})

	result, err := f.workflow.EvaluateBatch(directorCtx(), "call-1")
	require.NoError(t, err)

	assert.Equal(t, 5, result.Processed, "already evaluated applications are skipped")
	assert.Equal(t, 4, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	var order []string
	var totals []float64
	for i, r := range result.Ranking {
		assert.Equal(t, i+1, r.Rank)
		order = append(order, r.ApplicationID)
		totals = append(totals, r.Scores.Total)
	}
	assert.Equal(t, []string{"c", "a", "b", "d"}, order)
	assert.Equal(t, []float64{90, 90, 60, 40}, totals)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "e", result.Errors[0].ApplicationID)
	assert.Equal(t, string(errors.ErrCodeScoringServiceFailed), result.Errors[0].ErrorCode)

	for _, id := range []string{"a", "b", "c", "d"} {
		app, _ := f.store.GetApplication(context.Background(), id)
		assert.Equal(t, models.ApplicationEvaluated, app.State, id)
		evals, _ := f.store.ListEvaluations(context.Background(), id)
		require.Len(t, evals, 1)
		assert.Equal(t, models.SourceBatch, evals[0].Source)
	}
	e, _ := f.store.GetApplication(context.Background(), "e")
	assert.Equal(t, models.ApplicationReceived, e.State)

	rerun, err := f.workflow.EvaluateBatch(directorCtx(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, 1, rerun.Processed, "only the failed application is retried")
	assert.Empty(t, rerun.Ranking)
}

func TestEvaluateBatch_ItemTimeoutIsPerItem(t *testing.T) {
	f := newFixture(t, tableScorer{block: true}, Settings{BatchItemTimeout: 20 * time.Millisecond})
	f.received("a", f.clock)
	f.received("b", f.clock)

	result, err := f.workflow.EvaluateBatch(directorCtx(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	for _, item := range result.Errors {
		assert.Equal(t, string(errors.ErrCodeScoringTimeout), item.ErrorCode)
	}
}

func TestEvaluateBatch_RequiresEvaluableCall(t *testing.T) {
	f := newFixture(t, tableScorer{}, Settings{})
	f.store.PutCall(&models.Call{ID: "call-1", State: models.CallDraft})

	_, err := f.workflow.EvaluateBatch(directorCtx(), "call-1")
	assert.ErrorIs(t, err, errors.ErrInvalidCallState)
}
