// internal/services/evaluation/batch.go
package evaluation

import (
	"context"
	"sort"
	"sync"
	"time"

	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/metrics"
	"scholarship-workers/internal/common/observability"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type batchItem struct {
	app    models.Application
	record *models.EvaluationRecord
	err    error
}

// EvaluateBatch scores every RECEIVED application of the call and auto-accepts each preview.
// Applications already EVALUATED or later are not selected, so re-running is safe.
func (w *Workflow) EvaluateBatch(ctx context.Context, callID string) (*models.BatchEvaluationResult, error) {
	actor, err := requireEvaluator(ctx)
	if err != nil {
		return nil, err
	}
	call, err := w.calls.GetCall(ctx, callID)
	if err != nil {
		return nil, repository.Translate(err, "get call", "call", callID)
	}
	if !call.Evaluable() {
		return nil, errors.NewInvalidCallStateError(call.ID, string(call.State))
	}
	apps, err := w.apps.ListByCallAndState(ctx, callID, models.ApplicationReceived)
	if err != nil {
		return nil, repository.Translate(err, "list received applications", "call", callID)
	}

	ctx, span := w.tracing.StartSpan(ctx, "evaluation.batch",
		attribute.String("call.id", callID),
		attribute.Int("batch.size", len(apps)),
	)
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	items := make([]batchItem, len(apps))
	sem := make(chan struct{}, w.settings.BatchConcurrency)
	var wg sync.WaitGroup
	for i := range apps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			app := apps[i]
			record, err := w.evaluateItem(ctx, call, &app, actor.ID)
			items[i] = batchItem{app: app, record: record, err: err}
		}(i)
	}
	wg.Wait()

	result := rank(callID, items)
	result.Duration = time.Since(start)

	w.logger.Info("batch evaluation completed", map[string]interface{}{
		"callId":     callID,
		"processed":  result.Processed,
		"succeeded":  result.Succeeded,
		"failed":     result.Failed,
		"durationMs": result.Duration.Milliseconds(),
	})
	w.audit.Record(ctx, models.AuditBatchEvaluationComplete, "call", callID, actor.ID, map[string]interface{}{
		"processed": result.Processed,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})
	return result, nil
}

// evaluateItem runs one application under its own timeout and span. Its failure never touches the others.
func (w *Workflow) evaluateItem(ctx context.Context, call *models.Call, app *models.Application, actorID string) (record *models.EvaluationRecord, err error) {
	ctx, cancel := context.WithTimeout(ctx, w.settings.BatchItemTimeout)
	defer cancel()

	ctx, span := w.tracing.StartSpan(ctx, "evaluation.batch_item", attribute.String("application.id", app.ID))
	defer func() {
		observability.EndSpan(span, err)
		outcome := "accepted"
		if err != nil {
			outcome = "error"
		}
		metrics.Evaluations.WithLabelValues("batch", outcome).Inc()
	}()

	preview, err := w.score(ctx, app, call, actorID)
	if err != nil {
		return nil, err
	}
	record = preview.Record(uuid.NewString(), actorID, models.SourceBatch, w.now().UTC())
	ok, err := w.evals.CommitEvaluation(ctx, record, nil)
	if err != nil || !ok {
		w.discard(app.ID, preview.ID)
		if err != nil {
			return nil, repository.Translate(err, "commit evaluation", "application", app.ID)
		}
		current, gErr := w.apps.GetApplication(ctx, app.ID)
		if gErr != nil {
			return nil, repository.Translate(gErr, "get application", "application", app.ID)
		}
		return nil, errors.NewInvalidApplicationStateError(app.ID, string(current.State), string(models.ApplicationReceived))
	}
	w.discard(app.ID, preview.ID)
	return record, nil
}

// rank orders successes by total descending, then earliest submission, then id.
func rank(callID string, items []batchItem) *models.BatchEvaluationResult {
	result := &models.BatchEvaluationResult{CallID: callID, Processed: len(items)}
	for _, item := range items {
		if item.err != nil {
			result.Errors = append(result.Errors, models.ItemOutcome{
				ApplicationID: item.app.ID,
				Status:        models.ItemFailed,
				State:         item.app.State,
				ErrorCode:     string(errors.As(item.err).Code),
				Error:         item.err.Error(),
			})
			continue
		}
		var submitted time.Time
		if item.app.SubmittedAt != nil {
			submitted = *item.app.SubmittedAt
		}
		result.Ranking = append(result.Ranking, models.RankedEvaluation{
			ApplicationID: item.app.ID,
			EvaluationID:  item.record.ID,
			Scores:        item.record.Scores,
			Recommend:     item.record.Recommendation,
			SubmittedAt:   submitted,
		})
	}

	sort.SliceStable(result.Ranking, func(i, j int) bool {
		a, b := result.Ranking[i], result.Ranking[j]
		if a.Scores.Total != b.Scores.Total {
			return a.Scores.Total > b.Scores.Total
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ApplicationID < b.ApplicationID
	})
	for i := range result.Ranking {
		result.Ranking[i].Rank = i + 1
	}
	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].ApplicationID < result.Errors[j].ApplicationID })

	result.Succeeded = len(result.Ranking)
	result.Failed = len(result.Errors)
	return result
}
