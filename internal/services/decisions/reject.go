// internal/services/decisions/reject.go
package decisions

import (
	"context"
	"strings"

	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/metrics"
	"scholarship-workers/internal/models"
)

// RejectRemaining rejects each EVALUATED application with the given reason and releases its reservation.
func (e *Engine) RejectRemaining(ctx context.Context, applicationIDs []string, reason string) (*models.BatchResult, error) {
	actor, err := requireDecider(ctx)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errors.NewValidationError("a rejection reason is required")
	}
	ids := uniqueIDs(applicationIDs)
	if len(ids) == 0 {
		return nil, errors.NewValidationError("applicationIds must not be empty")
	}

	result := &models.BatchResult{Items: make([]models.ItemOutcome, 0, len(ids))}
	for _, id := range ids {
		item := e.rejectOne(ctx, id, reason, actor.ID)
		outcome := "rejected"
		switch {
		case item.Status == models.ItemFailed:
			outcome = "error"
		case item.AlreadyApplied:
			outcome = "already_applied"
		}
		metrics.DecisionItems.WithLabelValues("reject", outcome).Inc()
		result.Add(item)
	}

	e.finish(ctx, "reject", actor.ID, result, map[string]interface{}{"reason": reason})
	return result, nil
}

func (e *Engine) rejectOne(ctx context.Context, id, reason, actorID string) models.ItemOutcome {
	app, err := e.get(ctx, id)
	if err != nil {
		return failed(id, "", err)
	}

	alreadyRejected := app.State == models.ApplicationRejected
	if !alreadyRejected {
		if app.State != models.ApplicationEvaluated {
			return failed(id, app.State,
				errors.NewInvalidApplicationStateError(id, string(app.State), string(models.ApplicationEvaluated)))
		}
		ok, err := e.move(ctx, app, models.ApplicationEvaluated, models.ApplicationRejected, &reason)
		if err != nil {
			return failed(id, app.State, err)
		}
		if !ok {
			current, err := e.get(ctx, id)
			if err != nil {
				return failed(id, "", err)
			}
			return failed(id, current.State,
				errors.NewInvalidApplicationStateError(id, string(current.State), string(models.ApplicationEvaluated)))
		}
	}

	// Release after the state change so a concurrent approval cannot be starved of its reservation.
	// Re-running on a REJECTED application retries a release that failed before.
	if err := e.releaseDetached(ctx, app.QuotaHandleID); err != nil {
		e.logger.Error("application rejected but reservation not released", map[string]interface{}{
			"applicationId": id,
			"quotaHandleId": app.QuotaHandleID,
			"error":         err.Error(),
		})
		return failed(id, models.ApplicationRejected, err)
	}

	item := succeeded(id, models.ApplicationRejected)
	if alreadyRejected {
		item.AlreadyApplied = true
		return item
	}
	e.notify(ctx, app, models.ApplicationRejected, reason, actorID)
	return item
}
