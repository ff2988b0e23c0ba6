// internal/services/decisions/approve.go
package decisions

import (
	"context"
	stderrors "errors"

	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/metrics"
	"scholarship-workers/internal/models"
)

// ApproveSelected grants quota, assigns the scholarship and grants the recipient role for each id.
func (e *Engine) ApproveSelected(ctx context.Context, applicationIDs []string) (*models.BatchResult, error) {
	actor, err := requireDecider(ctx)
	if err != nil {
		return nil, err
	}
	ids := uniqueIDs(applicationIDs)
	if len(ids) == 0 {
		return nil, errors.NewValidationError("applicationIds must not be empty")
	}

	result := &models.BatchResult{Items: make([]models.ItemOutcome, 0, len(ids))}
	for _, id := range ids {
		item := e.approveOne(ctx, id, actor.ID)
		outcome := "approved"
		switch {
		case item.Status == models.ItemFailed:
			outcome = "error"
		case item.AlreadyApplied:
			outcome = "already_applied"
		}
		metrics.DecisionItems.WithLabelValues("approve", outcome).Inc()
		result.Add(item)
	}

	e.finish(ctx, "approve", actor.ID, result, nil)
	return result, nil
}

func (e *Engine) approveOne(ctx context.Context, id, actorID string) models.ItemOutcome {
	app, err := e.get(ctx, id)
	if err != nil {
		return failed(id, "", err)
	}

	switch app.State {
	case models.ApplicationScholarshipAssigned:
		item := succeeded(id, app.State)
		item.AlreadyApplied = true
		return item
	case models.ApplicationApproved:
		// Interrupted earlier between approval and assignment; the grant below is idempotent.
	case models.ApplicationEvaluated:
		ok, err := e.move(ctx, app, models.ApplicationEvaluated, models.ApplicationApproved, nil)
		if err != nil {
			return failed(id, app.State, err)
		}
		if !ok {
			return e.lostRace(ctx, id)
		}
	default:
		return failed(id, app.State,
			errors.NewInvalidApplicationStateError(id, string(app.State), string(models.ApplicationEvaluated)))
	}

	if _, err := e.ledger.Grant(ctx, app.QuotaHandleID); err != nil {
		if !stderrors.Is(err, errors.ErrQuotaGrantFailed) {
			// Outcome unknown; APPROVED resumes on the next run.
			return failed(id, models.ApplicationApproved, err)
		}
		e.revertApproval(ctx, app)
		return failed(id, models.ApplicationEvaluated, err)
	}

	ok, err := e.move(ctx, app, models.ApplicationApproved, models.ApplicationScholarshipAssigned, nil)
	if err != nil {
		return failed(id, models.ApplicationApproved, err)
	}
	if !ok {
		return e.lostRace(ctx, id)
	}

	item := succeeded(id, models.ApplicationScholarshipAssigned)
	if err := e.roles.AssignRealmRole(ctx, app.ApplicantID, e.role); err != nil {
		item.RoleGrantPending = true
		e.logger.Warn("scholarship assigned but role grant failed", map[string]interface{}{
			"applicationId": id,
			"applicantId":   app.ApplicantID,
			"role":          e.role,
			"errorCode":     string(errors.ErrCodeRoleGrantFailed),
			"error":         err.Error(),
		})
	}

	e.logger.Info("scholarship assigned", map[string]interface{}{
		"applicationId": id,
		"applicantId":   app.ApplicantID,
	})
	e.notify(ctx, app, models.ApplicationScholarshipAssigned, "", actorID)
	return item
}

// revertApproval runs detached from the job context so an expiring job cannot strand the item in APPROVED.
func (e *Engine) revertApproval(ctx context.Context, app *models.Application) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if _, err := e.move(ctx, app, models.ApplicationApproved, models.ApplicationEvaluated, nil); err != nil {
		e.logger.Error("failed to revert approval after grant failure", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
		return
	}
	e.logger.Warn("approval reverted, quota grant failed", map[string]interface{}{
		"applicationId": app.ID,
		"quotaHandleId": app.QuotaHandleID,
	})
}

// lostRace reports a concurrent approver's progress as an idempotent success; anything else is a state error.
func (e *Engine) lostRace(ctx context.Context, id string) models.ItemOutcome {
	current, err := e.get(ctx, id)
	if err != nil {
		return failed(id, "", err)
	}
	switch current.State {
	case models.ApplicationApproved, models.ApplicationScholarshipAssigned:
		item := succeeded(id, current.State)
		item.AlreadyApplied = true
		return item
	}
	return failed(id, current.State,
		errors.NewInvalidApplicationStateError(id, string(current.State), string(models.ApplicationEvaluated)))
}
