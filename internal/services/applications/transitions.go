// internal/services/applications/transitions.go
package applications

import (
	"context"
	"time"

	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/common/config"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository"
)

// compensationTimeout bounds releases that must finish after the caller's context is gone.
const compensationTimeout = 5 * time.Second

func statePtr(s models.ApplicationState) *models.ApplicationState { return &s }
func strPtr(s string) *string                                   { return &s }

// Submit moves DRAFT -> RECEIVED and reserves quota. A failed reservation leaves the application untouched.
func (m *Manager) Submit(ctx context.Context, applicationID string) (*models.Application, error) {
	app, err := m.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	actor, err := auth.RequireOwner(ctx, app.ApplicantID)
	if err != nil {
		return nil, err
	}
	if app.State != models.ApplicationDraft {
		return nil, errors.NewInvalidApplicationStateError(app.ID, string(app.State), string(models.ApplicationDraft))
	}

	call, err := m.call(ctx, app.CallID)
	if err != nil {
		return nil, err
	}
	if missing := app.MissingForSubmission(call.MandatoryRequirements()); len(missing) > 0 {
		return nil, errors.NewIncompleteApplicationError(missing)
	}
	if !call.AcceptsSubmissions() {
		return nil, errors.NewCallNotAcceptingSubmissionsError(call.ID, string(call.State))
	}

	// A restart-draft whose release failed leaves its old handle on the draft.
	if err := m.releaseDetached(ctx, app.ID, app.QuotaHandleID); err != nil {
		return nil, err
	}

	handle, err := m.ledger.Reserve(ctx, call.ID, app.ScholarshipType, app.Faculty, app.ID)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	ok, err := m.apps.UpdateState(ctx, models.StateChange{
		ApplicationID: app.ID,
		From:          models.ApplicationDraft,
		To:            models.ApplicationReceived,
		QuotaHandleID: strPtr(handle.ID),
		SubmittedAt:   &now,
		At:            now,
	})
	if err != nil || !ok {
		m.compensateReservation(ctx, app.ID, handle.ID)
		if err != nil {
			return nil, repository.Translate(err, "submit application", "application", app.ID)
		}
		return nil, m.stateChanged(ctx, app.ID, string(models.ApplicationDraft))
	}

	m.logger.Info("application submitted", map[string]interface{}{
		"applicationId": app.ID,
		"quotaHandleId": handle.ID,
		"quotaId":       handle.QuotaID,
	})
	m.audit.Record(ctx, models.AuditApplicationSubmitted, "application", app.ID, actor.ID, map[string]interface{}{
		"quotaHandleId": handle.ID,
		"quotaId":       handle.QuotaID,
	})
	return m.Get(ctx, app.ID)
}

func (m *Manager) compensateReservation(ctx context.Context, applicationID, handleID string) {
	if err := m.releaseDetached(ctx, applicationID, handleID); err != nil {
		return
	}
	m.logger.Warn("reservation released after aborted submit", map[string]interface{}{
		"applicationId": applicationID,
		"quotaHandleId": handleID,
	})
}

// releaseDetached runs on a context that survives the caller's cancellation, so an expiring job
// cannot strand a reservation. Releasing is idempotent, which makes retries safe.
func (m *Manager) releaseDetached(ctx context.Context, applicationID, handleID string) error {
	if handleID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if _, err := m.ledger.Release(ctx, handleID); err != nil {
		m.logger.Error("failed to release reservation", map[string]interface{}{
			"applicationId": applicationID,
			"quotaHandleId": handleID,
			"error":         err.Error(),
		})
		return err
	}
	return nil
}

// Observe returns the application to its applicant for correction, remembering where it came from.
func (m *Manager) Observe(ctx context.Context, applicationID, note string) (*models.Application, error) {
	actor, err := auth.RequireRole(ctx, auth.RoleAdmin, auth.RoleDirector)
	if err != nil {
		return nil, err
	}
	app, err := m.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !app.State.Observable() {
		return nil, errors.NewInvalidStateTransitionError("application", string(app.State), string(models.ApplicationObserved))
	}

	ok, err := m.apps.UpdateState(ctx, models.StateChange{
		ApplicationID:   app.ID,
		From:            app.State,
		To:              models.ApplicationObserved,
		PriorState:      statePtr(app.State),
		ObservationNote: strPtr(note),
		At:              m.now().UTC(),
	})
	if err != nil {
		return nil, repository.Translate(err, "observe application", "application", app.ID)
	}
	if !ok {
		return nil, m.stateChanged(ctx, app.ID, string(app.State))
	}

	m.audit.Record(ctx, models.AuditApplicationObserved, "application", app.ID, actor.ID, map[string]interface{}{
		"priorState": string(app.State),
		"note":       note,
	})
	return m.Get(ctx, app.ID)
}

// resubmitTarget is the state an OBSERVED application returns to under the configured policy.
func (m *Manager) resubmitTarget(app *models.Application) models.ApplicationState {
	if m.policy == config.ResubmitRestartDraft || app.PriorState == "" {
		return models.ApplicationDraft
	}
	return app.PriorState
}

// Resubmit takes an OBSERVED application out of observation.
func (m *Manager) Resubmit(ctx context.Context, applicationID string) (*models.Application, error) {
	app, err := m.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	actor, err := auth.RequireOwner(ctx, app.ApplicantID)
	if err != nil {
		return nil, err
	}
	if app.State != models.ApplicationObserved {
		return nil, errors.NewInvalidApplicationStateError(app.ID, string(app.State), string(models.ApplicationObserved))
	}

	target := m.resubmitTarget(app)
	change := models.StateChange{
		ApplicationID: app.ID,
		From:          models.ApplicationObserved,
		To:            target,
		PriorState:    statePtr(""),
		At:            m.now().UTC(),
	}

	if target == models.ApplicationDraft {
		// The handle stays on the row until released below, so a failed release is retried on submit.
		change.ClearScore = m.policy == config.ResubmitRestartDraft
	} else {
		call, err := m.call(ctx, app.CallID)
		if err != nil {
			return nil, err
		}
		if call.State == models.CallFinalized {
			return nil, errors.NewInvalidCallStateError(call.ID, string(call.State))
		}
		if missing := app.MissingForSubmission(call.MandatoryRequirements()); len(missing) > 0 {
			return nil, errors.NewIncompleteApplicationError(missing)
		}
	}

	ok, err := m.apps.UpdateState(ctx, change)
	if err != nil {
		return nil, repository.Translate(err, "resubmit application", "application", app.ID)
	}
	if !ok {
		return nil, m.stateChanged(ctx, app.ID, string(models.ApplicationObserved))
	}
	if target == models.ApplicationDraft && app.QuotaHandleID != "" {
		if err := m.releaseDetached(ctx, app.ID, app.QuotaHandleID); err != nil {
			return nil, err
		}
		m.clearHandle(ctx, app.ID)
	}

	m.logger.Info("application resubmitted", map[string]interface{}{
		"applicationId": app.ID,
		"to":            string(target),
		"policy":        m.policy,
	})
	m.audit.Record(ctx, models.AuditApplicationResubmitted, "application", app.ID, actor.ID, map[string]interface{}{
		"to":     string(target),
		"policy": m.policy,
	})
	return m.Get(ctx, app.ID)
}

// Withdraw abandons the application and gives back any reserved quota. The state changes first: a lost
// race must not release a reservation that a live application still holds.
func (m *Manager) Withdraw(ctx context.Context, applicationID string) (*models.Application, error) {
	app, err := m.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	actor, err := auth.RequireOwner(ctx, app.ApplicantID)
	if err != nil {
		return nil, err
	}
	if app.State == models.ApplicationWithdrawn {
		// Repeated withdrawal finishes a release that failed earlier.
		if err := m.releaseDetached(ctx, app.ID, app.QuotaHandleID); err != nil {
			return nil, err
		}
		return app, nil
	}
	if !app.State.Withdrawable() {
		return nil, errors.NewInvalidStateTransitionError("application", string(app.State), string(models.ApplicationWithdrawn))
	}

	ok, err := m.apps.UpdateState(ctx, models.StateChange{
		ApplicationID: app.ID,
		From:          app.State,
		To:            models.ApplicationWithdrawn,
		At:            m.now().UTC(),
	})
	if err != nil {
		return nil, repository.Translate(err, "withdraw application", "application", app.ID)
	}
	if !ok {
		return nil, m.stateChanged(ctx, app.ID, string(app.State))
	}

	m.audit.Record(ctx, models.AuditApplicationWithdrawn, "application", app.ID, actor.ID, map[string]interface{}{
		"from":          string(app.State),
		"quotaHandleId": app.QuotaHandleID,
	})
	if err := m.releaseDetached(ctx, app.ID, app.QuotaHandleID); err != nil {
		return nil, err
	}
	return m.Get(ctx, app.ID)
}

// clearHandle drops a released handle from a draft. Losing the race to a new submit is fine.
func (m *Manager) clearHandle(ctx context.Context, applicationID string) {
	if _, err := m.apps.UpdateState(ctx, models.StateChange{
		ApplicationID: applicationID,
		From:          models.ApplicationDraft,
		To:            models.ApplicationDraft,
		QuotaHandleID: strPtr(""),
		At:            m.now().UTC(),
	}); err != nil {
		m.logger.Warn("failed to clear released quota handle", map[string]interface{}{
			"applicationId": applicationID,
			"error":         err.Error(),
		})
	}
}

// Transition is the generic caller-driven entry point. Edges owned by evaluation or decisions are refused.
func (m *Manager) Transition(ctx context.Context, applicationID string, to models.ApplicationState, note string) (*models.Application, error) {
	if !to.Valid() {
		return nil, errors.NewValidationError("unknown application state " + string(to))
	}
	app, err := m.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	from := app.State

	switch {
	case models.WorkflowOnly(from, to):
		return nil, errors.NewUnauthorizedTransitionError(string(from), string(to))
	case from == models.ApplicationDraft && to == models.ApplicationReceived:
		return m.Submit(ctx, applicationID)
	case to == models.ApplicationObserved:
		return m.Observe(ctx, applicationID, note)
	case to == models.ApplicationWithdrawn:
		return m.Withdraw(ctx, applicationID)
	case from == models.ApplicationObserved && to == m.resubmitTarget(app):
		return m.Resubmit(ctx, applicationID)
	}
	return nil, errors.NewInvalidStateTransitionError("application", string(from), string(to))
}
