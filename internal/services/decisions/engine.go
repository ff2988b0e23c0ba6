// internal/services/decisions/engine.go
package decisions

import (
	"context"
	"strings"
	"time"

	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository"
	"scholarship-workers/internal/services/audit"
	"scholarship-workers/internal/services/quota"
)

const DefaultScholarshipRole = "estudiante_becado"

// compensationTimeout bounds work that must finish after the caller's context is gone.
const compensationTimeout = 5 * time.Second

// RoleGranter adds a realm role to an identity. Repeated grants must be harmless.
type RoleGranter interface {
	AssignRealmRole(ctx context.Context, userID, roleName string) error
}

type Notifier interface {
	NotifyDecision(ctx context.Context, notice models.DecisionNotice)
}

// Engine resolves EVALUATED applications in bulk. Items are independent; nothing is rolled back across items.
type Engine struct {
	apps     repository.ApplicationStore
	ledger   *quota.Ledger
	roles    RoleGranter
	notifier Notifier
	audit    *audit.Recorder
	role     string
	logger   logger.Logger
	now      func() time.Time
}

func NewEngine(apps repository.ApplicationStore, ledger *quota.Ledger, roles RoleGranter, notifier Notifier,
	recorder *audit.Recorder, scholarshipRole string, log logger.Logger) *Engine {
	if scholarshipRole == "" {
		scholarshipRole = DefaultScholarshipRole
	}
	return &Engine{
		apps:     apps,
		ledger:   ledger,
		roles:    roles,
		notifier: notifier,
		audit:    recorder,
		role:     scholarshipRole,
		logger:   log,
		now:      time.Now,
	}
}

func requireDecider(ctx context.Context) (auth.Actor, error) {
	return auth.RequireRole(ctx, auth.RoleDirector, auth.RoleAdmin)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func failed(id string, state models.ApplicationState, err error) models.ItemOutcome {
	return models.ItemOutcome{
		ApplicationID: id,
		Status:        models.ItemFailed,
		State:         state,
		ErrorCode:     string(errors.As(err).Code),
		Error:         err.Error(),
	}
}

func succeeded(id string, state models.ApplicationState) models.ItemOutcome {
	return models.ItemOutcome{ApplicationID: id, Status: models.ItemSucceeded, State: state}
}

func (e *Engine) get(ctx context.Context, id string) (*models.Application, error) {
	app, err := e.apps.GetApplication(ctx, id)
	if err != nil {
		return nil, repository.Translate(err, "get application", "application", id)
	}
	return app, nil
}

func (e *Engine) move(ctx context.Context, app *models.Application, from, to models.ApplicationState, reason *string) (bool, error) {
	ok, err := e.apps.UpdateState(ctx, models.StateChange{
		ApplicationID:  app.ID,
		From:           from,
		To:             to,
		DecisionReason: reason,
		At:             e.now().UTC(),
	})
	if err != nil {
		return false, repository.Translate(err, "update application state", "application", app.ID)
	}
	return ok, nil
}

// releaseDetached gives back a reservation after the state change that orphaned it has committed.
func (e *Engine) releaseDetached(ctx context.Context, handleID string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	_, err := e.ledger.Release(ctx, handleID)
	return err
}

func (e *Engine) notify(ctx context.Context, app *models.Application, outcome models.ApplicationState, reason, actorID string) {
	if e.notifier == nil {
		return
	}
	e.notifier.NotifyDecision(ctx, models.DecisionNotice{
		ApplicationID: app.ID,
		CallID:        app.CallID,
		ApplicantID:   app.ApplicantID,
		Outcome:       outcome,
		Reason:        reason,
		DecidedBy:     actorID,
		DecidedAt:     e.now().UTC(),
	})
}

func (e *Engine) finish(ctx context.Context, operation, actorID string, result *models.BatchResult, extra map[string]interface{}) {
	details := map[string]interface{}{
		"operation": operation,
		"total":     result.Total,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"items":     result.Items,
	}
	for k, v := range extra {
		details[k] = v
	}
	e.logger.Info("decision batch completed", map[string]interface{}{
		"operation": operation,
		"total":     result.Total,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})
	e.audit.Record(ctx, models.AuditDecisionBatch, "decision", operation, actorID, details)
}
