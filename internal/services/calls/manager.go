// internal/services/calls/manager.go
package calls

import (
	"context"
	"fmt"
	"time"

	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository"
	"scholarship-workers/internal/services/audit"

	"github.com/google/uuid"
)

// TransitionResult reports what a call transition did. Changed is false for the CLOSED -> CLOSED no-op.
type TransitionResult struct {
	CallID  string           `json:"callId"`
	From    models.CallState `json:"from"`
	To      models.CallState `json:"to"`
	Changed bool             `json:"changed"`
}

// Configuration is the part of a call that may only change while it is DRAFT.
type Configuration struct {
	Title        string               `json:"title"`
	Year         int                  `json:"year"`
	Period       int                  `json:"period"`
	OpensAt      *time.Time           `json:"opensAt,omitempty"`
	ClosesAt     *time.Time           `json:"closesAt,omitempty"`
	ResultsAt    *time.Time           `json:"resultsAt,omitempty"`
	Quotas       []models.Quota       `json:"quotas"`
	Criteria     []models.Criterion   `json:"criteria"`
	Requirements []models.Requirement `json:"requirements"`
}

type Manager struct {
	calls  repository.CallStore
	apps   repository.ApplicationStore
	audit  *audit.Recorder
	logger logger.Logger
	now    func() time.Time
}

func NewManager(calls repository.CallStore, apps repository.ApplicationStore, recorder *audit.Recorder, log logger.Logger) *Manager {
	return &Manager{calls: calls, apps: apps, audit: recorder, logger: log, now: time.Now}
}

func (m *Manager) Get(ctx context.Context, callID string) (*models.Call, error) {
	call, err := m.calls.GetCall(ctx, callID)
	if err != nil {
		return nil, repository.Translate(err, "get call", "call", callID)
	}
	return call, nil
}

// Transition moves a call along its state machine. Only administrators may drive it.
func (m *Manager) Transition(ctx context.Context, callID string, to models.CallState) (*TransitionResult, error) {
	actor, err := auth.RequireRole(ctx, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, errors.NewValidationError(fmt.Sprintf("unknown call state %q", to))
	}

	call, err := m.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	from := call.State

	if from == models.CallClosed && to == models.CallClosed {
		return &TransitionResult{CallID: callID, From: from, To: to}, nil
	}
	if !models.CanTransitionCall(from, to) {
		return nil, errors.NewInvalidStateTransitionError("call", string(from), string(to))
	}

	switch to {
	case models.CallPublished:
		if from == models.CallDraft {
			if err := validatePublishable(call); err != nil {
				return nil, err
			}
		}
	case models.CallFinalized:
		pending, err := m.apps.CountByCallAndState(ctx, callID, models.UnresolvedStates...)
		if err != nil {
			return nil, repository.Translate(err, "count unresolved applications", "call", callID)
		}
		if pending > 0 {
			return nil, errors.NewUnresolvedApplicationsExistError(callID, pending)
		}
	}

	ok, err := m.calls.UpdateCallState(ctx, callID, from, to, m.now().UTC())
	if err != nil {
		return nil, repository.Translate(err, "update call state", "call", callID)
	}
	if !ok {
		current, gErr := m.Get(ctx, callID)
		if gErr != nil {
			return nil, gErr
		}
		return nil, errors.NewInvalidStateTransitionError("call", string(current.State), string(to))
	}

	m.logger.Info("call transitioned", map[string]interface{}{
		"callId": callID,
		"from":   string(from),
		"to":     string(to),
		"actor":  actor.ID,
	})
	m.audit.Record(ctx, models.AuditCallTransitioned, "call", callID, actor.ID, map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	})
	return &TransitionResult{CallID: callID, From: from, To: to, Changed: true}, nil
}

// Configure replaces the quotas, criteria and requirements of a DRAFT call.
func (m *Manager) Configure(ctx context.Context, callID string, cfg Configuration) (*models.Call, error) {
	actor, err := auth.RequireRole(ctx, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := validateConfiguration(cfg); err != nil {
		return nil, err
	}

	call, err := m.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call.State != models.CallDraft {
		return nil, errors.NewInvalidCallStateError(callID, string(call.State))
	}

	call.Title = cfg.Title
	call.Year = cfg.Year
	call.Period = cfg.Period
	call.OpensAt, call.ClosesAt, call.ResultsAt = cfg.OpensAt, cfg.ClosesAt, cfg.ResultsAt
	call.Quotas = make([]models.Quota, len(cfg.Quotas))
	for i, q := range cfg.Quotas {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		q.CallID = callID
		q.Reserved, q.Granted = 0, 0
		call.Quotas[i] = q
	}
	call.Criteria = withIDs(cfg.Criteria)
	call.Requirements = cfg.Requirements

	ok, err := m.calls.ReplaceConfiguration(ctx, call, m.now().UTC())
	if err != nil {
		return nil, repository.Translate(err, "replace call configuration", "call", callID)
	}
	if !ok {
		current, gErr := m.Get(ctx, callID)
		if gErr != nil {
			return nil, gErr
		}
		return nil, errors.NewInvalidCallStateError(callID, string(current.State))
	}

	m.audit.Record(ctx, models.AuditCallConfigured, "call", callID, actor.ID, map[string]interface{}{
		"quotas":       len(call.Quotas),
		"criteria":     len(call.Criteria),
		"requirements": len(call.Requirements),
		"weightTotal":  call.WeightTotal(),
	})
	return m.Get(ctx, callID)
}

func withIDs(criteria []models.Criterion) []models.Criterion {
	out := make([]models.Criterion, len(criteria))
	for i, c := range criteria {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		out[i] = c
	}
	return out
}
