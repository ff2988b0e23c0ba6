// internal/repository/repository.go
package repository

import (
	"context"
	stderrors "errors"
	"time"

	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/models"
)

// ErrNotFound is returned by stores when the addressed row does not exist.
var ErrNotFound = stderrors.New("not found")

// ErrDuplicate is returned when a uniqueness rule (one active application per applicant and call) is violated.
var ErrDuplicate = stderrors.New("duplicate")

// Translate maps a store error onto the service error taxonomy. StandardErrors pass through unchanged.
func Translate(err error, operation, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, ErrNotFound):
		return errors.NewResourceNotFoundError(resource, id)
	case stderrors.Is(err, ErrDuplicate):
		return errors.NewValidationError(resource + " already exists: " + id)
	}
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return errors.NewQueryExecutionFailedError(operation, err)
}

type CallStore interface {
	// GetCall returns the call with its quotas, criteria and requirements.
	GetCall(ctx context.Context, id string) (*models.Call, error)
	// UpdateCallState moves the call only if it is still in from. It reports whether the row changed.
	UpdateCallState(ctx context.Context, id string, from, to models.CallState, at time.Time) (bool, error)
	// ReplaceConfiguration rewrites quotas, criteria and requirements while the call is DRAFT.
	ReplaceConfiguration(ctx context.Context, call *models.Call, at time.Time) (bool, error)
}

type QuotaStore interface {
	ListQuotas(ctx context.Context, callID string) ([]models.Quota, error)
	// ReserveQuota increments reserved when reserved < capacity and records a RESERVED handle, atomically.
	ReserveQuota(ctx context.Context, quotaID string, handle models.QuotaHandle) (bool, error)
	GetHandle(ctx context.Context, handleID string) (*models.QuotaHandle, error)
	GrantHandle(ctx context.Context, handleID string, at time.Time) (models.GrantOutcome, error)
	ReleaseHandle(ctx context.Context, handleID string, at time.Time) (models.ReleaseOutcome, error)
}

// FormsUpdate carries the pre-submission data of an application. Nil fields are left untouched.
type FormsUpdate struct {
	ApplicationID string
	Socioeconomic *models.SocioeconomicForm
	Academic      *models.AcademicForm
	Documents     map[string]models.DocumentRef
	AllowedStates []models.ApplicationState
	At            time.Time
}

type ApplicationStore interface {
	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	SaveForms(ctx context.Context, update FormsUpdate) (bool, error)
	// UpdateState is a compare-and-set on the application state.
	UpdateState(ctx context.Context, change models.StateChange) (bool, error)
	ListByCallAndState(ctx context.Context, callID string, states ...models.ApplicationState) ([]models.Application, error)
	CountByCallAndState(ctx context.Context, callID string, states ...models.ApplicationState) (int, error)
}

type EvaluationStore interface {
	// CommitEvaluation moves the application RECEIVED -> EVALUATED, sets its score and appends the record
	// (and override, when given) in one step. It reports false when the application was not RECEIVED.
	CommitEvaluation(ctx context.Context, record *models.EvaluationRecord, override *models.OverrideRecord) (bool, error)
	ListEvaluations(ctx context.Context, applicationID string) ([]models.EvaluationRecord, error)
	ListOverrides(ctx context.Context, applicationID string) ([]models.OverrideRecord, error)
}

type AuditStore interface {
	AppendAudit(ctx context.Context, event *models.AuditEvent) error
}

// PreviewArena holds at most one preview slot per application with a bounded lifetime.
type PreviewArena interface {
	// Claim reserves the slot for previewID. It reports false when another preview holds it.
	Claim(ctx context.Context, applicationID, previewID string, ttl time.Duration) (bool, error)
	// Fill stores the scored preview in a slot claimed with the same preview id.
	Fill(ctx context.Context, preview *models.Preview, ttl time.Duration) (bool, error)
	// Get returns the ready preview for the application, or ErrNotFound.
	Get(ctx context.Context, applicationID string) (*models.Preview, error)
	// Discard deletes the slot only when it still belongs to previewID.
	Discard(ctx context.Context, applicationID, previewID string) error
}
