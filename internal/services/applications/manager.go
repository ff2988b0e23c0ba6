// internal/services/applications/manager.go
package applications

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/common/config"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/validation"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository"
	"scholarship-workers/internal/services/audit"
	"scholarship-workers/internal/services/quota"

	"github.com/google/uuid"
)

// Manager owns the application state machine. Every transition is a compare-and-set on the stored state.
type Manager struct {
	calls  repository.CallStore
	apps   repository.ApplicationStore
	ledger *quota.Ledger
	audit  *audit.Recorder
	policy string
	logger logger.Logger
	now    func() time.Time
}

// NewManager builds the manager. policy is config.ResubmitResumePrior or config.ResubmitRestartDraft.
func NewManager(calls repository.CallStore, apps repository.ApplicationStore, ledger *quota.Ledger,
	recorder *audit.Recorder, policy string, log logger.Logger) *Manager {
	if policy == "" {
		policy = config.ResubmitResumePrior
	}
	return &Manager{
		calls:  calls,
		apps:   apps,
		ledger: ledger,
		audit:  recorder,
		policy: policy,
		logger: log,
		now:    time.Now,
	}
}

type CreateRequest struct {
	CallID          string `json:"callId"`
	ScholarshipType string `json:"scholarshipType"`
	Faculty         string `json:"faculty"`
}

type FormsRequest struct {
	ApplicationID string                        `json:"applicationId"`
	Socioeconomic *models.SocioeconomicForm     `json:"socioeconomicForm,omitempty"`
	Academic      *models.AcademicForm          `json:"academicForm,omitempty"`
	Documents     map[string]models.DocumentRef `json:"documents,omitempty"`
}

func (m *Manager) Get(ctx context.Context, applicationID string) (*models.Application, error) {
	app, err := m.apps.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, repository.Translate(err, "get application", "application", applicationID)
	}
	return app, nil
}

func (m *Manager) call(ctx context.Context, callID string) (*models.Call, error) {
	call, err := m.calls.GetCall(ctx, callID)
	if err != nil {
		return nil, repository.Translate(err, "get call", "call", callID)
	}
	return call, nil
}

// Create opens a DRAFT application for the calling applicant.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*models.Application, error) {
	actor, err := auth.RequireRole(ctx, auth.RoleApplicant)
	if err != nil {
		return nil, err
	}
	if req.CallID == "" || req.ScholarshipType == "" || req.Faculty == "" {
		return nil, errors.NewValidationError("callId, scholarshipType and faculty are required")
	}

	call, err := m.call(ctx, req.CallID)
	if err != nil {
		return nil, err
	}
	if !call.AcceptsSubmissions() {
		return nil, errors.NewCallNotAcceptingSubmissionsError(call.ID, string(call.State))
	}

	available, err := m.ledger.AvailableCapacity(ctx, call.ID, req.ScholarshipType, req.Faculty)
	if err != nil {
		return nil, err
	}
	if available <= 0 {
		return nil, errors.NewQuotaExhaustedError(call.ID, req.ScholarshipType, req.Faculty)
	}

	now := m.now().UTC()
	app := &models.Application{
		ID:              uuid.NewString(),
		CallID:          call.ID,
		ScholarshipType: req.ScholarshipType,
		Faculty:         req.Faculty,
		ApplicantID:     actor.ID,
		State:           models.ApplicationDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := m.apps.CreateApplication(ctx, app); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.NewDuplicateApplicationError(actor.ID, call.ID)
		}
		return nil, repository.Translate(err, "create application", "application", app.ID)
	}

	m.logger.Info("application created", map[string]interface{}{
		"applicationId": app.ID,
		"callId":        call.ID,
		"applicantId":   actor.ID,
	})
	m.audit.Record(ctx, models.AuditApplicationCreated, "application", app.ID, actor.ID, map[string]interface{}{
		"callId":          call.ID,
		"scholarshipType": req.ScholarshipType,
		"faculty":         req.Faculty,
	})
	return app, nil
}

// SaveForms attaches forms and document references while the application is DRAFT or OBSERVED.
func (m *Manager) SaveForms(ctx context.Context, req FormsRequest) (*models.Application, error) {
	app, err := m.Get(ctx, req.ApplicationID)
	if err != nil {
		return nil, err
	}
	actor, err := auth.RequireOwner(ctx, app.ApplicantID)
	if err != nil {
		return nil, err
	}
	if !app.State.Editable() {
		return nil, errors.NewInvalidApplicationStateError(app.ID, string(app.State), "DRAFT or OBSERVED")
	}

	var problems []string
	if req.Socioeconomic != nil {
		if res := validation.SocioeconomicForm.ValidateGo(req.Socioeconomic); !res.Valid {
			problems = append(problems, res.GetErrorMessages()...)
		}
	}
	if req.Academic != nil {
		if res := validation.AcademicForm.ValidateGo(req.Academic); !res.Valid {
			problems = append(problems, res.GetErrorMessages()...)
		}
		if a := req.Academic; a.SubjectsPassed > a.SubjectsTaken && a.SubjectsTaken > 0 {
			problems = append(problems, "academicForm: subjectsPassed exceeds subjectsTaken")
		}
	}

	docs, err := m.checkDocuments(ctx, app.CallID, req.Documents)
	if err != nil {
		return nil, err
	}
	if len(problems) > 0 {
		return nil, errors.NewValidationError(strings.Join(problems, "; "))
	}

	ok, err := m.apps.SaveForms(ctx, repository.FormsUpdate{
		ApplicationID: app.ID,
		Socioeconomic: req.Socioeconomic,
		Academic:      req.Academic,
		Documents:     docs,
		AllowedStates: []models.ApplicationState{models.ApplicationDraft, models.ApplicationObserved},
		At:            m.now().UTC(),
	})
	if err != nil {
		return nil, repository.Translate(err, "save forms", "application", app.ID)
	}
	if !ok {
		return nil, m.stateChanged(ctx, app.ID, "DRAFT or OBSERVED")
	}

	m.audit.Record(ctx, models.AuditApplicationUpdated, "application", app.ID, actor.ID, map[string]interface{}{
		"socioeconomicForm": req.Socioeconomic != nil,
		"academicForm":      req.Academic != nil,
		"documents":         len(docs),
	})
	return m.Get(ctx, app.ID)
}

// checkDocuments rejects references to requirements the call does not define.
func (m *Manager) checkDocuments(ctx context.Context, callID string, docs map[string]models.DocumentRef) (map[string]models.DocumentRef, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	call, err := m.call(ctx, callID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(call.Requirements))
	for _, r := range call.Requirements {
		known[r.ID] = true
	}

	now := m.now().UTC()
	out := make(map[string]models.DocumentRef, len(docs))
	for id, doc := range docs {
		if !known[id] {
			return nil, errors.NewValidationError(fmt.Sprintf("call %s has no requirement %q", callID, id))
		}
		if doc.StorageRef == "" {
			return nil, errors.NewValidationError(fmt.Sprintf("document for %q has no storage reference", id))
		}
		doc.RequirementID = id
		if doc.Version == 0 {
			doc.Version = 1
		}
		if doc.UploadedAt.IsZero() {
			doc.UploadedAt = now
		}
		out[id] = doc
	}
	return out, nil
}

// stateChanged builds the error for a lost compare-and-set, naming the state the row is in now.
func (m *Manager) stateChanged(ctx context.Context, applicationID, expected string) error {
	current, err := m.Get(ctx, applicationID)
	if err != nil {
		return err
	}
	return errors.NewInvalidApplicationStateError(applicationID, string(current.State), expected)
}
