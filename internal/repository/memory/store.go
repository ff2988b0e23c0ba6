// internal/repository/memory/store.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository"
)

// Store keeps every aggregate in process memory behind one mutex. It satisfies the same
// store interfaces as the Postgres repositories and is used for local runs and service tests.
type Store struct {
	mu           sync.Mutex
	calls        map[string]*models.Call
	quotas       map[string]*models.Quota
	handles      map[string]*models.QuotaHandle
	applications map[string]*models.Application
	evaluations  []models.EvaluationRecord
	overrides    []models.OverrideRecord
	audit        []models.AuditEvent
}

func NewStore() *Store {
	return &Store{
		calls:        make(map[string]*models.Call),
		quotas:       make(map[string]*models.Quota),
		handles:      make(map[string]*models.QuotaHandle),
		applications: make(map[string]*models.Application),
	}
}

var (
	_ repository.CallStore        = (*Store)(nil)
	_ repository.QuotaStore       = (*Store)(nil)
	_ repository.ApplicationStore = (*Store)(nil)
	_ repository.EvaluationStore  = (*Store)(nil)
	_ repository.AuditStore       = (*Store)(nil)
)

// PutCall seeds a call and its quotas.
func (s *Store) PutCall(call *models.Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCallLocked(call)
}

func (s *Store) putCallLocked(call *models.Call) {
	c := *call
	c.Quotas = nil
	for _, q := range call.Quotas {
		q.CallID = call.ID
		qc := q
		s.quotas[q.ID] = &qc
	}
	c.Criteria = append([]models.Criterion(nil), call.Criteria...)
	c.Requirements = append([]models.Requirement(nil), call.Requirements...)
	s.calls[call.ID] = &c
}

// PutApplication seeds an application as-is, bypassing the uniqueness rule.
func (s *Store) PutApplication(app *models.Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applications[app.ID] = cloneApplication(app)
}

// Quota returns a snapshot of one quota row.
func (s *Store) Quota(id string) (models.Quota, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotas[id]
	if !ok {
		return models.Quota{}, false
	}
	return *q, true
}

// AuditEvents returns a copy of the audit log.
func (s *Store) AuditEvents() []models.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditEvent(nil), s.audit...)
}

func (s *Store) GetCall(_ context.Context, id string) (*models.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *c
	out.Quotas = s.quotasOfLocked(id)
	return &out, nil
}

func (s *Store) quotasOfLocked(callID string) []models.Quota {
	var out []models.Quota
	for _, q := range s.quotas {
		if q.CallID == callID {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) UpdateCallState(_ context.Context, id string, from, to models.CallState, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if c.State != from {
		return false, nil
	}
	c.State = to
	c.UpdatedAt = at
	return true, nil
}

func (s *Store) ReplaceConfiguration(_ context.Context, call *models.Call, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[call.ID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if c.State != models.CallDraft {
		return false, nil
	}
	for id, q := range s.quotas {
		if q.CallID == call.ID {
			delete(s.quotas, id)
		}
	}
	updated := *c
	updated.Title = call.Title
	updated.Year = call.Year
	updated.Period = call.Period
	updated.OpensAt = call.OpensAt
	updated.ClosesAt = call.ClosesAt
	updated.ResultsAt = call.ResultsAt
	updated.Quotas = call.Quotas
	updated.Criteria = call.Criteria
	updated.Requirements = call.Requirements
	updated.UpdatedAt = at
	s.putCallLocked(&updated)
	return true, nil
}

func (s *Store) ListQuotas(_ context.Context, callID string) ([]models.Quota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quotasOfLocked(callID), nil
}

func (s *Store) ReserveQuota(_ context.Context, quotaID string, handle models.QuotaHandle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotas[quotaID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if q.Reserved >= q.Capacity {
		return false, nil
	}
	q.Reserved++
	handle.QuotaID = quotaID
	handle.Status = models.HandleReserved
	h := handle
	s.handles[handle.ID] = &h
	return true, nil
}

func (s *Store) GetHandle(_ context.Context, handleID string) (*models.QuotaHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[handleID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *h
	return &out, nil
}

func (s *Store) GrantHandle(_ context.Context, handleID string, at time.Time) (models.GrantOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[handleID]
	if !ok {
		return models.GrantRejected, repository.ErrNotFound
	}
	switch h.Status {
	case models.HandleGranted:
		return models.GrantAlreadyApplied, nil
	case models.HandleReleased:
		return models.GrantRejected, nil
	}
	s.quotas[h.QuotaID].Granted++
	h.Status = models.HandleGranted
	h.UpdatedAt = at
	return models.GrantApplied, nil
}

func (s *Store) ReleaseHandle(_ context.Context, handleID string, at time.Time) (models.ReleaseOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[handleID]
	if !ok {
		return models.ReleaseRejected, repository.ErrNotFound
	}
	switch h.Status {
	case models.HandleReleased:
		return models.ReleaseAlreadyApplied, nil
	case models.HandleGranted:
		return models.ReleaseRejected, nil
	}
	s.quotas[h.QuotaID].Reserved--
	h.Status = models.HandleReleased
	h.UpdatedAt = at
	return models.ReleaseApplied, nil
}

func (s *Store) CreateApplication(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.applications {
		if existing.ApplicantID == app.ApplicantID && existing.CallID == app.CallID &&
			existing.State != models.ApplicationWithdrawn {
			return repository.ErrDuplicate
		}
	}
	s.applications[app.ID] = cloneApplication(app)
	return nil
}

func (s *Store) GetApplication(_ context.Context, id string) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.applications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneApplication(a), nil
}

func (s *Store) SaveForms(_ context.Context, update repository.FormsUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.applications[update.ApplicationID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if !stateIn(a.State, update.AllowedStates) {
		return false, nil
	}
	if update.Socioeconomic != nil {
		form := *update.Socioeconomic
		a.SocioeconomicForm = &form
	}
	if update.Academic != nil {
		form := *update.Academic
		a.AcademicForm = &form
	}
	if len(update.Documents) > 0 && a.Documents == nil {
		a.Documents = make(map[string]models.DocumentRef, len(update.Documents))
	}
	for id, doc := range update.Documents {
		a.Documents[id] = doc
	}
	a.UpdatedAt = update.At
	return true, nil
}

func (s *Store) UpdateState(_ context.Context, change models.StateChange) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.applications[change.ApplicationID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if a.State != change.From {
		return false, nil
	}
	a.State = change.To
	if change.PriorState != nil {
		a.PriorState = *change.PriorState
	}
	if change.QuotaHandleID != nil {
		a.QuotaHandleID = *change.QuotaHandleID
	}
	if change.SubmittedAt != nil {
		t := *change.SubmittedAt
		a.SubmittedAt = &t
	}
	if change.ObservationNote != nil {
		a.ObservationNote = *change.ObservationNote
	}
	if change.DecisionReason != nil {
		a.DecisionReason = *change.DecisionReason
	}
	if change.ClearScore {
		a.Score = nil
		a.CurrentEvaluationID = ""
	}
	a.UpdatedAt = change.At
	return true, nil
}

func (s *Store) ListByCallAndState(_ context.Context, callID string, states ...models.ApplicationState) ([]models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Application
	for _, a := range s.applications {
		if a.CallID == callID && (len(states) == 0 || stateIn(a.State, states)) {
			out = append(out, *cloneApplication(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CountByCallAndState(ctx context.Context, callID string, states ...models.ApplicationState) (int, error) {
	apps, err := s.ListByCallAndState(ctx, callID, states...)
	return len(apps), err
}

func (s *Store) CommitEvaluation(_ context.Context, record *models.EvaluationRecord, override *models.OverrideRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.applications[record.ApplicationID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if a.State != models.ApplicationReceived {
		return false, nil
	}

	for i := range s.evaluations {
		if s.evaluations[i].ApplicationID == record.ApplicationID {
			s.evaluations[i].Current = false
		}
	}
	rec := *record
	rec.Current = true
	s.evaluations = append(s.evaluations, rec)

	score := rec.Scores
	if override != nil {
		s.overrides = append(s.overrides, *override)
		score = override.EditedScores
	}
	a.Score = &score
	a.CurrentEvaluationID = rec.ID
	a.State = models.ApplicationEvaluated
	a.UpdatedAt = rec.CreatedAt
	return true, nil
}

func (s *Store) ListEvaluations(_ context.Context, applicationID string) ([]models.EvaluationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.EvaluationRecord
	for _, e := range s.evaluations {
		if e.ApplicationID == applicationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ListOverrides(_ context.Context, applicationID string) ([]models.OverrideRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.OverrideRecord
	for _, o := range s.overrides {
		if o.ApplicationID == applicationID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) AppendAudit(_ context.Context, event *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *event)
	return nil
}

func stateIn(state models.ApplicationState, states []models.ApplicationState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

func cloneApplication(a *models.Application) *models.Application {
	out := *a
	if a.Score != nil {
		score := *a.Score
		out.Score = &score
	}
	if a.SocioeconomicForm != nil {
		form := *a.SocioeconomicForm
		out.SocioeconomicForm = &form
	}
	if a.AcademicForm != nil {
		form := *a.AcademicForm
		out.AcademicForm = &form
	}
	if a.SubmittedAt != nil {
		t := *a.SubmittedAt
		out.SubmittedAt = &t
	}
	if a.Documents != nil {
		out.Documents = make(map[string]models.DocumentRef, len(a.Documents))
		for k, v := range a.Documents {
			out.Documents[k] = v
		}
	}
	return &out
}
