// internal/services/applications/manager_test.go
package applications

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/common/config"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository/memory"
	"scholarship-workers/internal/services/audit"
	"scholarship-workers/internal/services/quota"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishedCall(capacity int) *models.Call {
	return &models.Call{
		ID:     "call-1",
		State:  models.CallPublished,
		Quotas: []models.Quota{{ID: "q-1", ScholarshipType: "FOOD", Faculty: models.FacultyAll, Capacity: capacity}},
		Criteria: []models.Criterion{
			{ID: "c-1", Dimension: models.DimensionSocioeconomic, Weight: 70},
			{ID: "c-2", Dimension: models.DimensionAcademic, Weight: 30},
		},
		Requirements: []models.Requirement{
			{ID: "id-card", Name: "Identity card", Mandatory: true},
			{ID: "photo", Name: "Photo"},
		},
	}
}

func newManager(t *testing.T, policy string, capacity int) (*Manager, *memory.Store) {
	store := memory.NewStore()
	store.PutCall(publishedCall(capacity))
	log := logger.NewTestLogger(t)
	ledger := quota.NewLedger(store, log)
	return NewManager(store, store, ledger, audit.NewRecorder(store, nil, log), policy, log), store
}

func applicant(id string) context.Context {
	return auth.WithActor(context.Background(), auth.Actor{ID: id, Role: auth.RoleApplicant})
}

func director() context.Context {
	return auth.WithActor(context.Background(), auth.Actor{ID: "dir-1", Role: auth.RoleDirector})
}

func completeForms(applicationID string) FormsRequest {
	return FormsRequest{
		ApplicationID: applicationID,
		Socioeconomic: &models.SocioeconomicForm{
			HouseholdMembers: 4, Dependents: 2, MonthlyHouseholdIncome: 1800, HousingType: "RENTED",
		},
		Academic:  &models.AcademicForm{GradeAverage: 82, CurrentSemester: 4, SubjectsTaken: 20, SubjectsPassed: 18},
		Documents: map[string]models.DocumentRef{"id-card": {StorageRef: "s3://docs/id-card.pdf"}},
	}
}

// draftReady creates an application for the applicant with every submission prerequisite in place.
func draftReady(t *testing.T, m *Manager, applicantID string) *models.Application {
	ctx := applicant(applicantID)
	app, err := m.Create(ctx, CreateRequest{CallID: "call-1", ScholarshipType: "FOOD", Faculty: "LAW"})
	require.NoError(t, err)
	_, err = m.SaveForms(ctx, completeForms(app.ID))
	require.NoError(t, err)
	return app
}

func TestCreate(t *testing.T) {
	m, _ := newManager(t, "", 2)
	ctx := applicant("u-1")

	app, err := m.Create(ctx, CreateRequest{CallID: "call-1", ScholarshipType: "FOOD", Faculty: "LAW"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationDraft, app.State)
	assert.Equal(t, "u-1", app.ApplicantID)

	_, err = m.Create(ctx, CreateRequest{CallID: "call-1", ScholarshipType: "FOOD", Faculty: "LAW"})
	assert.ErrorIs(t, err, errors.ErrDuplicateApplication)

	_, err = m.Withdraw(ctx, app.ID)
	require.NoError(t, err)
	_, err = m.Create(ctx, CreateRequest{CallID: "call-1", ScholarshipType: "FOOD", Faculty: "LAW"})
	assert.NoError(t, err, "withdrawn applications do not count")

	_, err = m.Create(applicant("u-2"), CreateRequest{CallID: "call-1", ScholarshipType: "HOUSING", Faculty: "LAW"})
	assert.ErrorIs(t, err, errors.ErrQuotaExhausted)

	_, err = m.Create(director(), CreateRequest{CallID: "call-1", ScholarshipType: "FOOD", Faculty: "LAW"})
	assert.ErrorIs(t, err, errors.ErrForbidden)
}

func TestCreate_CallNotPublished(t *testing.T) {
	m, store := newManager(t, "", 2)
	call := publishedCall(2)
	call.State = models.CallPaused
	store.PutCall(call)

	_, err := m.Create(applicant("u-1"), CreateRequest{CallID: "call-1", ScholarshipType: "FOOD", Faculty: "LAW"})
	assert.ErrorIs(t, err, errors.ErrCallNotAcceptingSubmissions)
}

func TestSaveForms_Validation(t *testing.T) {
	m, _ := newManager(t, "", 2)
	ctx := applicant("u-1")
	app, err := m.Create(ctx, CreateRequest{CallID: "call-1", ScholarshipType: "FOOD", Faculty: "LAW"})
	require.NoError(t, err)

	bad := completeForms(app.ID)
	bad.Socioeconomic.HouseholdMembers = 0
	bad.Academic.GradeAverage = 140
	_, err = m.SaveForms(ctx, bad)
	require.ErrorIs(t, err, errors.ErrValidationFailed)
	assert.Contains(t, err.Error(), "householdMembers")
	assert.Contains(t, err.Error(), "gradeAverage")

	unknown := completeForms(app.ID)
	unknown.Documents = map[string]models.DocumentRef{"transcript": {StorageRef: "s3://x"}}
	_, err = m.SaveForms(ctx, unknown)
	assert.ErrorIs(t, err, errors.ErrValidationFailed)

	_, err = m.SaveForms(applicant("u-2"), completeForms(app.ID))
	assert.ErrorIs(t, err, errors.ErrForbidden)

	saved, err := m.SaveForms(ctx, completeForms(app.ID))
	require.NoError(t, err)
	assert.NotNil(t, saved.SocioeconomicForm)
	assert.Equal(t, 1, saved.Documents["id-card"].Version)
}

func TestSubmit(t *testing.T) {
	m, store := newManager(t, "", 2)
	ctx := applicant("u-1")

	app, err := m.Create(ctx, CreateRequest{CallID: "call-1", ScholarshipType: "FOOD", Faculty: "LAW"})
	require.NoError(t, err)
	_, err = m.Submit(ctx, app.ID)
	require.ErrorIs(t, err, errors.ErrIncompleteApplication)

	forms := completeForms(app.ID)
	forms.Documents = nil
	_, err = m.SaveForms(ctx, forms)
	require.NoError(t, err)
	_, err = m.Submit(ctx, app.ID)
	require.ErrorIs(t, err, errors.ErrIncompleteApplication, "mandatory document missing")

	_, err = m.SaveForms(ctx, completeForms(app.ID))
	require.NoError(t, err)
	submitted, err := m.Submit(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationReceived, submitted.State)
	assert.NotEmpty(t, submitted.QuotaHandleID)
	assert.NotNil(t, submitted.SubmittedAt)

	q, _ := store.Quota("q-1")
	assert.Equal(t, 1, q.Reserved)

	_, err = m.Submit(ctx, app.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidApplicationState)
}

func TestSubmit_CallPaused(t *testing.T) {
	m, store := newManager(t, "", 2)
	app := draftReady(t, m, "u-1")

	call := publishedCall(2)
	call.State = models.CallPaused
	store.PutCall(call)

	_, err := m.Submit(applicant("u-1"), app.ID)
	assert.ErrorIs(t, err, errors.ErrCallNotAcceptingSubmissions)
}

func TestSubmit_ConcurrentApplicantsShareCapacity(t *testing.T) {
	m, store := newManager(t, "", 2)
	apps := make([]*models.Application, 3)
	for i := range apps {
		apps[i] = draftReady(t, m, fmt.Sprintf("u-%d", i))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		received  int
		exhausted int
	)
	for i, app := range apps {
		wg.Add(1)
		go func(applicantID, applicationID string) {
			defer wg.Done()
			_, err := m.Submit(applicant(applicantID), applicationID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				received++
			case assert.ErrorIs(t, err, errors.ErrQuotaExhausted):
				exhausted++
			}
		}(fmt.Sprintf("u-%d", i), app.ID)
	}
	wg.Wait()

	assert.Equal(t, 2, received)
	assert.Equal(t, 1, exhausted)

	drafts, err := store.CountByCallAndState(context.Background(), "call-1", models.ApplicationDraft)
	require.NoError(t, err)
	assert.Equal(t, 1, drafts, "the rejected submission has no side effects")

	q, _ := store.Quota("q-1")
	assert.Equal(t, 2, q.Reserved)
	assert.True(t, q.Consistent())
}

func TestObserveAndResubmit_ResumePrior(t *testing.T) {
	m, store := newManager(t, config.ResubmitResumePrior, 2)
	ctx := applicant("u-1")
	app := draftReady(t, m, "u-1")
	received, err := m.Submit(ctx, app.ID)
	require.NoError(t, err)

	_, err = m.Observe(ctx, app.ID, "blurry id card")
	require.ErrorIs(t, err, errors.ErrForbidden)

	observed, err := m.Observe(director(), app.ID, "blurry id card")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationObserved, observed.State)
	assert.Equal(t, models.ApplicationReceived, observed.PriorState)

	_, err = m.SaveForms(ctx, completeForms(app.ID))
	require.NoError(t, err, "observed applications are editable")

	resumed, err := m.Resubmit(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationReceived, resumed.State)
	assert.Equal(t, received.QuotaHandleID, resumed.QuotaHandleID)
	assert.Empty(t, resumed.PriorState)

	q, _ := store.Quota("q-1")
	assert.Equal(t, 1, q.Reserved, "reservation is kept")
}

func TestObserveAndResubmit_RestartDraft(t *testing.T) {
	m, store := newManager(t, config.ResubmitRestartDraft, 2)
	ctx := applicant("u-1")
	app := draftReady(t, m, "u-1")
	_, err := m.Submit(ctx, app.ID)
	require.NoError(t, err)

	withScore, err := store.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	score := models.NewScores(50, 20)
	withScore.State = models.ApplicationEvaluated
	withScore.Score = &score
	store.PutApplication(withScore)

	_, err = m.Observe(director(), app.ID, "income proof inconsistent")
	require.NoError(t, err)

	restarted, err := m.Resubmit(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationDraft, restarted.State)
	assert.Empty(t, restarted.QuotaHandleID)
	assert.Nil(t, restarted.Score)

	q, _ := store.Quota("q-1")
	assert.Equal(t, 0, q.Reserved, "reservation is released")

	again, err := m.Submit(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationReceived, again.State)
}

func TestResubmit_RevalidatesCompleteness(t *testing.T) {
	m, store := newManager(t, config.ResubmitResumePrior, 2)
	store.PutApplication(&models.Application{
		ID: "a-1", CallID: "call-1", ApplicantID: "u-1", ScholarshipType: "FOOD", Faculty: "LAW",
		State: models.ApplicationObserved, PriorState: models.ApplicationReceived,
	})

	_, err := m.Resubmit(applicant("u-1"), "a-1")
	assert.ErrorIs(t, err, errors.ErrIncompleteApplication)
}

func TestWithdraw_ReleasesReservation(t *testing.T) {
	m, store := newManager(t, "", 2)
	ctx := applicant("u-1")
	app := draftReady(t, m, "u-1")
	_, err := m.Submit(ctx, app.ID)
	require.NoError(t, err)

	withdrawn, err := m.Withdraw(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationWithdrawn, withdrawn.State)

	q, _ := store.Quota("q-1")
	assert.Equal(t, 0, q.Reserved)

	again, err := m.Withdraw(ctx, app.ID)
	require.NoError(t, err, "repeating a withdrawal is harmless")
	assert.Equal(t, models.ApplicationWithdrawn, again.State)
	q, _ = store.Quota("q-1")
	assert.Equal(t, 0, q.Reserved)
}

// racingStore lets a concurrent evaluation commit between the withdrawal's read and its compare-and-set.
type racingStore struct {
	*memory.Store
	evaluateFirst bool
}

func (s *racingStore) UpdateState(ctx context.Context, change models.StateChange) (bool, error) {
	if s.evaluateFirst && change.To == models.ApplicationWithdrawn {
		s.evaluateFirst = false
		ok, err := s.Store.UpdateState(ctx, models.StateChange{
			ApplicationID: change.ApplicationID,
			From:          models.ApplicationReceived,
			To:            models.ApplicationEvaluated,
			At:            change.At,
		})
		if err != nil || !ok {
			return ok, fmt.Errorf("concurrent evaluation did not commit: %v", err)
		}
	}
	return s.Store.UpdateState(ctx, change)
}

func TestWithdraw_LostRaceKeepsReservation(t *testing.T) {
	_, base := newManager(t, "", 2)
	store := &racingStore{Store: base}
	log := logger.NewTestLogger(t)
	m := NewManager(store, store, quota.NewLedger(store, log), audit.NewRecorder(store, nil, log), "", log)

	ctx := applicant("u-1")
	app := draftReady(t, m, "u-1")
	submitted, err := m.Submit(ctx, app.ID)
	require.NoError(t, err)

	store.evaluateFirst = true
	_, err = m.Withdraw(ctx, app.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidApplicationState)

	current, err := base.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationEvaluated, current.State)

	handle, err := base.GetHandle(context.Background(), submitted.QuotaHandleID)
	require.NoError(t, err)
	assert.Equal(t, models.HandleReserved, handle.Status, "the live application keeps its reservation")
	q, _ := base.Quota("q-1")
	assert.Equal(t, 1, q.Reserved)
}

// cancellingStore ends the caller's context right after a reservation and, like database/sql,
// refuses work on a cancelled context.
type cancellingStore struct {
	*memory.Store
	cancel context.CancelFunc
}

func (s *cancellingStore) ReserveQuota(ctx context.Context, quotaID string, handle models.QuotaHandle) (bool, error) {
	ok, err := s.Store.ReserveQuota(ctx, quotaID, handle)
	s.cancel()
	return ok, err
}

func (s *cancellingStore) UpdateState(ctx context.Context, change models.StateChange) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.Store.UpdateState(ctx, change)
}

func (s *cancellingStore) ReleaseHandle(ctx context.Context, handleID string, at time.Time) (models.ReleaseOutcome, error) {
	if err := ctx.Err(); err != nil {
		return models.ReleaseRejected, err
	}
	return s.Store.ReleaseHandle(ctx, handleID, at)
}

func TestSubmit_CancelledJobLeavesNoReservation(t *testing.T) {
	_, base := newManager(t, "", 2)
	log := logger.NewTestLogger(t)
	setup := NewManager(base, base, quota.NewLedger(base, log), audit.NewRecorder(base, nil, log), "", log)
	app := draftReady(t, setup, "u-1")

	ctx, cancel := context.WithCancel(applicant("u-1"))
	defer cancel()
	store := &cancellingStore{Store: base, cancel: cancel}
	m := NewManager(store, store, quota.NewLedger(store, log), audit.NewRecorder(store, nil, log), "", log)

	_, err := m.Submit(ctx, app.ID)
	require.Error(t, err)

	current, err := base.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationDraft, current.State)
	q, _ := base.Quota("q-1")
	assert.Equal(t, 0, q.Reserved, "an aborted submission gives its reservation back")
}

func TestTransition(t *testing.T) {
	m, _ := newManager(t, "", 2)
	ctx := applicant("u-1")
	app := draftReady(t, m, "u-1")

	_, err := m.Transition(ctx, app.ID, models.ApplicationApproved, "")
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)

	received, err := m.Transition(ctx, app.ID, models.ApplicationReceived, "")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationReceived, received.State)

	_, err = m.Transition(ctx, app.ID, models.ApplicationEvaluated, "")
	assert.ErrorIs(t, err, errors.ErrUnauthorizedTransition)

	observed, err := m.Transition(director(), app.ID, models.ApplicationObserved, "missing signature")
	require.NoError(t, err)
	assert.Equal(t, "missing signature", observed.ObservationNote)

	_, err = m.Transition(ctx, app.ID, models.ApplicationEvaluated, "")
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition, "resume target is RECEIVED")

	resumed, err := m.Transition(ctx, app.ID, models.ApplicationReceived, "")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationReceived, resumed.State)
}

// flakyReleaseStore fails the next release once.
type flakyReleaseStore struct {
	*memory.Store
	failNext bool
}

func (s *flakyReleaseStore) ReleaseHandle(ctx context.Context, handleID string, at time.Time) (models.ReleaseOutcome, error) {
	if s.failNext {
		s.failNext = false
		return models.ReleaseRejected, fmt.Errorf("connection reset")
	}
	return s.Store.ReleaseHandle(ctx, handleID, at)
}

func TestRestartDraft_FailedReleaseIsRetriedOnSubmit(t *testing.T) {
	_, base := newManager(t, "", 2)
	store := &flakyReleaseStore{Store: base}
	log := logger.NewTestLogger(t)
	m := NewManager(store, store, quota.NewLedger(store, log), audit.NewRecorder(store, nil, log), config.ResubmitRestartDraft, log)

	ctx := applicant("u-1")
	app := draftReady(t, m, "u-1")
	submitted, err := m.Submit(ctx, app.ID)
	require.NoError(t, err)
	_, err = m.Observe(director(), app.ID, "missing signature")
	require.NoError(t, err)

	store.failNext = true
	_, err = m.Resubmit(ctx, app.ID)
	require.Error(t, err)

	current, err := base.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationDraft, current.State)
	assert.Equal(t, submitted.QuotaHandleID, current.QuotaHandleID, "the unreleased handle stays on the draft")

	again, err := m.Submit(ctx, app.ID)
	require.NoError(t, err)
	assert.NotEqual(t, submitted.QuotaHandleID, again.QuotaHandleID)

	old, err := base.GetHandle(context.Background(), submitted.QuotaHandleID)
	require.NoError(t, err)
	assert.Equal(t, models.HandleReleased, old.Status)
	q, _ := base.Quota("q-1")
	assert.Equal(t, 1, q.Reserved)
}
