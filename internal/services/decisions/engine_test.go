// internal/services/decisions/engine_test.go
package decisions

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository/memory"
	"scholarship-workers/internal/services/audit"
	"scholarship-workers/internal/services/quota"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRoles struct{ mock.Mock }

func (m *mockRoles) AssignRealmRole(ctx context.Context, userID, roleName string) error {
	return m.Called(ctx, userID, roleName).Error(0)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []models.DecisionNotice
}

func (r *recordingNotifier) NotifyDecision(_ context.Context, notice models.DecisionNotice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

type fixture struct {
	engine   *Engine
	store    *memory.Store
	ledger   *quota.Ledger
	roles    *mockRoles
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	log := logger.NewTestLogger(t)
	f := &fixture{store: memory.NewStore(), roles: &mockRoles{}, notifier: &recordingNotifier{}}
	f.store.PutCall(&models.Call{
		ID:     "call-1",
		State:  models.CallClosed,
		Quotas: []models.Quota{{ID: "q-1", ScholarshipType: "FOOD", Faculty: models.FacultyAll, Capacity: 5}},
	})
	f.ledger = quota.NewLedger(f.store, log)
	f.engine = NewEngine(f.store, f.ledger, f.roles, f.notifier, audit.NewRecorder(f.store, nil, log), "", log)
	return f
}

// evaluated seeds an EVALUATED application that holds a reservation on q-1.
func (f *fixture) evaluated(t *testing.T, id string) string {
	handle, err := f.ledger.Reserve(context.Background(), "call-1", "FOOD", "LAW", id)
	require.NoError(t, err)
	f.store.PutApplication(&models.Application{
		ID:              id,
		CallID:          "call-1",
		ApplicantID:     "u-" + id,
		ScholarshipType: "FOOD",
		Faculty:         "LAW",
		State:           models.ApplicationEvaluated,
		QuotaHandleID:   handle.ID,
		Score:           &models.Scores{Socioeconomic: 50, Academic: 20, Total: 70},
	})
	return handle.ID
}

func directorCtx() context.Context {
	return auth.WithActor(context.Background(), auth.Actor{ID: "dir-1", Role: auth.RoleDirector})
}

func (f *fixture) state(t *testing.T, id string) models.ApplicationState {
	app, err := f.store.GetApplication(context.Background(), id)
	require.NoError(t, err)
	return app.State
}

func TestApproveSelected_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.evaluated(t, "a-1")
	f.roles.On("AssignRealmRole", mock.Anything, "u-a-1", DefaultScholarshipRole).Return(nil).Once()

	first, err := f.engine.ApproveSelected(directorCtx(), []string{"a-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Succeeded)
	assert.False(t, first.Items[0].AlreadyApplied)
	assert.Equal(t, models.ApplicationScholarshipAssigned, f.state(t, "a-1"))

	second, err := f.engine.ApproveSelected(directorCtx(), []string{"a-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Succeeded)
	assert.True(t, second.Items[0].AlreadyApplied)

	q, _ := f.store.Quota("q-1")
	assert.Equal(t, 1, q.Granted)
	f.roles.AssertNumberOfCalls(t, "AssignRealmRole", 1)
	assert.Len(t, f.notifier.notices, 1)
	assert.Equal(t, models.ApplicationScholarshipAssigned, f.notifier.notices[0].Outcome)
}

func TestApproveSelected_ResumesInterruptedApproval(t *testing.T) {
	f := newFixture(t)
	f.evaluated(t, "a-1")
	app, _ := f.store.GetApplication(context.Background(), "a-1")
	app.State = models.ApplicationApproved
	f.store.PutApplication(app)
	f.roles.On("AssignRealmRole", mock.Anything, "u-a-1", DefaultScholarshipRole).Return(nil)

	result, err := f.engine.ApproveSelected(directorCtx(), []string{"a-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, models.ApplicationScholarshipAssigned, f.state(t, "a-1"))
}

func TestApproveSelected_PartialFailure(t *testing.T) {
	f := newFixture(t)
	f.evaluated(t, "ok")
	released := f.evaluated(t, "lost-grant")
	_, err := f.ledger.Release(context.Background(), released)
	require.NoError(t, err)
	f.store.PutApplication(&models.Application{ID: "draft", CallID: "call-1", ApplicantID: "u-draft", State: models.ApplicationDraft})
	f.roles.On("AssignRealmRole", mock.Anything, "u-ok", DefaultScholarshipRole).Return(nil)

	result, err := f.engine.ApproveSelected(directorCtx(), []string{"ok", "lost-grant", "draft", "missing", "ok"})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Total, "duplicate ids are collapsed")
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 3, result.Failed)

	codes := map[string]string{}
	for _, item := range result.Items {
		codes[item.ApplicationID] = item.ErrorCode
	}
	assert.Equal(t, "", codes["ok"])
	assert.Equal(t, string(errors.ErrCodeQuotaGrantFailed), codes["lost-grant"])
	assert.Equal(t, string(errors.ErrCodeInvalidApplicationState), codes["draft"])
	assert.Equal(t, string(errors.ErrCodeResourceNotFound), codes["missing"])

	assert.Equal(t, models.ApplicationEvaluated, f.state(t, "lost-grant"), "approval is reverted when the grant fails")
	assert.Equal(t, []string{"ok"}, result.SucceededIDs())
}

func TestApproveSelected_RoleGrantFailureIsPending(t *testing.T) {
	f := newFixture(t)
	f.evaluated(t, "a-1")
	f.roles.On("AssignRealmRole", mock.Anything, "u-a-1", DefaultScholarshipRole).Return(stderrors.New("keycloak down"))

	result, err := f.engine.ApproveSelected(directorCtx(), []string{"a-1"})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, models.ItemSucceeded, result.Items[0].Status)
	assert.True(t, result.Items[0].RoleGrantPending)
	assert.Equal(t, models.ApplicationScholarshipAssigned, f.state(t, "a-1"))
}

func TestApproveSelected_ConcurrentApproversGrantRoleOnce(t *testing.T) {
	f := newFixture(t)
	f.evaluated(t, "a-1")
	f.roles.On("AssignRealmRole", mock.Anything, "u-a-1", DefaultScholarshipRole).Return(nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.engine.ApproveSelected(directorCtx(), []string{"a-1"})
			assert.NoError(t, err)
			assert.Equal(t, 1, result.Succeeded)
		}()
	}
	wg.Wait()

	f.roles.AssertNumberOfCalls(t, "AssignRealmRole", 1)
	q, _ := f.store.Quota("q-1")
	assert.Equal(t, 1, q.Granted)
}

func TestApproveSelected_RequiresDecider(t *testing.T) {
	f := newFixture(t)
	applicant := auth.WithActor(context.Background(), auth.Actor{ID: "u-1", Role: auth.RoleApplicant})

	_, err := f.engine.ApproveSelected(applicant, []string{"a-1"})
	assert.ErrorIs(t, err, errors.ErrForbidden)

	_, err = f.engine.ApproveSelected(directorCtx(), nil)
	assert.ErrorIs(t, err, errors.ErrValidationFailed)
}

func TestRejectRemaining_ReleasesReservation(t *testing.T) {
	f := newFixture(t)
	f.evaluated(t, "a-1")
	f.evaluated(t, "a-2")
	before, _ := f.store.Quota("q-1")
	assert.Equal(t, 2, before.Reserved)

	result, err := f.engine.RejectRemaining(directorCtx(), []string{"a-1", "a-2"}, "  funds exhausted ")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)

	after, _ := f.store.Quota("q-1")
	assert.Equal(t, 0, after.Reserved)
	app, err := f.store.GetApplication(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationRejected, app.State)
	assert.Equal(t, "funds exhausted", app.DecisionReason)
	require.Len(t, f.notifier.notices, 2)
	assert.Equal(t, "funds exhausted", f.notifier.notices[0].Reason)

	again, err := f.engine.RejectRemaining(directorCtx(), []string{"a-1"}, "funds exhausted")
	require.NoError(t, err)
	assert.True(t, again.Items[0].AlreadyApplied)
	assert.Len(t, f.notifier.notices, 2)
}

func TestRejectRemaining_RequiresReason(t *testing.T) {
	f := newFixture(t)
	f.evaluated(t, "a-1")

	_, err := f.engine.RejectRemaining(directorCtx(), []string{"a-1"}, "   ")
	assert.ErrorIs(t, err, errors.ErrValidationFailed)
	assert.Equal(t, models.ApplicationEvaluated, f.state(t, "a-1"))
}

func TestRejectRemaining_SkipsAssigned(t *testing.T) {
	f := newFixture(t)
	f.evaluated(t, "a-1")
	f.roles.On("AssignRealmRole", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	_, err := f.engine.ApproveSelected(directorCtx(), []string{"a-1"})
	require.NoError(t, err)

	result, err := f.engine.RejectRemaining(directorCtx(), []string{"a-1"}, "late")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, string(errors.ErrCodeInvalidApplicationState), result.Items[0].ErrorCode)
	assert.Equal(t, models.ApplicationScholarshipAssigned, f.state(t, "a-1"))
}

// cancellingGrantStore ends the caller's context once a grant has been attempted and refuses work on a
// cancelled context afterwards, the way database/sql does.
type cancellingGrantStore struct {
	*memory.Store
	cancel   context.CancelFunc
	grantErr error
}

func (s *cancellingGrantStore) GrantHandle(ctx context.Context, handleID string, at time.Time) (models.GrantOutcome, error) {
	defer s.cancel()
	if s.grantErr != nil {
		return models.GrantRejected, s.grantErr
	}
	return s.Store.GrantHandle(ctx, handleID, at)
}

func (s *cancellingGrantStore) UpdateState(ctx context.Context, change models.StateChange) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.Store.UpdateState(ctx, change)
}

func (f *fixture) cancellingEngine(t *testing.T, grantErr error) (*Engine, context.Context) {
	ctx, cancel := context.WithCancel(directorCtx())
	t.Cleanup(cancel)
	log := logger.NewTestLogger(t)
	store := &cancellingGrantStore{Store: f.store, cancel: cancel, grantErr: grantErr}
	return NewEngine(store, quota.NewLedger(store, log), f.roles, f.notifier, audit.NewRecorder(f.store, nil, log), "", log), ctx
}

func TestApproveSelected_RevertSurvivesCancelledJob(t *testing.T) {
	f := newFixture(t)
	released := f.evaluated(t, "a-1")
	_, err := f.ledger.Release(context.Background(), released)
	require.NoError(t, err)

	engine, ctx := f.cancellingEngine(t, nil)
	result, err := engine.ApproveSelected(ctx, []string{"a-1"})
	require.NoError(t, err)
	assert.Equal(t, string(errors.ErrCodeQuotaGrantFailed), result.Items[0].ErrorCode)
	assert.Equal(t, models.ApplicationEvaluated, f.state(t, "a-1"))
}

func TestApproveSelected_UnknownGrantOutcomeResumes(t *testing.T) {
	f := newFixture(t)
	f.evaluated(t, "a-1")

	engine, ctx := f.cancellingEngine(t, stderrors.New("connection reset"))
	result, err := engine.ApproveSelected(ctx, []string{"a-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, models.ApplicationApproved, f.state(t, "a-1"), "left for the next run to finish")

	f.roles.On("AssignRealmRole", mock.Anything, "u-a-1", DefaultScholarshipRole).Return(nil).Once()
	resumed, err := f.engine.ApproveSelected(directorCtx(), []string{"a-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.Succeeded)
	assert.Equal(t, models.ApplicationScholarshipAssigned, f.state(t, "a-1"))
	q, _ := f.store.Quota("q-1")
	assert.Equal(t, 1, q.Granted)
}
