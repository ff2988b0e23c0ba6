// internal/services/calls/manager_test.go
package calls

import (
	"context"
	"testing"

	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository/memory"
	"scholarship-workers/internal/services/audit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = auth.Actor{ID: "admin-1", Role: auth.RoleAdmin}

func newManager(t *testing.T, call *models.Call) (*Manager, *memory.Store) {
	store := memory.NewStore()
	if call != nil {
		store.PutCall(call)
	}
	log := logger.NewTestLogger(t)
	return NewManager(store, store, audit.NewRecorder(store, nil, log), log), store
}

func adminCtx() context.Context {
	return auth.WithActor(context.Background(), admin)
}

func draftCall(weights ...int) *models.Call {
	call := &models.Call{
		ID:     "call-1",
		Title:  "2026-1 scholarships",
		Year:   2026,
		Period: 1,
		State:  models.CallDraft,
		Quotas: []models.Quota{{ID: "q-1", ScholarshipType: "FOOD", Faculty: models.FacultyAll, Capacity: 10}},
	}
	dims := []models.Dimension{models.DimensionSocioeconomic, models.DimensionAcademic}
	for i, w := range weights {
		call.Criteria = append(call.Criteria, models.Criterion{
			ID: string(rune('a' + i)), Name: "criterion", Dimension: dims[i%2], Weight: w,
		})
	}
	return call
}

func TestTransition_PublishRequiresWeightsOf100(t *testing.T) {
	for _, tc := range []struct {
		name    string
		weights []int
		ok      bool
	}{
		{"exact", []int{70, 30}, true},
		{"under", []int{60, 30}, false},
		{"over", []int{70, 40}, false},
		{"none", nil, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			manager, _ := newManager(t, draftCall(tc.weights...))
			res, err := manager.Transition(adminCtx(), "call-1", models.CallPublished)
			if tc.ok {
				require.NoError(t, err)
				assert.True(t, res.Changed)
				return
			}
			assert.ErrorIs(t, err, errors.ErrInvalidCallConfiguration)
		})
	}
}

func TestTransition_PublishRequiresCapacity(t *testing.T) {
	call := draftCall(70, 30)
	call.Quotas[0].Capacity = 0
	manager, _ := newManager(t, call)

	_, err := manager.Transition(adminCtx(), "call-1", models.CallPublished)
	assert.ErrorIs(t, err, errors.ErrInvalidCallConfiguration)
}

func TestTransition_StateMachine(t *testing.T) {
	manager, store := newManager(t, draftCall(70, 30))
	ctx := adminCtx()

	_, err := manager.Transition(ctx, "call-1", models.CallClosed)
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)

	for _, to := range []models.CallState{models.CallPublished, models.CallPaused, models.CallPublished, models.CallClosed} {
		_, err := manager.Transition(ctx, "call-1", to)
		require.NoError(t, err, "to %s", to)
	}

	res, err := manager.Transition(ctx, "call-1", models.CallClosed)
	require.NoError(t, err)
	assert.False(t, res.Changed, "closing a closed call is a no-op")

	_, err = manager.Transition(ctx, "call-1", models.CallPublished)
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)

	_, err = manager.Transition(ctx, "call-1", models.CallFinalized)
	require.NoError(t, err)

	var transitions int
	for _, e := range store.AuditEvents() {
		if e.EventType == models.AuditCallTransitioned {
			transitions++
		}
	}
	assert.Equal(t, 5, transitions)
}

func TestTransition_FinalizeBlockedByUnresolved(t *testing.T) {
	call := draftCall(70, 30)
	call.State = models.CallClosed
	manager, store := newManager(t, call)
	ctx := adminCtx()

	store.PutApplication(&models.Application{ID: "a-1", CallID: "call-1", ApplicantID: "u-1", State: models.ApplicationEvaluated})
	store.PutApplication(&models.Application{ID: "a-2", CallID: "call-1", ApplicantID: "u-2", State: models.ApplicationScholarshipAssigned})

	_, err := manager.Transition(ctx, "call-1", models.CallFinalized)
	require.ErrorIs(t, err, errors.ErrUnresolvedApplicationsExist)

	store.PutApplication(&models.Application{ID: "a-1", CallID: "call-1", ApplicantID: "u-1", State: models.ApplicationRejected})
	_, err = manager.Transition(ctx, "call-1", models.CallFinalized)
	require.NoError(t, err)
}

func TestTransition_RequiresAdmin(t *testing.T) {
	manager, _ := newManager(t, draftCall(70, 30))

	ctx := auth.WithActor(context.Background(), auth.Actor{ID: "d-1", Role: auth.RoleDirector})
	_, err := manager.Transition(ctx, "call-1", models.CallPublished)
	assert.ErrorIs(t, err, errors.ErrForbidden)

	_, err = manager.Transition(context.Background(), "call-1", models.CallPublished)
	assert.ErrorIs(t, err, errors.ErrAuthentication)
}

func TestTransition_UnknownCall(t *testing.T) {
	manager, _ := newManager(t, nil)
	_, err := manager.Transition(adminCtx(), "missing", models.CallPublished)
	assert.ErrorIs(t, err, errors.ErrResourceNotFound)
}

func TestConfigure(t *testing.T) {
	manager, store := newManager(t, draftCall())
	cfg := Configuration{
		Title:  "2026-1 scholarships",
		Year:   2026,
		Period: 1,
		Quotas: []models.Quota{
			{ScholarshipType: "FOOD", Faculty: "ENGINEERING", Capacity: 3},
			{ScholarshipType: "FOOD", Faculty: models.FacultyAll, Capacity: 5},
		},
		Criteria: []models.Criterion{
			{Name: "Socioeconomic", Dimension: models.DimensionSocioeconomic, Weight: 70},
			{Name: "Academic", Dimension: models.DimensionAcademic, Weight: 30},
		},
		Requirements: []models.Requirement{{ID: "id-card", Name: "Identity card", Mandatory: true}},
	}

	call, err := manager.Configure(adminCtx(), "call-1", cfg)
	require.NoError(t, err)
	assert.Equal(t, 8, call.TotalCapacity())
	assert.Equal(t, 100, call.WeightTotal())
	for _, q := range call.Quotas {
		assert.NotEmpty(t, q.ID)
	}
	_, stillThere := store.Quota("q-1")
	assert.False(t, stillThere, "old quotas are replaced")

	_, err = manager.Transition(adminCtx(), "call-1", models.CallPublished)
	require.NoError(t, err)

	_, err = manager.Configure(adminCtx(), "call-1", cfg)
	assert.ErrorIs(t, err, errors.ErrInvalidCallState, "published calls are immutable")
}

func TestConfigure_RejectsMalformedInput(t *testing.T) {
	manager, _ := newManager(t, draftCall())
	base := Configuration{Title: "t", Year: 2026, Period: 1}

	bad := base
	bad.Period = 3
	_, err := manager.Configure(adminCtx(), "call-1", bad)
	assert.ErrorIs(t, err, errors.ErrInvalidCallConfiguration)

	bad = base
	bad.Criteria = []models.Criterion{{Name: "x", Dimension: "SPORTS", Weight: 10}}
	_, err = manager.Configure(adminCtx(), "call-1", bad)
	assert.ErrorIs(t, err, errors.ErrInvalidCallConfiguration)

	bad = base
	bad.Quotas = []models.Quota{
		{ScholarshipType: "FOOD", Faculty: "LAW", Capacity: 1},
		{ScholarshipType: "FOOD", Faculty: "LAW", Capacity: 2},
	}
	_, err = manager.Configure(adminCtx(), "call-1", bad)
	assert.ErrorIs(t, err, errors.ErrInvalidCallConfiguration)
}
