// internal/services/quota/ledger_test.go
package quota

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T, quotas ...models.Quota) (*Ledger, *memory.Store) {
	store := memory.NewStore()
	store.PutCall(&models.Call{ID: "call-1", State: models.CallPublished, Quotas: quotas})
	return NewLedger(store, logger.NewTestLogger(t)), store
}

func TestReserve_PrefersExactFaculty(t *testing.T) {
	ledger, store := newLedger(t,
		models.Quota{ID: "q-all", ScholarshipType: "FOOD", Faculty: models.FacultyAll, Capacity: 5},
		models.Quota{ID: "q-eng", ScholarshipType: "FOOD", Faculty: "ENGINEERING", Capacity: 1},
	)
	ctx := context.Background()

	h, err := ledger.Reserve(ctx, "call-1", "FOOD", "ENGINEERING", "a-1")
	require.NoError(t, err)
	assert.Equal(t, "q-eng", h.QuotaID)

	h, err = ledger.Reserve(ctx, "call-1", "FOOD", "ENGINEERING", "a-2")
	require.NoError(t, err)
	assert.Equal(t, "q-all", h.QuotaID, "falls back to ALL once the exact quota is full")

	eng, _ := store.Quota("q-eng")
	all, _ := store.Quota("q-all")
	assert.Equal(t, 1, eng.Reserved)
	assert.Equal(t, 1, all.Reserved)
}

func TestReserve_NoMatchingQuota(t *testing.T) {
	ledger, _ := newLedger(t, models.Quota{ID: "q-1", ScholarshipType: "HOUSING", Faculty: "LAW", Capacity: 3})

	_, err := ledger.Reserve(context.Background(), "call-1", "HOUSING", "MEDICINE", "a-1")
	assert.ErrorIs(t, err, errors.ErrQuotaExhausted)
}

func TestReserve_ConcurrentSubmittersNeverOvershoot(t *testing.T) {
	ledger, store := newLedger(t, models.Quota{ID: "q-1", ScholarshipType: "FOOD", Faculty: models.FacultyAll, Capacity: 2})
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ledger.Reserve(ctx, "call-1", "FOOD", "SCIENCE", fmt.Sprintf("a-%d", i))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if assert.ErrorIs(t, err, errors.ErrQuotaExhausted) {
				exhausted++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, exhausted)
	q, _ := store.Quota("q-1")
	assert.True(t, q.Consistent())
	assert.Equal(t, 2, q.Reserved)
}

func TestGrantAndRelease(t *testing.T) {
	ledger, store := newLedger(t, models.Quota{ID: "q-1", ScholarshipType: "FOOD", Faculty: models.FacultyAll, Capacity: 2})
	ctx := context.Background()

	granted, err := ledger.Reserve(ctx, "call-1", "FOOD", "LAW", "a-1")
	require.NoError(t, err)
	released, err := ledger.Reserve(ctx, "call-1", "FOOD", "LAW", "a-2")
	require.NoError(t, err)

	outcome, err := ledger.Grant(ctx, granted.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GrantApplied, outcome)

	outcome, err = ledger.Grant(ctx, granted.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GrantAlreadyApplied, outcome)

	_, err = ledger.Release(ctx, granted.ID)
	assert.ErrorIs(t, err, errors.ErrQuotaReleaseFailed)

	rel, err := ledger.Release(ctx, released.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReleaseApplied, rel)

	rel, err = ledger.Release(ctx, released.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReleaseAlreadyApplied, rel)

	_, err = ledger.Grant(ctx, released.ID)
	assert.ErrorIs(t, err, errors.ErrQuotaGrantFailed)

	_, err = ledger.Grant(ctx, "")
	assert.ErrorIs(t, err, errors.ErrQuotaGrantFailed)

	q, _ := store.Quota("q-1")
	assert.Equal(t, 1, q.Reserved)
	assert.Equal(t, 1, q.Granted)
	assert.True(t, q.Consistent())
}

func TestAvailableCapacity(t *testing.T) {
	ledger, _ := newLedger(t,
		models.Quota{ID: "q-all", ScholarshipType: "FOOD", Faculty: models.FacultyAll, Capacity: 3},
		models.Quota{ID: "q-law", ScholarshipType: "FOOD", Faculty: "LAW", Capacity: 2},
		models.Quota{ID: "q-med", ScholarshipType: "FOOD", Faculty: "MEDICINE", Capacity: 4},
	)
	ctx := context.Background()

	_, err := ledger.Reserve(ctx, "call-1", "FOOD", "LAW", "a-1")
	require.NoError(t, err)

	n, err := ledger.AvailableCapacity(ctx, "call-1", "FOOD", "LAW")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
