// internal/services/quota/ledger.go
package quota

import (
	"context"
	stderrors "errors"
	"time"

	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/metrics"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository"

	"github.com/google/uuid"
)

// Ledger reserves, grants and releases quota capacity. Row-level atomicity lives in the store.
type Ledger struct {
	store  repository.QuotaStore
	logger logger.Logger
	now    func() time.Time
}

func NewLedger(store repository.QuotaStore, log logger.Logger) *Ledger {
	return &Ledger{store: store, logger: log, now: time.Now}
}

// candidates orders matching quotas: exact faculty first, then ALL.
func candidates(quotas []models.Quota, scholarshipType, faculty string) []models.Quota {
	var exact, shared []models.Quota
	for _, q := range quotas {
		if q.ScholarshipType != scholarshipType {
			continue
		}
		switch {
		case q.Faculty == faculty:
			exact = append(exact, q)
		case q.Faculty == models.FacultyAll:
			shared = append(shared, q)
		}
	}
	return append(exact, shared...)
}

// Reserve takes one unit of capacity for the application. The exact-faculty quota is tried before ALL.
func (l *Ledger) Reserve(ctx context.Context, callID, scholarshipType, faculty, applicationID string) (*models.QuotaHandle, error) {
	quotas, err := l.store.ListQuotas(ctx, callID)
	if err != nil {
		return nil, repository.Translate(err, "list quotas", "call", callID)
	}

	for _, q := range candidates(quotas, scholarshipType, faculty) {
		now := l.now().UTC()
		handle := models.QuotaHandle{
			ID:            uuid.NewString(),
			QuotaID:       q.ID,
			ApplicationID: applicationID,
			Status:        models.HandleReserved,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		ok, err := l.store.ReserveQuota(ctx, q.ID, handle)
		if err != nil {
			metrics.QuotaOperations.WithLabelValues("reserve", "error").Inc()
			return nil, repository.Translate(err, "reserve quota", "quota", q.ID)
		}
		if ok {
			metrics.QuotaOperations.WithLabelValues("reserve", "reserved").Inc()
			l.logger.Debug("quota reserved", map[string]interface{}{
				"quotaId":       q.ID,
				"handleId":      handle.ID,
				"applicationId": applicationID,
			})
			return &handle, nil
		}
	}

	metrics.QuotaOperations.WithLabelValues("reserve", "exhausted").Inc()
	return nil, errors.NewQuotaExhaustedError(callID, scholarshipType, faculty)
}

// Grant converts the reservation into a grant. Granting twice is a no-op.
func (l *Ledger) Grant(ctx context.Context, handleID string) (models.GrantOutcome, error) {
	if handleID == "" {
		return models.GrantRejected, errors.NewQuotaGrantFailedError(handleID, "application holds no reservation")
	}
	outcome, err := l.store.GrantHandle(ctx, handleID, l.now().UTC())
	if err != nil {
		metrics.QuotaOperations.WithLabelValues("grant", "error").Inc()
		if stderrors.Is(err, repository.ErrNotFound) {
			return models.GrantRejected, errors.NewQuotaGrantFailedError(handleID, "reservation not found")
		}
		return models.GrantRejected, repository.Translate(err, "grant quota", "quota handle", handleID)
	}
	metrics.QuotaOperations.WithLabelValues("grant", string(outcome)).Inc()
	if outcome == models.GrantRejected {
		return outcome, errors.NewQuotaGrantFailedError(handleID, "reservation was already released")
	}
	return outcome, nil
}

// Release returns reserved capacity. Releasing twice is a no-op; releasing a granted handle fails.
func (l *Ledger) Release(ctx context.Context, handleID string) (models.ReleaseOutcome, error) {
	if handleID == "" {
		return models.ReleaseAlreadyApplied, nil
	}
	outcome, err := l.store.ReleaseHandle(ctx, handleID, l.now().UTC())
	if err != nil {
		metrics.QuotaOperations.WithLabelValues("release", "error").Inc()
		return models.ReleaseRejected, repository.Translate(err, "release quota", "quota handle", handleID)
	}
	metrics.QuotaOperations.WithLabelValues("release", string(outcome)).Inc()
	if outcome == models.ReleaseRejected {
		return outcome, errors.NewQuotaReleaseFailedError(handleID, "reservation was already granted")
	}
	return outcome, nil
}

// AvailableCapacity is advisory. Admission always re-checks atomically in Reserve.
func (l *Ledger) AvailableCapacity(ctx context.Context, callID, scholarshipType, faculty string) (int, error) {
	quotas, err := l.store.ListQuotas(ctx, callID)
	if err != nil {
		return 0, repository.Translate(err, "list quotas", "call", callID)
	}
	available := 0
	for _, q := range candidates(quotas, scholarshipType, faculty) {
		available += q.Available()
	}
	return available, nil
}
