// internal/repository/postgres/quotas.go
package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"scholarship-workers/internal/common/database"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository"
)

func (s *Store) ListQuotas(ctx context.Context, callID string) ([]models.Quota, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, call_id, scholarship_type, faculty, capacity, reserved, granted
		FROM quotas WHERE call_id = $1 ORDER BY id`, callID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotas: %w", err)
	}
	defer rows.Close()

	var quotas []models.Quota
	for rows.Next() {
		var q models.Quota
		if err := rows.Scan(&q.ID, &q.CallID, &q.ScholarshipType, &q.Faculty, &q.Capacity, &q.Reserved, &q.Granted); err != nil {
			return nil, fmt.Errorf("failed to scan quota: %w", err)
		}
		quotas = append(quotas, q)
	}
	return quotas, rows.Err()
}

// ReserveQuota takes one unit with a conditional increment, so concurrent submitters never overshoot capacity.
func (s *Store) ReserveQuota(ctx context.Context, quotaID string, handle models.QuotaHandle) (bool, error) {
	var reserved bool
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE quotas SET reserved = reserved + 1 WHERE id = $1 AND reserved < capacity`, quotaID)
		if err != nil {
			return fmt.Errorf("failed to reserve quota: %w", err)
		}
		if reserved, err = applied(ctx, tx, res, `SELECT 1 FROM quotas WHERE id = $1`, quotaID); err != nil || !reserved {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO quota_handles (id, quota_id, application_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)`,
			handle.ID, quotaID, handle.ApplicationID, string(models.HandleReserved), handle.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to record quota handle: %w", err)
		}
		return nil
	})
	return reserved, err
}

func (s *Store) GetHandle(ctx context.Context, handleID string) (*models.QuotaHandle, error) {
	var h models.QuotaHandle
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, quota_id, application_id, status, created_at, updated_at
		FROM quota_handles WHERE id = $1`, handleID).Scan(
		&h.ID, &h.QuotaID, &h.ApplicationID, &status, &h.CreatedAt, &h.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quota handle: %w", err)
	}
	h.Status = models.HandleStatus(status)
	return &h, nil
}

// lockHandle reads the handle row FOR UPDATE inside tx.
func lockHandle(ctx context.Context, tx *sql.Tx, handleID string) (quotaID string, status models.HandleStatus, err error) {
	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT quota_id, status FROM quota_handles WHERE id = $1 FOR UPDATE`, handleID).Scan(&quotaID, &raw)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", "", repository.ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to lock quota handle: %w", err)
	}
	return quotaID, models.HandleStatus(raw), nil
}

func (s *Store) GrantHandle(ctx context.Context, handleID string, at time.Time) (models.GrantOutcome, error) {
	outcome := models.GrantRejected
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		quotaID, status, err := lockHandle(ctx, tx, handleID)
		if err != nil {
			return err
		}
		switch status {
		case models.HandleGranted:
			outcome = models.GrantAlreadyApplied
			return nil
		case models.HandleReleased:
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE quota_handles SET status = $1, updated_at = $2 WHERE id = $3`,
			string(models.HandleGranted), at, handleID); err != nil {
			return fmt.Errorf("failed to grant quota handle: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE quotas SET granted = granted + 1 WHERE id = $1`, quotaID); err != nil {
			return fmt.Errorf("failed to count granted quota: %w", err)
		}
		outcome = models.GrantApplied
		return nil
	})
	if err != nil {
		return models.GrantRejected, err
	}
	return outcome, nil
}

func (s *Store) ReleaseHandle(ctx context.Context, handleID string, at time.Time) (models.ReleaseOutcome, error) {
	outcome := models.ReleaseRejected
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		quotaID, status, err := lockHandle(ctx, tx, handleID)
		if err != nil {
			return err
		}
		switch status {
		case models.HandleReleased:
			outcome = models.ReleaseAlreadyApplied
			return nil
		case models.HandleGranted:
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE quota_handles SET status = $1, updated_at = $2 WHERE id = $3`,
			string(models.HandleReleased), at, handleID); err != nil {
			return fmt.Errorf("failed to release quota handle: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE quotas SET reserved = reserved - 1 WHERE id = $1`, quotaID); err != nil {
			return fmt.Errorf("failed to return quota capacity: %w", err)
		}
		outcome = models.ReleaseApplied
		return nil
	})
	if err != nil {
		return models.ReleaseRejected, err
	}
	return outcome, nil
}
