// internal/repository/postgres/calls.go
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

const callExistsQuery = `SELECT 1 FROM calls WHERE id = $1`

func (s *Store) GetCall(ctx context.Context, id string) (*models.Call, error) {
	var (
		call                        models.Call
		opensAt, closesAt, resultAt sql.NullTime
		state                       string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, year, period, opens_at, closes_at, results_at, state, created_by, created_at, updated_at
		FROM calls WHERE id = $1`, id).Scan(
		&call.ID, &call.Title, &call.Year, &call.Period, &opensAt, &closesAt, &resultAt,
		&state, &call.CreatedBy, &call.CreatedAt, &call.UpdatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load call: %w", err)
	}
	call.State = models.CallState(state)
	call.OpensAt = timePtr(opensAt)
	call.ClosesAt = timePtr(closesAt)
	call.ResultsAt = timePtr(resultAt)

	if call.Quotas, err = s.ListQuotas(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, dimension, weight FROM criteria WHERE call_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load criteria: %w", err)
	}
	for rows.Next() {
		var c models.Criterion
		var dim string
		if err := rows.Scan(&c.ID, &c.Name, &dim, &c.Weight); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan criterion: %w", err)
		}
		c.Dimension = models.Dimension(dim)
		call.Criteria = append(call.Criteria, c)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT id, name, mandatory FROM requirements WHERE call_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load requirements: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r models.Requirement
		if err := rows.Scan(&r.ID, &r.Name, &r.Mandatory); err != nil {
			return nil, fmt.Errorf("failed to scan requirement: %w", err)
		}
		call.Requirements = append(call.Requirements, r)
	}
	return &call, rows.Err()
}

func (s *Store) UpdateCallState(ctx context.Context, id string, from, to models.CallState, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE calls SET state = $1, updated_at = $2 WHERE id = $3 AND state = $4`,
		string(to), at, id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to update call state: %w", err)
	}
	return applied(ctx, s.db, res, callExistsQuery, id)
}

// ReplaceConfiguration rewrites the call header and its child rows while the call is DRAFT.
func (s *Store) ReplaceConfiguration(ctx context.Context, call *models.Call, at time.Time) (bool, error) {
	var changed bool
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE calls SET title = $1, year = $2, period = $3, opens_at = $4, closes_at = $5,
				results_at = $6, updated_at = $7
			WHERE id = $8 AND state = 'DRAFT'`,
			call.Title, call.Year, call.Period, nullTime(call.OpensAt), nullTime(call.ClosesAt),
			nullTime(call.ResultsAt), at, call.ID)
		if err != nil {
			return fmt.Errorf("failed to update call: %w", err)
		}
		if changed, err = applied(ctx, tx, res, callExistsQuery, call.ID); err != nil || !changed {
			return err
		}

		for _, stmt := range []string{
			`DELETE FROM quotas WHERE call_id = $1`,
			`DELETE FROM criteria WHERE call_id = $1`,
			`DELETE FROM requirements WHERE call_id = $1`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, call.ID); err != nil {
				return fmt.Errorf("failed to clear call configuration: %w", err)
			}
		}
		for _, q := range call.Quotas {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO quotas (id, call_id, scholarship_type, faculty, capacity)
				VALUES ($1, $2, $3, $4, $5)`,
				q.ID, call.ID, q.ScholarshipType, q.Faculty, q.Capacity); err != nil {
				return fmt.Errorf("failed to insert quota: %w", err)
			}
		}
		for _, c := range call.Criteria {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO criteria (id, call_id, name, dimension, weight) VALUES ($1, $2, $3, $4, $5)`,
				c.ID, call.ID, c.Name, string(c.Dimension), c.Weight); err != nil {
				return fmt.Errorf("failed to insert criterion: %w", err)
			}
		}
		for _, r := range call.Requirements {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO requirements (id, call_id, name, mandatory) VALUES ($1, $2, $3, $4)`,
				r.ID, call.ID, r.Name, r.Mandatory); err != nil {
				return fmt.Errorf("failed to insert requirement: %w", err)
			}
		}
		return nil
	})
	return changed, err
}
