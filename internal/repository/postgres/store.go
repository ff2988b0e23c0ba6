// internal/repository/postgres/store.go
package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"scholarship-workers/internal/repository"

	"github.com/lib/pq"
)

// Store implements every repository interface on one *sql.DB. Multi-row changes run in WithTx.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

var (
	_ repository.CallStore        = (*Store)(nil)
	_ repository.QuotaStore       = (*Store)(nil)
	_ repository.ApplicationStore = (*Store)(nil)
	_ repository.EvaluationStore  = (*Store)(nil)
	_ repository.AuditStore       = (*Store)(nil)
)

// isUniqueViolation matches SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// applied turns a conditional update into (changed, err). When nothing changed it checks whether
// the row exists at all so callers can tell a lost race from a missing id.
func applied(ctx context.Context, q execer, res sql.Result, existsQuery, id string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	var one int
	if err := q.QueryRowContext(ctx, existsQuery, id).Scan(&one); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return false, repository.ErrNotFound
		}
		return false, err
	}
	return false, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
