// internal/repository/postgres/schema.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"scholarship-workers/internal/common/database"
)

const migration001Up = `
CREATE TABLE IF NOT EXISTS calls (
    id VARCHAR(64) PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    year INTEGER NOT NULL,
    period SMALLINT NOT NULL,
    opens_at TIMESTAMP WITH TIME ZONE,
    closes_at TIMESTAMP WITH TIME ZONE,
    results_at TIMESTAMP WITH TIME ZONE,
    state VARCHAR(20) NOT NULL DEFAULT 'DRAFT',
    created_by VARCHAR(64) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_call_state CHECK (state IN ('DRAFT', 'PUBLISHED', 'PAUSED', 'CLOSED', 'FINALIZED')),
    CONSTRAINT valid_period CHECK (period IN (1, 2))
);

CREATE TABLE IF NOT EXISTS quotas (
    id VARCHAR(64) PRIMARY KEY,
    call_id VARCHAR(64) NOT NULL REFERENCES calls(id) ON DELETE CASCADE,
    scholarship_type VARCHAR(50) NOT NULL,
    faculty VARCHAR(100) NOT NULL,
    capacity INTEGER NOT NULL,
    reserved INTEGER NOT NULL DEFAULT 0,
    granted INTEGER NOT NULL DEFAULT 0,

    CONSTRAINT quota_bounds CHECK (granted >= 0 AND granted <= reserved AND reserved <= capacity),
    CONSTRAINT quota_key UNIQUE (call_id, scholarship_type, faculty)
);

CREATE TABLE IF NOT EXISTS criteria (
    id VARCHAR(64) NOT NULL,
    call_id VARCHAR(64) NOT NULL REFERENCES calls(id) ON DELETE CASCADE,
    name VARCHAR(200) NOT NULL,
    dimension VARCHAR(20) NOT NULL,
    weight INTEGER NOT NULL,
    PRIMARY KEY (call_id, id),

    CONSTRAINT valid_dimension CHECK (dimension IN ('SOCIOECONOMIC', 'ACADEMIC')),
    CONSTRAINT valid_weight CHECK (weight >= 0)
);

CREATE TABLE IF NOT EXISTS requirements (
    id VARCHAR(64) NOT NULL,
    call_id VARCHAR(64) NOT NULL REFERENCES calls(id) ON DELETE CASCADE,
    name VARCHAR(200) NOT NULL,
    mandatory BOOLEAN NOT NULL DEFAULT TRUE,
    PRIMARY KEY (call_id, id)
);

CREATE TABLE IF NOT EXISTS quota_handles (
    id VARCHAR(64) PRIMARY KEY,
    quota_id VARCHAR(64) NOT NULL REFERENCES quotas(id),
    application_id VARCHAR(64) NOT NULL,
    status VARCHAR(20) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_handle_status CHECK (status IN ('RESERVED', 'GRANTED', 'RELEASED'))
);

CREATE INDEX IF NOT EXISTS idx_quota_handles_application ON quota_handles(application_id);

CREATE TABLE IF NOT EXISTS applications (
    id VARCHAR(64) PRIMARY KEY,
    call_id VARCHAR(64) NOT NULL REFERENCES calls(id),
    scholarship_type VARCHAR(50) NOT NULL,
    faculty VARCHAR(100) NOT NULL,
    applicant_id VARCHAR(64) NOT NULL,
    state VARCHAR(30) NOT NULL DEFAULT 'DRAFT',
    prior_state VARCHAR(30),
    score_socioeconomic DOUBLE PRECISION,
    score_academic DOUBLE PRECISION,
    score_total DOUBLE PRECISION,
    current_evaluation_id VARCHAR(64),
    socioeconomic_form JSONB,
    academic_form JSONB,
    documents JSONB NOT NULL DEFAULT '{}'::jsonb,
    quota_handle_id VARCHAR(64),
    observation_note TEXT,
    decision_reason TEXT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    submitted_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_application_state CHECK (state IN (
        'DRAFT', 'RECEIVED', 'EVALUATED', 'APPROVED', 'REJECTED',
        'SCHOLARSHIP_ASSIGNED', 'OBSERVED', 'WITHDRAWN'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_active_applicant
    ON applications(applicant_id, call_id) WHERE state <> 'WITHDRAWN';
CREATE INDEX IF NOT EXISTS idx_applications_call_state ON applications(call_id, state);

CREATE TABLE IF NOT EXISTS evaluations (
    id VARCHAR(64) PRIMARY KEY,
    application_id VARCHAR(64) NOT NULL REFERENCES applications(id),
    preview_id VARCHAR(64) NOT NULL,
    score_socioeconomic DOUBLE PRECISION NOT NULL,
    score_academic DOUBLE PRECISION NOT NULL,
    score_total DOUBLE PRECISION NOT NULL,
    recommendation VARCHAR(20) NOT NULL,
    confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
    attributions JSONB NOT NULL DEFAULT '[]'::jsonb,
    model_version VARCHAR(50) NOT NULL,
    processing_ms BIGINT NOT NULL DEFAULT 0,
    source VARCHAR(10) NOT NULL,
    accepted BOOLEAN NOT NULL DEFAULT TRUE,
    overridden BOOLEAN NOT NULL DEFAULT FALSE,
    is_current BOOLEAN NOT NULL DEFAULT TRUE,
    evaluated_by VARCHAR(64) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_evaluations_current
    ON evaluations(application_id) WHERE is_current;

CREATE TABLE IF NOT EXISTS evaluation_overrides (
    id VARCHAR(64) PRIMARY KEY,
    evaluation_id VARCHAR(64) NOT NULL REFERENCES evaluations(id),
    application_id VARCHAR(64) NOT NULL REFERENCES applications(id),
    preview_id VARCHAR(64) NOT NULL,
    original_socioeconomic DOUBLE PRECISION NOT NULL,
    original_academic DOUBLE PRECISION NOT NULL,
    original_total DOUBLE PRECISION NOT NULL,
    edited_socioeconomic DOUBLE PRECISION NOT NULL,
    edited_academic DOUBLE PRECISION NOT NULL,
    edited_total DOUBLE PRECISION NOT NULL,
    justification TEXT NOT NULL,
    editor_id VARCHAR(64) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT justification_required CHECK (length(trim(justification)) > 0)
);

CREATE TABLE IF NOT EXISTS audit_log (
    id VARCHAR(64) PRIMARY KEY,
    event_type VARCHAR(50) NOT NULL,
    resource_type VARCHAR(30) NOT NULL,
    resource_id VARCHAR(64) NOT NULL,
    actor_id VARCHAR(64) NOT NULL,
    details JSONB,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_audit_log_resource ON audit_log(resource_type, resource_id, created_at DESC);
`

// Migration is one versioned schema step.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

// Migrations returns the embedded schema history in apply order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_scholarship_schema", UpSQL: migration001Up},
	}
}

// Migrate applies every migration not yet recorded in schema_migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, mig := range Migrations() {
		if applied[mig.Version] {
			continue
		}
		err := database.WithTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", mig.Version, mig.Name, err)
		}
	}
	return nil
}
