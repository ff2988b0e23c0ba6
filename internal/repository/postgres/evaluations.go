// internal/repository/postgres/evaluations.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"scholarship-workers/internal/common/database"
	"scholarship-workers/internal/models"
)

// CommitEvaluation moves the application to EVALUATED and persists the record in one transaction.
// The score written to the application is the override's edited triple when one is given.
func (s *Store) CommitEvaluation(ctx context.Context, record *models.EvaluationRecord, override *models.OverrideRecord) (bool, error) {
	attributions, err := json.Marshal(record.Attributions)
	if err != nil {
		return false, fmt.Errorf("failed to encode attributions: %w", err)
	}
	score := record.Scores
	if override != nil {
		score = override.EditedScores
	}

	var committed bool
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE applications SET state = $1, score_socioeconomic = $2, score_academic = $3,
				score_total = $4, current_evaluation_id = $5, updated_at = $6
			WHERE id = $7 AND state = $8`,
			string(models.ApplicationEvaluated), score.Socioeconomic, score.Academic, score.Total,
			record.ID, record.CreatedAt, record.ApplicationID, string(models.ApplicationReceived))
		if err != nil {
			return fmt.Errorf("failed to mark application evaluated: %w", err)
		}
		if committed, err = applied(ctx, tx, res, applicationExistsQuery, record.ApplicationID); err != nil || !committed {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE evaluations SET is_current = FALSE WHERE application_id = $1 AND is_current`,
			record.ApplicationID); err != nil {
			return fmt.Errorf("failed to retire previous evaluation: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO evaluations (id, application_id, preview_id, score_socioeconomic, score_academic,
				score_total, recommendation, confidence, attributions, model_version, processing_ms,
				source, accepted, overridden, is_current, evaluated_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12, $13, $14, TRUE, $15, $16)`,
			record.ID, record.ApplicationID, record.PreviewID, record.Scores.Socioeconomic,
			record.Scores.Academic, record.Scores.Total, string(record.Recommendation), record.Confidence,
			string(attributions), record.ModelVersion, record.ProcessingMs, string(record.Source),
			record.Accepted, record.Overridden, record.EvaluatedBy, record.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert evaluation: %w", err)
		}

		if override == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO evaluation_overrides (id, evaluation_id, application_id, preview_id,
				original_socioeconomic, original_academic, original_total,
				edited_socioeconomic, edited_academic, edited_total, justification, editor_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			override.ID, override.EvaluationID, override.ApplicationID, override.PreviewID,
			override.OriginalScores.Socioeconomic, override.OriginalScores.Academic, override.OriginalScores.Total,
			override.EditedScores.Socioeconomic, override.EditedScores.Academic, override.EditedScores.Total,
			override.Justification, override.EditorID, override.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert evaluation override: %w", err)
		}
		return nil
	})
	return committed, err
}

func (s *Store) ListEvaluations(ctx context.Context, applicationID string) ([]models.EvaluationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, application_id, preview_id, score_socioeconomic, score_academic, score_total,
			recommendation, confidence, attributions, model_version, processing_ms, source,
			accepted, overridden, is_current, evaluated_by, created_at
		FROM evaluations WHERE application_id = $1 ORDER BY created_at`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	var records []models.EvaluationRecord
	for rows.Next() {
		var (
			r              models.EvaluationRecord
			recommendation string
			source         string
			attributions   []byte
		)
		if err := rows.Scan(&r.ID, &r.ApplicationID, &r.PreviewID, &r.Scores.Socioeconomic,
			&r.Scores.Academic, &r.Scores.Total, &recommendation, &r.Confidence, &attributions,
			&r.ModelVersion, &r.ProcessingMs, &source, &r.Accepted, &r.Overridden, &r.Current,
			&r.EvaluatedBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		r.Recommendation = models.Recommendation(recommendation)
		r.Source = models.EvaluationSource(source)
		if len(attributions) > 0 {
			if err := json.Unmarshal(attributions, &r.Attributions); err != nil {
				return nil, fmt.Errorf("failed to decode attributions: %w", err)
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) ListOverrides(ctx context.Context, applicationID string) ([]models.OverrideRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, evaluation_id, application_id, preview_id,
			original_socioeconomic, original_academic, original_total,
			edited_socioeconomic, edited_academic, edited_total, justification, editor_id, created_at
		FROM evaluation_overrides WHERE application_id = $1 ORDER BY created_at`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	defer rows.Close()

	var out []models.OverrideRecord
	for rows.Next() {
		var o models.OverrideRecord
		if err := rows.Scan(&o.ID, &o.EvaluationID, &o.ApplicationID, &o.PreviewID,
			&o.OriginalScores.Socioeconomic, &o.OriginalScores.Academic, &o.OriginalScores.Total,
			&o.EditedScores.Socioeconomic, &o.EditedScores.Academic, &o.EditedScores.Total,
			&o.Justification, &o.EditorID, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) AppendAudit(ctx context.Context, event *models.AuditEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, event_type, resource_type, resource_id, actor_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
		event.ID, string(event.EventType), event.ResourceType, event.ResourceID, event.ActorID,
		string(details), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}
