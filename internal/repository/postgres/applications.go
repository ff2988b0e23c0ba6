// internal/repository/postgres/applications.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository"

	"github.com/lib/pq"
)

const (
	applicationExistsQuery = `SELECT 1 FROM applications WHERE id = $1`

	applicationColumns = `id, call_id, scholarship_type, faculty, applicant_id, state, prior_state,
		score_socioeconomic, score_academic, score_total, current_evaluation_id,
		socioeconomic_form, academic_form, documents, quota_handle_id, observation_note,
		decision_reason, created_at, submitted_at, updated_at`
)

func (s *Store) CreateApplication(ctx context.Context, app *models.Application) error {
	docs, err := json.Marshal(documentsOrEmpty(app.Documents))
	if err != nil {
		return fmt.Errorf("failed to encode documents: %w", err)
	}
	socio, err := jsonOrNull(app.SocioeconomicForm)
	if err != nil {
		return err
	}
	academic, err := jsonOrNull(app.AcademicForm)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO applications (id, call_id, scholarship_type, faculty, applicant_id, state,
			socioeconomic_form, academic_form, documents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9::jsonb, $10, $10)`,
		app.ID, app.CallID, app.ScholarshipType, app.Faculty, app.ApplicantID, string(app.State),
		socio, academic, string(docs), app.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return app, err
}

func (s *Store) SaveForms(ctx context.Context, update repository.FormsUpdate) (bool, error) {
	socio, err := jsonOrNull(update.Socioeconomic)
	if err != nil {
		return false, err
	}
	academic, err := jsonOrNull(update.Academic)
	if err != nil {
		return false, err
	}
	docs, err := json.Marshal(documentsOrEmpty(update.Documents))
	if err != nil {
		return false, fmt.Errorf("failed to encode documents: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE applications SET
			socioeconomic_form = COALESCE($1::jsonb, socioeconomic_form),
			academic_form = COALESCE($2::jsonb, academic_form),
			documents = documents || $3::jsonb,
			updated_at = $4
		WHERE id = $5 AND state = ANY($6)`,
		socio, academic, string(docs), update.At, update.ApplicationID, pq.Array(stateStrings(update.AllowedStates)))
	if err != nil {
		return false, fmt.Errorf("failed to save application forms: %w", err)
	}
	return applied(ctx, s.db, res, applicationExistsQuery, update.ApplicationID)
}

// UpdateState builds the SET list from the non-nil fields of the change and guards it on the expected state.
func (s *Store) UpdateState(ctx context.Context, change models.StateChange) (bool, error) {
	sets := []string{"state = $1", "updated_at = $2"}
	args := []interface{}{string(change.To), change.At}
	add := func(column string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if change.PriorState != nil {
		add("prior_state", nullString(string(*change.PriorState)))
	}
	if change.QuotaHandleID != nil {
		add("quota_handle_id", nullString(*change.QuotaHandleID))
	}
	if change.SubmittedAt != nil {
		add("submitted_at", *change.SubmittedAt)
	}
	if change.ObservationNote != nil {
		add("observation_note", nullString(*change.ObservationNote))
	}
	if change.DecisionReason != nil {
		add("decision_reason", nullString(*change.DecisionReason))
	}
	if change.ClearScore {
		sets = append(sets,
			"score_socioeconomic = NULL", "score_academic = NULL", "score_total = NULL", "current_evaluation_id = NULL")
	}

	args = append(args, change.ApplicationID, string(change.From))
	query := fmt.Sprintf(`UPDATE applications SET %s WHERE id = $%d AND state = $%d`,
		strings.Join(sets, ", "), len(args)-1, len(args))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update application state: %w", err)
	}
	return applied(ctx, s.db, res, applicationExistsQuery, change.ApplicationID)
}

func (s *Store) ListByCallAndState(ctx context.Context, callID string, states ...models.ApplicationState) ([]models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE call_id = $1`
	args := []interface{}{callID}
	if len(states) > 0 {
		query += ` AND state = ANY($2)`
		args = append(args, pq.Array(stateStrings(states)))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

func (s *Store) CountByCallAndState(ctx context.Context, callID string, states ...models.ApplicationState) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications WHERE call_id = $1 AND state = ANY($2)`,
		callID, pq.Array(stateStrings(states))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count applications: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row scanner) (*models.Application, error) {
	var (
		app                          models.Application
		state                        string
		prior, evalID, handleID      sql.NullString
		note, reason                 sql.NullString
		socioRaw, academicRaw, docs  []byte
		scoreSocio, scoreAcad, total sql.NullFloat64
		submittedAt                  sql.NullTime
	)
	err := row.Scan(
		&app.ID, &app.CallID, &app.ScholarshipType, &app.Faculty, &app.ApplicantID, &state, &prior,
		&scoreSocio, &scoreAcad, &total, &evalID,
		&socioRaw, &academicRaw, &docs, &handleID, &note,
		&reason, &app.CreatedAt, &submittedAt, &app.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan application: %w", err)
	}

	app.State = models.ApplicationState(state)
	app.PriorState = models.ApplicationState(prior.String)
	app.CurrentEvaluationID = evalID.String
	app.QuotaHandleID = handleID.String
	app.ObservationNote = note.String
	app.DecisionReason = reason.String
	app.SubmittedAt = timePtr(submittedAt)
	if total.Valid {
		app.Score = &models.Scores{Socioeconomic: scoreSocio.Float64, Academic: scoreAcad.Float64, Total: total.Float64}
	}
	if len(socioRaw) > 0 {
		app.SocioeconomicForm = &models.SocioeconomicForm{}
		if err := json.Unmarshal(socioRaw, app.SocioeconomicForm); err != nil {
			return nil, fmt.Errorf("failed to decode socioeconomic form: %w", err)
		}
	}
	if len(academicRaw) > 0 {
		app.AcademicForm = &models.AcademicForm{}
		if err := json.Unmarshal(academicRaw, app.AcademicForm); err != nil {
			return nil, fmt.Errorf("failed to decode academic form: %w", err)
		}
	}
	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &app.Documents); err != nil {
			return nil, fmt.Errorf("failed to decode documents: %w", err)
		}
	}
	return &app, nil
}

func jsonOrNull(v interface{}) (sql.NullString, error) {
	switch f := v.(type) {
	case *models.SocioeconomicForm:
		if f == nil {
			return sql.NullString{}, nil
		}
	case *models.AcademicForm:
		if f == nil {
			return sql.NullString{}, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode form: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func documentsOrEmpty(docs map[string]models.DocumentRef) map[string]models.DocumentRef {
	if docs == nil {
		return map[string]models.DocumentRef{}
	}
	return docs
}

func stateStrings(states []models.ApplicationState) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
