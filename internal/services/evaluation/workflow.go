// internal/services/evaluation/workflow.go
package evaluation

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/metrics"
	"scholarship-workers/internal/common/observability"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/repository"
	"scholarship-workers/internal/services/audit"
	"scholarship-workers/internal/services/scoring"

	"github.com/google/uuid"
)

type Settings struct {
	PreviewTTL       time.Duration
	BatchConcurrency int
	BatchItemTimeout time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.PreviewTTL <= 0 {
		s.PreviewTTL = 15 * time.Minute
	}
	if s.BatchConcurrency <= 0 {
		s.BatchConcurrency = 4
	}
	if s.BatchItemTimeout <= 0 {
		s.BatchItemTimeout = 30 * time.Second
	}
	return s
}

// Workflow runs preview, accept, override and batch evaluation.
type Workflow struct {
	calls    repository.CallStore
	apps     repository.ApplicationStore
	evals    repository.EvaluationStore
	arena    repository.PreviewArena
	engine   *scoring.Engine
	audit    *audit.Recorder
	tracing  *observability.Tracing
	settings Settings
	logger   logger.Logger
	now      func() time.Time
}

func NewWorkflow(calls repository.CallStore, apps repository.ApplicationStore, evals repository.EvaluationStore,
	arena repository.PreviewArena, engine *scoring.Engine, recorder *audit.Recorder, tracing *observability.Tracing,
	settings Settings, log logger.Logger) *Workflow {
	return &Workflow{
		calls:    calls,
		apps:     apps,
		evals:    evals,
		arena:    arena,
		engine:   engine,
		audit:    recorder,
		tracing:  tracing,
		settings: settings.withDefaults(),
		logger:   log,
		now:      time.Now,
	}
}

// OverrideRequest carries the corrected dimensions. The total is always their sum; a total sent by the
// caller is ignored.
type OverrideRequest struct {
	ApplicationID string        `json:"applicationId"`
	PreviewID     string        `json:"previewId"`
	EditedScores  models.Scores `json:"editedScores"`
	Justification string        `json:"justification"`
}

// Evaluators are administrators and directors.
func requireEvaluator(ctx context.Context) (auth.Actor, error) {
	return auth.RequireRole(ctx, auth.RoleAdmin, auth.RoleDirector)
}

func (w *Workflow) load(ctx context.Context, applicationID string) (*models.Application, *models.Call, error) {
	app, err := w.apps.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, nil, repository.Translate(err, "get application", "application", applicationID)
	}
	call, err := w.calls.GetCall(ctx, app.CallID)
	if err != nil {
		return nil, nil, repository.Translate(err, "get call", "call", app.CallID)
	}
	return app, call, nil
}

// score claims the preview slot, runs the engine and fills the slot. The slot is discarded on failure.
func (w *Workflow) score(ctx context.Context, app *models.Application, call *models.Call, actorID string) (*models.Preview, error) {
	previewID := uuid.NewString()
	ok, err := w.arena.Claim(ctx, app.ID, previewID, w.settings.PreviewTTL)
	if err != nil {
		return nil, repository.Translate(err, "claim preview", "application", app.ID)
	}
	if !ok {
		return nil, errors.NewEvaluationInProgressError(app.ID)
	}

	result, err := w.engine.Score(ctx, app, call)
	if err == nil && ctx.Err() != nil {
		err = errors.NewTimeoutError("scoring", ctx.Err())
	}
	if err != nil {
		w.discard(app.ID, previewID)
		return nil, err
	}

	now := w.now().UTC()
	preview := &models.Preview{
		ID:            previewID,
		ApplicationID: app.ID,
		Result:        *result,
		RequestedBy:   actorID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(w.settings.PreviewTTL),
	}
	ok, err = w.arena.Fill(ctx, preview, w.settings.PreviewTTL)
	if err != nil {
		w.discard(app.ID, previewID)
		return nil, repository.Translate(err, "fill preview", "application", app.ID)
	}
	if !ok {
		return nil, errors.NewPreviewExpiredOrNotFoundError(app.ID, previewID)
	}
	return preview, nil
}

// discard runs detached from the caller so an expired job context does not leave the slot claimed.
func (w *Workflow) discard(applicationID, previewID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.arena.Discard(ctx, applicationID, previewID); err != nil {
		w.logger.Warn("failed to discard preview", map[string]interface{}{
			"applicationId": applicationID,
			"previewId":     previewID,
			"error":         err.Error(),
		})
	}
}

// RequestEvaluation scores a RECEIVED application and parks the result as a preview.
func (w *Workflow) RequestEvaluation(ctx context.Context, applicationID string) (*models.Preview, error) {
	actor, err := requireEvaluator(ctx)
	if err != nil {
		return nil, err
	}
	app, call, err := w.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.State != models.ApplicationReceived {
		return nil, errors.NewInvalidApplicationStateError(app.ID, string(app.State), string(models.ApplicationReceived))
	}
	if !call.Evaluable() {
		return nil, errors.NewInvalidCallStateError(call.ID, string(call.State))
	}

	preview, err := w.score(ctx, app, call, actor.ID)
	if err != nil {
		metrics.Evaluations.WithLabelValues("single", "error").Inc()
		return nil, err
	}
	metrics.Evaluations.WithLabelValues("single", "previewed").Inc()
	w.logger.Info("evaluation preview ready", map[string]interface{}{
		"applicationId": app.ID,
		"previewId":     preview.ID,
		"total":         preview.Result.Scores.Total,
	})
	return preview, nil
}

// pendingPreview returns the preview only when it is the one the caller is acting on.
func (w *Workflow) pendingPreview(ctx context.Context, applicationID, previewID string) (*models.Preview, error) {
	preview, err := w.arena.Get(ctx, applicationID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.NewPreviewExpiredOrNotFoundError(applicationID, previewID)
	}
	if err != nil {
		return nil, repository.Translate(err, "get preview", "application", applicationID)
	}
	if preview.ID != previewID {
		return nil, errors.NewPreviewExpiredOrNotFoundError(applicationID, previewID)
	}
	return preview, nil
}

// Accept persists the preview unmodified and moves the application RECEIVED -> EVALUATED.
func (w *Workflow) Accept(ctx context.Context, applicationID, previewID string) (*models.EvaluationRecord, error) {
	actor, err := requireEvaluator(ctx)
	if err != nil {
		return nil, err
	}
	preview, err := w.pendingPreview(ctx, applicationID, previewID)
	if err != nil {
		return nil, err
	}

	record := preview.Record(uuid.NewString(), actor.ID, models.SourceSingle, w.now().UTC())
	if err := w.commit(ctx, record, nil); err != nil {
		return nil, err
	}

	metrics.Evaluations.WithLabelValues("single", "accepted").Inc()
	w.audit.Record(ctx, models.AuditEvaluationAccepted, "application", applicationID, actor.ID, map[string]interface{}{
		"evaluationId": record.ID,
		"previewId":    previewID,
		"total":        record.Scores.Total,
		"modelVersion": record.ModelVersion,
	})
	return record, nil
}

// Override persists the preview together with a justified human correction of its scores.
func (w *Workflow) Override(ctx context.Context, req OverrideRequest) (*models.EvaluationRecord, *models.OverrideRecord, error) {
	actor, err := requireEvaluator(ctx)
	if err != nil {
		return nil, nil, err
	}
	justification := strings.TrimSpace(req.Justification)
	if justification == "" {
		return nil, nil, errors.NewJustificationRequiredError()
	}
	edited := models.NewScores(req.EditedScores.Socioeconomic, req.EditedScores.Academic)
	if msg := edited.CheckBounds(); msg != "" {
		return nil, nil, errors.NewScoreOutOfRangeError(msg)
	}

	preview, err := w.pendingPreview(ctx, req.ApplicationID, req.PreviewID)
	if err != nil {
		return nil, nil, err
	}

	now := w.now().UTC()
	record := preview.Record(uuid.NewString(), actor.ID, models.SourceSingle, now)
	record.Overridden = true
	override := &models.OverrideRecord{
		ID:             uuid.NewString(),
		EvaluationID:   record.ID,
		ApplicationID:  req.ApplicationID,
		PreviewID:      preview.ID,
		OriginalScores: preview.Result.Scores,
		EditedScores:   edited,
		Justification:  justification,
		EditorID:       actor.ID,
		CreatedAt:      now,
	}
	if err := w.commit(ctx, record, override); err != nil {
		return nil, nil, err
	}

	metrics.Evaluations.WithLabelValues("single", "overridden").Inc()
	w.logger.Info("evaluation overridden", map[string]interface{}{
		"applicationId": req.ApplicationID,
		"originalTotal": override.OriginalScores.Total,
		"editedTotal":   edited.Total,
		"editor":        actor.ID,
	})
	w.audit.Record(ctx, models.AuditEvaluationOverridden, "application", req.ApplicationID, actor.ID, map[string]interface{}{
		"evaluationId":   record.ID,
		"overrideId":     override.ID,
		"previewId":      preview.ID,
		"originalScores": override.OriginalScores,
		"editedScores":   edited,
		"justification":  justification,
	})
	return record, override, nil
}

// commit writes the record and releases the preview slot. A false commit means the application left RECEIVED.
func (w *Workflow) commit(ctx context.Context, record *models.EvaluationRecord, override *models.OverrideRecord) error {
	ok, err := w.evals.CommitEvaluation(ctx, record, override)
	if err != nil {
		return repository.Translate(err, "commit evaluation", "application", record.ApplicationID)
	}
	if !ok {
		return errors.NewPreviewExpiredOrNotFoundError(record.ApplicationID, record.PreviewID)
	}
	w.discard(record.ApplicationID, record.PreviewID)
	return nil
}
