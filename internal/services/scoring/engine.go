// internal/services/scoring/engine.go
package scoring

import (
	"context"
	"time"

	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/metrics"
	"scholarship-workers/internal/common/observability"
	"scholarship-workers/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

// Input is everything a scorer may look at for one application.
type Input struct {
	ApplicationID string
	Socioeconomic models.SocioeconomicForm
	Academic      models.AcademicForm
	Criteria      []models.Criterion
}

// Scorer is a pluggable scoring back-end. Implementations need not enforce bounds; the Engine does.
type Scorer interface {
	Name() string
	Score(ctx context.Context, in Input) (*models.ScoreResult, error)
}

// Engine wraps a Scorer with the score contract: both forms present and results inside the dimension caps.
type Engine struct {
	scorer  Scorer
	tracing *observability.Tracing
	logger  logger.Logger
}

func NewEngine(scorer Scorer, tracing *observability.Tracing, log logger.Logger) *Engine {
	return &Engine{scorer: scorer, tracing: tracing, logger: log}
}

func (e *Engine) Score(ctx context.Context, app *models.Application, call *models.Call) (result *models.ScoreResult, err error) {
	var missing []string
	if app.SocioeconomicForm == nil {
		missing = append(missing, "socioeconomicForm")
	}
	if app.AcademicForm == nil {
		missing = append(missing, "academicForm")
	}
	if len(missing) > 0 {
		return nil, errors.NewIncompleteApplicationError(missing)
	}

	ctx, span := e.tracing.StartSpan(ctx, "scoring.score",
		attribute.String("application.id", app.ID),
		attribute.String("scorer", e.scorer.Name()),
	)
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	result, err = e.scorer.Score(ctx, Input{
		ApplicationID: app.ID,
		Socioeconomic: *app.SocioeconomicForm,
		Academic:      *app.AcademicForm,
		Criteria:      call.Criteria,
	})
	elapsed := time.Since(start)
	metrics.ScoringDuration.WithLabelValues(e.scorer.Name()).Observe(elapsed.Seconds())
	if err != nil {
		e.logger.Warn("scorer failed", map[string]interface{}{
			"applicationId": app.ID,
			"scorer":        e.scorer.Name(),
			"error":         err.Error(),
		})
		return nil, err
	}

	if msg := result.Scores.CheckBounds(); msg != "" {
		err = errors.NewScoreOutOfRangeError(msg)
		return nil, err
	}
	if result.ProcessingMs == 0 {
		result.ProcessingMs = elapsed.Milliseconds()
	}
	return result, nil
}
