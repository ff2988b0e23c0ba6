// internal/workers/evaluation/request-evaluation/handler.go
package requestevaluation

import (
	"context"
	"time"

	"scholarship-workers/internal/common/camunda"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/services/evaluation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "request-evaluation"

type Handler struct {
	config   *Config
	runner   *camunda.JobRunner
	workflow *evaluation.Workflow
	logger   logger.Logger
}

func NewHandler(config *Config, runner *camunda.JobRunner, workflow *evaluation.Workflow, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		runner:   runner,
		workflow: workflow,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.Run(h.runner, client, job, TaskType, h.config.Timeout, h.Execute)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, errors.NewValidationError("applicationId is required")
	}

	preview, err := h.workflow.RequestEvaluation(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	return &Output{
		ApplicationID:  preview.ApplicationID,
		PreviewID:      preview.ID,
		Scores:         preview.Result.Scores,
		Recommendation: string(preview.Result.Recommendation),
		Confidence:     preview.Result.Confidence,
		Attributions:   preview.Result.Attributions,
		ModelVersion:   preview.Result.ModelVersion,
		ExpiresAt:      preview.ExpiresAt.Format(time.RFC3339),
	}, nil
}
