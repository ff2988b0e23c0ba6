// internal/workers/evaluation/accept-evaluation/handler.go
package acceptevaluation

import (
	"context"

	"scholarship-workers/internal/common/camunda"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/services/evaluation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "accept-evaluation"

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
	if input.ApplicationID == "" || input.PreviewID == "" {
		return nil, errors.NewValidationError("applicationId and previewId are required")
	}

	record, err := h.workflow.Accept(ctx, input.ApplicationID, input.PreviewID)
	if err != nil {
		return nil, err
	}
	return &Output{
		ApplicationID:    record.ApplicationID,
		ApplicationState: string(models.ApplicationEvaluated),
		EvaluationID:     record.ID,
		Scores:           record.Scores,
		Recommendation:   string(record.Recommendation),
	}, nil
}
