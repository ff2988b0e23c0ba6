// internal/workers/evaluation/override-evaluation/handler.go
package overrideevaluation

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

const TaskType = "override-evaluation"

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

	record, override, err := h.workflow.Override(ctx, evaluation.OverrideRequest{
		ApplicationID: input.ApplicationID,
		PreviewID:     input.PreviewID,
		EditedScores:  input.EditedScores,
		Justification: input.Justification,
	})
	if err != nil {
		return nil, err
	}
	return &Output{
		ApplicationID:    record.ApplicationID,
		ApplicationState: string(models.ApplicationEvaluated),
		EvaluationID:     record.ID,
		OverrideID:       override.ID,
		OriginalScores:   override.OriginalScores,
		Scores:           override.EditedScores,
	}, nil
}
