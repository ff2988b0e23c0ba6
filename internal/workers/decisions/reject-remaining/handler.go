// internal/workers/decisions/reject-remaining/handler.go
package rejectremaining

import (
	"context"

	"scholarship-workers/internal/common/camunda"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/services/decisions"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "reject-remaining"

type Handler struct {
	config    *Config
	runner    *camunda.JobRunner
	decisions *decisions.Engine
	logger    logger.Logger
}

func NewHandler(config *Config, runner *camunda.JobRunner, engine *decisions.Engine, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		runner:    runner,
		decisions: engine,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.Run(h.runner, client, job, TaskType, h.config.Timeout, h.Execute)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.decisions.RejectRemaining(ctx, input.ApplicationIDs, input.Reason)
	if err != nil {
		return nil, err
	}
	return &Output{
		Items:             result.Items,
		Total:             result.Total,
		Succeeded:         result.Succeeded,
		Failed:            result.Failed,
		RejectedIDs:       result.SucceededIDs(),
		HasPartialFailure: result.Failed > 0,
	}, nil
}
