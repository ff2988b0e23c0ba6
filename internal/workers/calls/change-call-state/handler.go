// internal/workers/calls/change-call-state/handler.go
package changecallstate

import (
	"context"

	"scholarship-workers/internal/common/camunda"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/services/calls"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "change-call-state"

type Handler struct {
	config *Config
	runner *camunda.JobRunner
	calls  *calls.Manager
	logger logger.Logger
}

func NewHandler(config *Config, runner *camunda.JobRunner, manager *calls.Manager, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		runner: runner,
		calls:  manager,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.Run(h.runner, client, job, TaskType, h.config.Timeout, h.Execute)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := input.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	result, err := h.calls.Transition(ctx, input.CallID, models.CallState(input.TargetState))
	if err != nil {
		return nil, err
	}

	if !result.Changed {
		h.logger.Debug("call already in target state", map[string]interface{}{
			"callId": result.CallID,
			"state":  string(result.To),
		})
	}
	return &Output{
		CallID:        result.CallID,
		CallState:     string(result.To),
		PreviousState: string(result.From),
		Changed:       result.Changed,
	}, nil
}
