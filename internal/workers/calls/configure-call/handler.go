// internal/workers/calls/configure-call/handler.go
package configurecall

import (
	"context"

	"scholarship-workers/internal/common/camunda"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/services/calls"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "configure-call"

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

// Execute replaces the call configuration. Publishable tells the process whether a publish would pass.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.CallID == "" {
		return nil, errors.NewValidationError("callId is required")
	}

	call, err := h.calls.Configure(ctx, input.CallID, input.Configuration)
	if err != nil {
		return nil, err
	}

	capacity, weights := call.TotalCapacity(), call.WeightTotal()
	return &Output{
		CallID:        call.ID,
		CallState:     string(call.State),
		TotalCapacity: capacity,
		WeightTotal:   weights,
		Publishable:   capacity > 0 && weights == 100,
	}, nil
}
