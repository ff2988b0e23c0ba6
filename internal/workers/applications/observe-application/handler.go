// internal/workers/applications/observe-application/handler.go
package observeapplication

import (
	"context"
	"strings"

	"scholarship-workers/internal/common/camunda"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/services/applications"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "observe-application"

type Handler struct {
	config       *Config
	runner       *camunda.JobRunner
	applications *applications.Manager
	logger       logger.Logger
}

func NewHandler(config *Config, runner *camunda.JobRunner, manager *applications.Manager, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		runner:       runner,
		applications: manager,
		logger:       log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.Run(h.runner, client, job, TaskType, h.config.Timeout, h.Execute)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, errors.NewValidationError("applicationId is required")
	}

	app, err := h.applications.Observe(ctx, input.ApplicationID, strings.TrimSpace(input.Note))
	if err != nil {
		return nil, err
	}
	return &Output{
		ApplicationID:    app.ID,
		ApplicationState: string(app.State),
		PriorState:       string(app.PriorState),
	}, nil
}
