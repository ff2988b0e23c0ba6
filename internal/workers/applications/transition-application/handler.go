// internal/workers/applications/transition-application/handler.go
package transitionapplication

import (
	"context"

	"scholarship-workers/internal/common/camunda"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/services/applications"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "transition-application"

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

// Execute drives a caller-requested move. Edges owned by evaluation and decisions come back as UNAUTHORIZED_TRANSITION.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := input.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	before, err := h.applications.Get(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	app, err := h.applications.Transition(ctx, input.ApplicationID, models.ApplicationState(input.TargetState), input.Note)
	if err != nil {
		return nil, err
	}
	return &Output{
		ApplicationID:    app.ID,
		ApplicationState: string(app.State),
		PreviousState:    string(before.State),
	}, nil
}
