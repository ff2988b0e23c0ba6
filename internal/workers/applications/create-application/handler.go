// internal/workers/applications/create-application/handler.go
package createapplication

import (
	"context"

	"scholarship-workers/internal/common/camunda"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/services/applications"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "create-application"

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
	if err := input.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	app, err := h.applications.Create(ctx, applications.CreateRequest{
		CallID:          input.CallID,
		ScholarshipType: input.ScholarshipType,
		Faculty:         input.Faculty,
	})
	if err != nil {
		return nil, err
	}
	return &Output{
		ApplicationID:    app.ID,
		ApplicationState: string(app.State),
		ApplicantID:      app.ApplicantID,
	}, nil
}
