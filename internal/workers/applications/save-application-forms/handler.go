// internal/workers/applications/save-application-forms/handler.go
package saveapplicationforms

import (
	"context"

	"scholarship-workers/internal/common/camunda"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/services/applications"
	"scholarship-workers/internal/services/calls"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "save-application-forms"

type Handler struct {
	config       *Config
	runner       *camunda.JobRunner
	applications *applications.Manager
	calls        *calls.Manager
	logger       logger.Logger
}

func NewHandler(config *Config, runner *camunda.JobRunner, manager *applications.Manager, callManager *calls.Manager, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		runner:       runner,
		applications: manager,
		calls:        callManager,
		logger:       log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.Run(h.runner, client, job, TaskType, h.config.Timeout, h.Execute)
}

// Execute stores the forms and reports what submission would still be missing.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, errors.NewValidationError("applicationId is required")
	}
	if input.Socioeconomic == nil && input.Academic == nil && len(input.Documents) == 0 {
		return nil, errors.NewValidationError("nothing to save: provide a form or documents")
	}

	app, err := h.applications.SaveForms(ctx, applications.FormsRequest{
		ApplicationID: input.ApplicationID,
		Socioeconomic: input.Socioeconomic,
		Academic:      input.Academic,
		Documents:     input.Documents,
	})
	if err != nil {
		return nil, err
	}

	call, err := h.calls.Get(ctx, app.CallID)
	if err != nil {
		return nil, err
	}
	missing := app.MissingForSubmission(call.MandatoryRequirements())
	return &Output{
		ApplicationID:    app.ID,
		ApplicationState: string(app.State),
		FormsComplete:    len(missing) == 0,
		Missing:          missing,
	}, nil
}
