// internal/workers/evaluation/evaluate-batch/handler.go
package evaluatebatch

import (
	"context"

	"scholarship-workers/internal/common/camunda"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/services/evaluation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "evaluate-batch"

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

// Execute completes even when some items failed; the process inspects hasPartialFailure.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.CallID == "" {
		return nil, errors.NewValidationError("callId is required")
	}

	result, err := h.workflow.EvaluateBatch(ctx, input.CallID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(result.Ranking))
	for i, r := range result.Ranking {
		ids[i] = r.ApplicationID
	}
	if result.Failed > 0 {
		h.logger.Warn("batch evaluation finished with failures", map[string]interface{}{
			"callId": result.CallID,
			"failed": result.Failed,
		})
	}
	return &Output{
		CallID:            result.CallID,
		Ranking:           result.Ranking,
		Errors:            result.Errors,
		RankedIDs:         ids,
		Processed:         result.Processed,
		Succeeded:         result.Succeeded,
		Failed:            result.Failed,
		DurationMs:        result.Duration.Milliseconds(),
		HasPartialFailure: result.Failed > 0,
	}, nil
}
