// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"scholarship-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

const workerName = "scholarship-workers"

// JobHandler is implemented by every task-type handler.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type WorkerOptions struct {
	TaskType      string
	MaxJobsActive int
	Timeout       time.Duration
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// StartWorker opens a job worker for one task type.
func StartWorker(client zbc.Client, opts WorkerOptions, handler JobHandler, log logger.Logger) *CamundaWorker {
	builder := client.NewJobWorker().
		JobType(opts.TaskType).
		Handler(handler.Handle).
		Name(workerName)
	if opts.MaxJobsActive > 0 {
		builder = builder.MaxJobsActive(opts.MaxJobsActive)
	}
	if opts.Timeout > 0 {
		builder = builder.Timeout(opts.Timeout)
	}

	w := &CamundaWorker{
		worker:   builder.Open(),
		logger:   log,
		taskType: opts.TaskType,
	}
	log.Info("worker started", map[string]interface{}{
		"taskType":      opts.TaskType,
		"maxJobsActive": opts.MaxJobsActive,
		"timeout":       opts.Timeout.String(),
	})
	return w
}

func (w *CamundaWorker) TaskType() string { return w.taskType }

// Stop closes the worker and waits for in-flight jobs.
func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", map[string]interface{}{"taskType": w.taskType})
	w.worker.Close()
	w.worker.AwaitClose()
}
