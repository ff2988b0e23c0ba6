// internal/common/camunda/job.go
package camunda

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/metrics"
	"scholarship-workers/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const reportTimeout = 10 * time.Second

// IdentityCarrier is implemented by inputs that embed auth.JobIdentity.
type IdentityCarrier interface {
	Identity() auth.JobIdentity
}

// JobRunner holds what every handler needs to turn a job into an operation call and back.
type JobRunner struct {
	logger  logger.Logger
	errors  *errors.ErrorHandler
	actors  *auth.ActorResolver
	obs     *observability.Observability
	retries *RetryConfig
}

func NewJobRunner(log logger.Logger, actors *auth.ActorResolver, obs *observability.Observability, retries *RetryConfig) *JobRunner {
	return &JobRunner{
		logger:  log,
		errors:  errors.NewErrorHandler(log),
		actors:  actors,
		obs:     obs,
		retries: retries,
	}
}

// Run decodes the job variables into I, resolves the actor, runs exec under timeout and completes the job with O.
// Errors go through ErrorHandler: technical failures are retried, business failures become BPMN errors.
func Run[I any, O any](r *JobRunner, client worker.JobClient, job entities.Job, taskType string, timeout time.Duration, exec func(context.Context, *I) (*O, error)) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log := r.logger.WithFields(map[string]interface{}{
		"taskType":           taskType,
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})
	log.Info("processing job", nil)

	ctx, span := r.obs.Tracing().StartSpan(ctx, "job."+taskType)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	var input I
	if err = json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		err = errors.NewValidationError(fmt.Sprintf("parse job variables: %v", err))
		r.fail(ctx, client, job, taskType, start, err)
		return
	}

	if carrier, ok := any(&input).(IdentityCarrier); ok {
		var actor auth.Actor
		actor, err = r.actors.Resolve(ctx, carrier.Identity())
		if err != nil {
			r.fail(ctx, client, job, taskType, start, err)
			return
		}
		ctx = auth.WithActor(ctx, actor)
	}

	var output *O
	output, err = exec(ctx, &input)
	if err != nil {
		r.fail(ctx, client, job, taskType, start, err)
		return
	}

	err = ExecuteWithRetry(ctx, r.retries, "complete job", func(ctx context.Context) error {
		cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
		if err != nil {
			return err
		}
		_, err = cmd.Send(ctx)
		return err
	})
	if err != nil {
		log.Error("failed to complete job", map[string]interface{}{"error": err.Error()})
		metrics.WorkerJobsFailed.WithLabelValues(taskType, string(errors.As(err).Code)).Inc()
		r.obs.RecordJob(ctx, taskType, "complete_failed", time.Since(start))
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
	r.obs.RecordJob(ctx, taskType, "completed", time.Since(start))
	log.Info("job completed", map[string]interface{}{"durationMs": time.Since(start).Milliseconds()})
}

func (r *JobRunner) fail(ctx context.Context, client worker.JobClient, job entities.Job, taskType string, start time.Time, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(taskType, string(errors.As(err).Code)).Inc()
	metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
	r.obs.RecordJob(ctx, taskType, "failed", time.Since(start))

	// the job context may already be past its deadline
	reportCtx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()
	r.errors.HandleJobError(reportCtx, client, job, err)
}
