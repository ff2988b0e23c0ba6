// cmd/worker-manager/workers.go
package main

import (
	"time"

	"scholarship-workers/internal/common/camunda"
	"scholarship-workers/internal/common/config"
	"scholarship-workers/internal/common/logger"

	// Calls (2)
	ccs "scholarship-workers/internal/workers/calls/change-call-state"
	cc "scholarship-workers/internal/workers/calls/configure-call"

	// Applications (7)
	ca "scholarship-workers/internal/workers/applications/create-application"
	oa "scholarship-workers/internal/workers/applications/observe-application"
	ra "scholarship-workers/internal/workers/applications/resubmit-application"
	saf "scholarship-workers/internal/workers/applications/save-application-forms"
	sa "scholarship-workers/internal/workers/applications/submit-application"
	ta "scholarship-workers/internal/workers/applications/transition-application"
	wa "scholarship-workers/internal/workers/applications/withdraw-application"

	// Evaluation (4)
	ae "scholarship-workers/internal/workers/evaluation/accept-evaluation"
	eb "scholarship-workers/internal/workers/evaluation/evaluate-batch"
	oe "scholarship-workers/internal/workers/evaluation/override-evaluation"
	re "scholarship-workers/internal/workers/evaluation/request-evaluation"

	// Decisions (2)
	as "scholarship-workers/internal/workers/decisions/approve-selected"
	rr "scholarship-workers/internal/workers/decisions/reject-remaining"
)

// lockGrace keeps the Zeebe activation lock alive past the handler deadline so completion is not raced by a re-activation.
const lockGrace = 10 * time.Second

type registration struct {
	taskType string
	handler  camunda.JobHandler
}

func registrations(cfg *config.Config, runner *camunda.JobRunner, svc *services, log logger.Logger) []registration {
	wc := func(taskType string) config.WorkerConfig { return config.GetWorkerConfig(cfg, taskType) }

	return []registration{
		{ccs.TaskType, ccs.NewHandler(ccs.LoadConfig(wc(ccs.TaskType)), runner, svc.calls, log)},
		{cc.TaskType, cc.NewHandler(cc.LoadConfig(wc(cc.TaskType)), runner, svc.calls, log)},

		{ca.TaskType, ca.NewHandler(ca.LoadConfig(wc(ca.TaskType)), runner, svc.applications, log)},
		{saf.TaskType, saf.NewHandler(saf.LoadConfig(wc(saf.TaskType)), runner, svc.applications, svc.calls, log)},
		{sa.TaskType, sa.NewHandler(sa.LoadConfig(wc(sa.TaskType)), runner, svc.applications, log)},
		{oa.TaskType, oa.NewHandler(oa.LoadConfig(wc(oa.TaskType)), runner, svc.applications, log)},
		{ra.TaskType, ra.NewHandler(ra.LoadConfig(wc(ra.TaskType)), runner, svc.applications, log)},
		{wa.TaskType, wa.NewHandler(wa.LoadConfig(wc(wa.TaskType)), runner, svc.applications, log)},
		{ta.TaskType, ta.NewHandler(ta.LoadConfig(wc(ta.TaskType)), runner, svc.applications, log)},

		{re.TaskType, re.NewHandler(re.LoadConfig(wc(re.TaskType)), runner, svc.evaluation, log)},
		{ae.TaskType, ae.NewHandler(ae.LoadConfig(wc(ae.TaskType)), runner, svc.evaluation, log)},
		{oe.TaskType, oe.NewHandler(oe.LoadConfig(wc(oe.TaskType)), runner, svc.evaluation, log)},
		{eb.TaskType, eb.NewHandler(eb.LoadConfig(wc(eb.TaskType)), runner, svc.evaluation, log)},

		{as.TaskType, as.NewHandler(as.LoadConfig(wc(as.TaskType)), runner, svc.decisions, log)},
		{rr.TaskType, rr.NewHandler(rr.LoadConfig(wc(rr.TaskType)), runner, svc.decisions, log)},
	}
}

func startWorkers(cfg *config.Config, zeebe *camunda.Client, runner *camunda.JobRunner, svc *services, log logger.Logger) []*camunda.CamundaWorker {
	var started []*camunda.CamundaWorker
	for _, r := range registrations(cfg, runner, svc, log) {
		if !config.IsWorkerEnabled(cfg, r.taskType) {
			log.Info("worker disabled", map[string]interface{}{"taskType": r.taskType})
			continue
		}
		wcfg := config.GetWorkerConfig(cfg, r.taskType)
		started = append(started, camunda.StartWorker(zeebe.GetClient(), camunda.WorkerOptions{
			TaskType:      r.taskType,
			MaxJobsActive: wcfg.MaxJobsActive,
			Timeout:       config.GetDuration(wcfg.Timeout) + lockGrace,
		}, r.handler, log))
	}
	return started
}
