// cmd/worker-manager/services.go
package main

import (
	"context"
	"time"

	"scholarship-workers/internal/common/auth"
	"scholarship-workers/internal/common/aws"
	"scholarship-workers/internal/common/config"
	"scholarship-workers/internal/common/database"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/observability"
	"scholarship-workers/internal/repository/postgres"
	redisrepo "scholarship-workers/internal/repository/redis"
	"scholarship-workers/internal/services/applications"
	"scholarship-workers/internal/services/audit"
	"scholarship-workers/internal/services/calls"
	"scholarship-workers/internal/services/decisions"
	"scholarship-workers/internal/services/evaluation"
	"scholarship-workers/internal/services/notify"
	"scholarship-workers/internal/services/quota"
	"scholarship-workers/internal/services/scoring"
)

type services struct {
	actors       *auth.ActorResolver
	calls        *calls.Manager
	applications *applications.Manager
	evaluation   *evaluation.Workflow
	decisions    *decisions.Engine
}

func buildServices(ctx context.Context, cfg *config.Config, pg *database.PostgresClient, redis *database.RedisClient,
	es *database.ElasticsearchClient, obs *observability.Observability, log logger.Logger) (*services, error) {
	store := postgres.NewStore(pg.DB)
	arena := redisrepo.NewPreviewArena(redis.Client)

	keycloak := auth.NewKeycloakClient(
		cfg.Auth.Keycloak.URL,
		cfg.Auth.Keycloak.Realm,
		cfg.Auth.Keycloak.ClientID,
		cfg.Auth.Keycloak.ClientSecret,
	)

	var indexer audit.Indexer
	if es != nil {
		indexer = audit.NewElasticsearchSink(es.Client, cfg.Audit.ElasticsearchIndex)
	}
	recorder := audit.NewRecorder(store, indexer, log.WithFields(map[string]interface{}{"component": "audit"}))

	notifier, err := buildNotifier(ctx, cfg, keycloak, log)
	if err != nil {
		return nil, err
	}

	var scorer scoring.Scorer = scoring.NewRuleScorer()
	if cfg.Scoring.Engine == "remote" {
		scorer = scoring.NewRemoteScorer(
			cfg.Scoring.Remote.BaseURL,
			cfg.Scoring.Remote.Path,
			config.GetDuration(cfg.Scoring.Remote.Timeout),
			cfg.Scoring.Remote.MaxRetries,
		)
	}
	log.Info("scoring engine selected", map[string]interface{}{"engine": scorer.Name()})
	engine := scoring.NewEngine(scorer, obs.Tracing(), log.WithFields(map[string]interface{}{"component": "scoring"}))

	ledger := quota.NewLedger(store, log.WithFields(map[string]interface{}{"component": "quota"}))

	return &services{
		actors: auth.NewActorResolver(keycloak),
		calls:  calls.NewManager(store, store, recorder, log.WithFields(map[string]interface{}{"component": "calls"})),
		applications: applications.NewManager(store, store, ledger, recorder, cfg.Evaluation.ResubmitPolicy,
			log.WithFields(map[string]interface{}{"component": "applications"})),
		evaluation: evaluation.NewWorkflow(store, store, store, arena, engine, recorder, obs.Tracing(),
			evaluation.Settings{
				PreviewTTL:       config.GetDuration(cfg.Evaluation.PreviewTTL),
				BatchConcurrency: cfg.Evaluation.BatchConcurrency,
				BatchItemTimeout: config.GetDuration(cfg.Evaluation.BatchItemTimeout),
			},
			log.WithFields(map[string]interface{}{"component": "evaluation"})),
		decisions: decisions.NewEngine(store, ledger, keycloak, notifier, recorder, cfg.Auth.Keycloak.ScholarshipRole,
			log.WithFields(map[string]interface{}{"component": "decisions"})),
	}, nil
}

// buildNotifier enables only the channels switched on in config.
func buildNotifier(ctx context.Context, cfg *config.Config, users notify.UserDirectory, log logger.Logger) (*notify.Notifier, error) {
	awsCfg := cfg.Notifications.AWS
	if !awsCfg.SNS.Enabled && !awsCfg.SES.Enabled {
		log.Info("decision notifications disabled", nil)
		return nil, nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	sdkCfg, err := aws.LoadConfig(loadCtx, awsCfg.Region)
	if err != nil {
		return nil, err
	}

	var (
		publisher notify.Publisher
		mailer    notify.Mailer
	)
	if awsCfg.SNS.Enabled {
		publisher = aws.NewSNSClient(sdkCfg, awsCfg.SNS.TopicARN)
	}
	if awsCfg.SES.Enabled {
		mailer = aws.NewSESClient(sdkCfg, awsCfg.SES.FromEmail)
	}
	return notify.NewNotifier(publisher, mailer, users, log.WithFields(map[string]interface{}{"component": "notify"})), nil
}
