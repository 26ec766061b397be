// Package bootstrap connects the backing stores and assembles the mail
// gateway and issue pipeline for the binaries under cmd/.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	awsclient "birdwatch-support/internal/common/aws"
	"birdwatch-support/internal/common/auth"
	"birdwatch-support/internal/common/config"
	"birdwatch-support/internal/common/database"
	httpclient "birdwatch-support/internal/common/http"
	"birdwatch-support/internal/common/logger"
	"birdwatch-support/internal/common/observability"
	"birdwatch-support/internal/common/webhook"
	emailreconcile "birdwatch-support/internal/workers/communication/email-reconcile"
	emailsend "birdwatch-support/internal/workers/communication/email-send"
	submit "birdwatch-support/internal/workers/support/submit-issue-report"

	"go.uber.org/zap"
)

const reconcileLockKey = "mail:reconcile:lock"

// RetryWithBackoff runs operation until it succeeds, doubling the delay after
// each failure.
func RetryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// Infra holds the connected backing stores. Elasticsearch is nil when
// disabled.
type Infra struct {
	Postgres      *database.PostgresClient
	Redis         *database.RedisClient
	Elasticsearch *database.ElasticsearchClient
}

// Connect opens Postgres, Redis and, when enabled, Elasticsearch, retrying
// each until it answers a ping.
func Connect(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (*Infra, error) {
	infra := &Infra{}

	err := RetryWithBackoff(func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		infra.Postgres = pg
		return nil
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	zapLog.Info("PostgreSQL connected successfully")

	err = RetryWithBackoff(func() error {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return err
		}
		infra.Redis = rc
		return nil
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		infra.Close()
		return nil, err
	}
	zapLog.Info("Redis connected successfully")

	if cfg.Database.Elasticsearch.Enabled {
		err = RetryWithBackoff(func() error {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := es.Ping(ctx); err != nil {
				return err
			}
			infra.Elasticsearch = es
			return nil
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			infra.Close()
			return nil, err
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	return infra, nil
}

func (i *Infra) Close() {
	if i.Redis != nil {
		i.Redis.Close()
	}
	if i.Postgres != nil {
		i.Postgres.Close()
	}
}

// Ping checks every connected store, for readiness probes.
func (i *Infra) Ping(ctx context.Context) error {
	if err := i.Postgres.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := i.Redis.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if i.Elasticsearch != nil {
		if err := i.Elasticsearch.Ping(ctx); err != nil {
			return fmt.Errorf("elasticsearch: %w", err)
		}
	}
	return nil
}

// NewGateway assembles the in-process mail gateway.
func NewGateway(ctx context.Context, cfg *config.Config, infra *Infra, log logger.Logger) (*emailsend.Service, error) {
	gwCfg := emailsend.ConfigFromApp(cfg)
	if err := gwCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway configuration: %w", err)
	}

	var transport emailsend.Transport
	switch gwCfg.Transport {
	case emailsend.TransportSMTP:
		transport = emailsend.NewSMTPTransport(gwCfg)
	default:
		sesClient, err := awsclient.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create SES client: %w", err)
		}
		transport = emailsend.NewSESTransport(sesClient, gwCfg.SESConfigurationSet)
	}

	deps := emailsend.ServiceDependencies{
		Logger:        log,
		Quota:         emailsend.NewRedisQuotaCounter(infra.Redis.Client),
		Queue:         emailsend.NewPostgresQueue(infra.Postgres.DB),
		Transport:     transport,
		ReconcileLock: database.NewRedisLock(infra.Redis.Client, reconcileLockKey, 5*time.Minute),
	}
	if gwCfg.QuotaAlertTopicARN != "" {
		snsClient, err := awsclient.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create SNS client: %w", err)
		}
		deps.SNS = snsClient
	}

	return emailsend.NewService(deps, gwCfg), nil
}

// NewMailer returns the remote gateway client when gateway.url is set,
// otherwise the in-process gateway.
func NewMailer(cfg *config.Config, gateway *emailsend.Service) submit.Mailer {
	if cfg.Gateway.URL != "" {
		return emailsend.NewClient(httpclient.NewClient(config.GetDuration(cfg.Gateway.Timeout)), cfg.Gateway.URL, cfg.Gateway.APIKey)
	}
	return gateway
}

// NewResolver resolves actors by Keycloak token introspection.
func NewResolver(cfg *config.Config) auth.ActorResolver {
	kc := cfg.Auth.Keycloak
	if kc.URL == "" {
		return auth.NewTokenResolver(nil)
	}
	return auth.NewTokenResolver(auth.NewKeycloakClient(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret))
}

// Pipeline is the assembled issue report pipeline.
type Pipeline struct {
	Service *submit.Service
	Config  *submit.Config
	// Index is nil when Elasticsearch is disabled.
	Index *submit.IssueIndex
}

// NewPipeline assembles the issue pipeline on top of mailer.
func NewPipeline(cfg *config.Config, infra *Infra, mailer submit.Mailer, resolver auth.ActorResolver, obs *observability.Observability, log logger.Logger) (*Pipeline, error) {
	pCfg := submit.ConfigFromApp(cfg)
	if err := pCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid support configuration: %w", err)
	}

	var index *submit.IssueIndex
	var indexer submit.IssueIndexer
	if infra.Elasticsearch != nil {
		index = submit.NewIssueIndex(infra.Elasticsearch, pCfg.IssuesIndex)
		indexer = index
	}

	var guard submit.Guard = submit.NewMemoryGuard()
	if pCfg.Guard == submit.GuardRedis {
		guard = submit.NewRedisGuard(infra.Redis.Client, pCfg.GuardTTL, log)
	}

	var poster webhook.Poster
	if len(cfg.Support.Webhooks) > 0 {
		poster = webhook.NewClient(httpclient.NewClient(10*time.Second), cfg.Support.Webhooks, cfg.Support.WebhookUsername)
	}

	service := submit.NewService(submit.ServiceDependencies{
		Logger:        log,
		Resolver:      resolver,
		Guard:         guard,
		Recorder:      submit.NewRecorder(submit.NewPostgresIssueStore(infra.Postgres.DB), indexer, submit.GenerateCaseNumber, time.Now, log),
		Dispatcher:    submit.NewDispatcher(mailer, poster, pCfg.Policy, pCfg.SupportAddress, pCfg.WebhookChannel, log),
		Observability: obs,
	}, pCfg)

	return &Pipeline{Service: service, Config: pCfg, Index: index}, nil
}

// ReconcileLoop runs a reconciliation pass every interval until ctx is
// cancelled. Used when no workflow engine schedules the pass.
func ReconcileLoop(ctx context.Context, gateway emailreconcile.Reconciler, interval time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := gateway.Reconcile(ctx)
			if err != nil {
				log.Error("Email queue reconciliation failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			if result.Scanned > 0 {
				log.Info("Email queue reconciled", map[string]interface{}{
					"scanned":       result.Scanned,
					"sent":          result.Sent,
					"failed":        result.Failed,
					"quotaExceeded": result.QuotaExceeded,
				})
			}
		}
	}
}
