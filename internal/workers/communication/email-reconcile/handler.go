// Package emailreconcile runs queued-email reconciliation as a Zeebe job,
// typically from a timer-started process.
package emailreconcile

import (
	"context"
	"fmt"

	"birdwatch-support/internal/common/camunda"
	"birdwatch-support/internal/common/config"
	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/common/logger"
	"birdwatch-support/internal/common/metrics"
	emailsend "birdwatch-support/internal/workers/communication/email-send"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "email-queue-reconcile"

// Reconciler is satisfied by *emailsend.Service.
type Reconciler interface {
	Reconcile(ctx context.Context) (*emailsend.ReconcileResult, error)
}

type Handler struct {
	config       *Config
	logger       logger.Logger
	reconciler   Reconciler
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Reconciler   Reconciler
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := opts.CustomConfig
	if cfg == nil {
		cfg = ConfigFromApp(opts.AppConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Reconciler == nil {
		return nil, fmt.Errorf("%s requires a reconciler", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:       cfg,
		logger:       log,
		reconciler:   opts.Reconciler,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	result, err := h.Execute(ctx)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.FromError(err).Code)).Inc()
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	if err := camunda.CompleteJob(ctx, client, job, Variables(result)); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

// Execute runs one reconciliation pass.
func (h *Handler) Execute(ctx context.Context) (*emailsend.ReconcileResult, error) {
	result, err := h.reconciler.Reconcile(ctx)
	if err != nil {
		h.logger.Error("Reconciliation failed", map[string]interface{}{"error": err})
		return nil, err
	}
	return result, nil
}

// Variables maps a pass result to process variables.
func Variables(r *emailsend.ReconcileResult) map[string]interface{} {
	return map[string]interface{}{
		"reconcileScanned":       r.Scanned,
		"reconcileSent":          r.Sent,
		"reconcileFailed":        r.Failed,
		"reconcileQuotaExceeded": r.QuotaExceeded,
		"reconcileSkipped":       r.Skipped,
	}
}
