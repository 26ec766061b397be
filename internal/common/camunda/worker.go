// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"birdwatch-support/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// JobHandler completes or fails the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// WorkerSpec describes one job worker to open.
type WorkerSpec struct {
	TaskType      string
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	Handler       JobHandler
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

// NewWorker opens a job worker for taskType and tracks in-flight jobs and
// their duration per task type.
func NewWorker(
	client zbc.Client,
	taskType string,
	maxJobsActive int,
	timeout time.Duration,
	handler JobHandler,
	logger *zap.Logger,
) *CamundaWorker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(instrument(taskType, handler)).
		MaxJobsActive(maxJobsActive).
		Timeout(timeout).
		Open()

	return &CamundaWorker{
		worker:   jobWorker,
		logger:   logger,
		taskType: taskType,
	}
}

func instrument(taskType string, handler JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		start := time.Now()
		defer func() {
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		}()

		handler.Handle(client, job)
	}
}

func (w *CamundaWorker) TaskType() string { return w.taskType }

// Stop closes the job worker. The shared Zeebe client is closed by its owner.
func (w *CamundaWorker) Stop(ctx context.Context) {
	w.logger.Info("Stopping worker", zap.String("taskType", w.taskType))
	w.worker.Close()
}

// Pool opens enabled workers on one client and stops them together.
type Pool struct {
	client  zbc.Client
	logger  *zap.Logger
	workers []*CamundaWorker
}

func NewPool(client zbc.Client, logger *zap.Logger) *Pool {
	return &Pool{client: client, logger: logger}
}

// Open starts a worker for ws unless it is disabled.
func (p *Pool) Open(ws WorkerSpec) {
	if !ws.Enabled {
		p.logger.Info("Worker disabled", zap.String("taskType", ws.TaskType))
		return
	}
	w := NewWorker(p.client, ws.TaskType, ws.MaxJobsActive, ws.Timeout, ws.Handler, p.logger)
	p.workers = append(p.workers, w)
	p.logger.Info("Worker started",
		zap.String("taskType", ws.TaskType),
		zap.Int("maxJobsActive", ws.MaxJobsActive),
		zap.Duration("timeout", ws.Timeout),
	)
}

// Len is the number of open workers.
func (p *Pool) Len() int { return len(p.workers) }

func (p *Pool) Stop(ctx context.Context) {
	for _, w := range p.workers {
		w.Stop(ctx)
	}
}
