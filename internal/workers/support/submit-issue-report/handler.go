package submitissuereport

import (
	"context"
	"fmt"

	"birdwatch-support/internal/common/auth"
	"birdwatch-support/internal/common/camunda"
	"birdwatch-support/internal/common/config"
	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/common/logger"
	"birdwatch-support/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "support-issue-report"

// Input is the job payload. The actor is either passed through by the
// process (actorId, actorEmail) or resolved from accessToken.
type Input struct {
	Description   string `json:"description"`
	ReporterEmail string `json:"reporterEmail"`
	ActorID       string `json:"actorId,omitempty"`
	ActorEmail    string `json:"actorEmail,omitempty"`
	AccessToken   string `json:"accessToken,omitempty"`
}

type Handler struct {
	config       *Config
	logger       logger.Logger
	service      *Service
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Service      *Service
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
	if opts.Service == nil {
		return nil, fmt.Errorf("%s requires a pipeline service", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:       cfg,
		logger:       log,
		service:      opts.Service,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing issue report", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	var input Input
	if err := job.GetVariablesAs(&input); err != nil {
		h.fail(ctx, client, job, errors.NewValidationError("Failed to parse job variables", err.Error()))
		return
	}

	receipt, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	variables := map[string]interface{}{
		"caseNumber":       receipt.Report.CaseNumber,
		"issueId":          receipt.Report.ID,
		"supportMessageId": receipt.Dispatch.SupportMessageID,
		"ackSent":          receipt.Dispatch.AckSent,
		"webhookPosted":    receipt.Dispatch.WebhookPosted,
		"outcome":          SuccessOutcome(receipt.Report.CaseNumber),
	}
	if err := camunda.CompleteJob(ctx, client, job, variables); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

// Execute submits the report on behalf of the actor named in input.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Receipt, error) {
	switch {
	case input.ActorID != "":
		ctx = auth.WithActor(ctx, auth.Actor{ID: input.ActorID, Email: input.ActorEmail})
	case input.AccessToken != "":
		ctx = auth.WithBearerToken(ctx, input.AccessToken)
	}
	return h.service.Submit(ctx, Submission{
		Description:   input.Description,
		ReporterEmail: input.ReporterEmail,
	})
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.FromError(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
