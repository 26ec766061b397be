package emailsend

import (
	"context"
	"encoding/json"
	"fmt"

	"birdwatch-support/internal/common/camunda"
	"birdwatch-support/internal/common/config"
	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/common/logger"
	"birdwatch-support/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "email-send"

// Handler runs the gateway as a Zeebe job worker. Job variables carry the
// same fields as the HTTP request.
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
		return nil, fmt.Errorf("%s requires a gateway service", TaskType)
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

	h.logger.Info("Processing email send", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	req, err := h.parseInput(job)
	if err == nil {
		var resp *ProviderResponse
		resp, err = h.Execute(ctx, req)
		if err == nil {
			h.completeJob(ctx, client, job, resp)
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			return
		}
	}

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.FromError(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

// Execute sends one email through the gateway service.
func (h *Handler) Execute(ctx context.Context, req *SendRequest) (*ProviderResponse, error) {
	return h.service.Send(ctx, req)
}

func (h *Handler) parseInput(job entities.Job) (*SendRequest, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewValidationError("Failed to parse job variables", err.Error())
	}
	return decodeRequest(variables)
}

// decodeRequest validates a decoded JSON document and binds it.
func decodeRequest(doc map[string]interface{}) (*SendRequest, error) {
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.NewValidationError(msgMissingFields, err.Error())
	}
	var req SendRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errors.NewValidationError(msgMissingFields, err.Error())
	}
	return &req, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, resp *ProviderResponse) {
	variables := map[string]interface{}{
		"emailId":       resp.ID,
		"emailProvider": resp.Provider,
		"emailQueueId":  resp.QueueID,
	}

	if err := camunda.CompleteJob(ctx, client, job, variables); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
	}
}
