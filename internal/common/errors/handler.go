package errors

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Logger is the subset of logger.Logger the job error handler needs.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// JobOutcome is what HandleJobError did with a failed job.
type JobOutcome int

const (
	// OutcomeRetried fails the job with retries left so the broker re-activates it.
	OutcomeRetried JobOutcome = iota
	// OutcomeThrown raises a BPMN error for the process model to route.
	OutcomeThrown
)

func (o JobOutcome) String() string {
	if o == OutcomeRetried {
		return "retried"
	}
	return "thrown"
}

// ErrorHandler fails or throws Zeebe jobs from StandardErrors.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Decide picks the outcome for a job that still has jobRetries attempts. A
// retried job keeps at most jobRetries-1 retries.
func Decide(bpmnErr *BPMNError, jobRetries int32) (JobOutcome, int32) {
	if bpmnErr.Retries <= 0 || jobRetries <= 0 {
		return OutcomeThrown, 0
	}
	retries := int32(bpmnErr.Retries)
	if jobRetries-1 < retries {
		retries = jobRetries - 1
	}
	return OutcomeRetried, retries
}

// HandleJobError retries technical failures and throws a BPMN error for the
// rest, such as a reporter with no address or an exhausted mail quota.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) JobOutcome {
	stdErr := FromError(err)
	bpmnErr := ConvertToBPMNError(stdErr)
	outcome, retries := Decide(bpmnErr, job.Retries)

	fields := jobFields(job, stdErr, bpmnErr)
	fields["outcome"] = outcome.String()
	fields["retriesLeft"] = retries

	var sendErr error
	if outcome == OutcomeRetried {
		h.logger.Warn("Job failed, will retry", fields)
		sendErr = h.failJob(ctx, client, job, bpmnErr, retries)
	} else {
		h.logger.Error("Job failed", fields)
		sendErr = h.throwBPMNError(ctx, client, job, bpmnErr)
	}
	if sendErr != nil {
		h.logger.Error("Failed to report job failure to broker", map[string]interface{}{
			"jobKey":  job.Key,
			"outcome": outcome.String(),
			"error":   sendErr,
		})
	}
	return outcome
}

func (h *ErrorHandler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError, retries int32) error {
	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(retries).
		ErrorMessage(bpmnErr.Message)

	vars, err := errorVariables(bpmnErr)
	if err == nil {
		if withVars, err := cmd.VariablesFromString(vars); err == nil {
			_, err = withVars.Send(ctx)
			return err
		}
	}
	_, err = cmd.Send(ctx)
	return err
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) error {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	vars, err := errorVariables(bpmnErr)
	if err == nil {
		if withVars, err := cmd.VariablesFromString(vars); err == nil {
			_, err = withVars.Send(ctx)
			return err
		}
	}
	_, err = cmd.Send(ctx)
	return err
}

func errorVariables(bpmnErr *BPMNError) (string, error) {
	b, err := json.Marshal(bpmnErr.ToErrorVariables())
	return string(b), err
}

func jobFields(job entities.Job, stdErr *StandardError, bpmnErr *BPMNError) map[string]interface{} {
	return map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"bpmnErrorCode":    bpmnErr.Code,
		"message":          bpmnErr.Message,
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	}
}
