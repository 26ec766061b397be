package submitissuereport

import (
	"context"
	"time"

	"birdwatch-support/internal/common/auth"
	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/common/logger"
	"birdwatch-support/internal/common/metrics"
	"birdwatch-support/internal/common/observability"
)

type ServiceDependencies struct {
	Logger     logger.Logger
	Resolver   auth.ActorResolver
	Guard      Guard
	Recorder   *Recorder
	Dispatcher *Dispatcher
	// Observability is optional.
	Observability *observability.Observability
}

// Service runs the issue report pipeline: validate, record, dispatch.
type Service struct {
	config     *Config
	logger     logger.Logger
	resolver   auth.ActorResolver
	guard      Guard
	recorder   *Recorder
	dispatcher *Dispatcher
	obs        *observability.Observability
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	obs := deps.Observability
	if obs == nil {
		obs = observability.NewNoop()
	}
	guard := deps.Guard
	if guard == nil {
		guard = NewMemoryGuard()
	}
	return &Service{
		config:     config,
		logger:     log.WithFields(map[string]interface{}{"component": "issue-pipeline"}),
		resolver:   deps.Resolver,
		guard:      guard,
		recorder:   deps.Recorder,
		dispatcher: deps.Dispatcher,
		obs:        obs,
	}
}

// Submit records and dispatches one issue report. Once validation passes the
// submission no longer follows ctx cancellation; it runs under the
// configured submission timeout instead.
func (s *Service) Submit(ctx context.Context, sub Submission) (receipt *Receipt, err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(errors.FromError(err).Code)
		}
		metrics.IssueSubmissions.WithLabelValues(outcome).Inc()
		metrics.SubmissionDuration.Observe(time.Since(start).Seconds())
	}()

	if err := Validate(sub.Description, sub.ReporterEmail); err != nil {
		s.obs.RecordStep(ctx, "validate", "rejected")
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.SubmissionTimeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, "issue.submit")
	defer span.End()

	actor, err := s.resolver.Resolve(ctx)
	if err != nil {
		s.obs.RecordStep(ctx, "resolve_actor", "failed")
		s.logger.Warn("Could not resolve actor", map[string]interface{}{"error": err})
		return nil, err
	}
	if err := CheckReporter(actor, sub.ReporterEmail); err != nil {
		s.obs.RecordStep(ctx, "resolve_actor", "rejected")
		s.logger.Warn("Reporter email does not match actor", map[string]interface{}{"actorId": actor.ID})
		return nil, err
	}

	release, err := s.guard.Acquire(ctx, actor.ID)
	if err != nil {
		s.obs.RecordStep(ctx, "guard", "rejected")
		s.logger.Warn("Submission rejected by in-flight guard", map[string]interface{}{
			"error":   err,
			"actorId": actor.ID,
		})
		return nil, err
	}
	defer release()

	report, err := s.recorder.Record(ctx, actor, sub)
	if err != nil {
		s.obs.RecordStep(ctx, "record", "failed")
		return nil, err
	}
	s.obs.RecordStep(ctx, "record", "ok")

	dispatch, err := s.dispatcher.Dispatch(ctx, report)
	if err != nil {
		s.obs.RecordStep(ctx, "dispatch", "failed")
		return &Receipt{Report: report, Dispatch: dispatch}, err
	}
	s.obs.RecordStep(ctx, "dispatch", "ok")

	s.logger.Info("Issue report submitted", map[string]interface{}{
		"caseNumber":    report.CaseNumber,
		"ackSent":       dispatch.AckSent,
		"webhookPosted": dispatch.WebhookPosted,
	})
	return &Receipt{Report: report, Dispatch: dispatch}, nil
}

// Report runs Submit and renders the result for the reporter.
func (s *Service) Report(ctx context.Context, sub Submission) (Outcome, error) {
	receipt, err := s.Submit(ctx, sub)
	if err != nil {
		return FailureOutcome(err), err
	}
	return SuccessOutcome(receipt.Report.CaseNumber), nil
}
