package emailsend

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsclient "birdwatch-support/internal/common/aws"
	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/common/logger"
	"birdwatch-support/internal/common/metrics"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
)

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Locker serializes reconciliation passes across instances.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

type ServiceDependencies struct {
	Logger    logger.Logger
	Quota     QuotaCounter
	Queue     Queue
	Transport Transport
	// SNS is optional; without it quota exhaustion is only logged.
	SNS SNSService
	// ReconcileLock is optional; without it passes are not serialized.
	ReconcileLock Locker
	Clock         func() time.Time
}

// Service is the mail gateway: validation, daily quota, queueing and
// transport, in that order.
type Service struct {
	config    *Config
	logger    logger.Logger
	quota     QuotaCounter
	queue     Queue
	transport Transport
	sns       SNSService
	lock      Locker
	now       func() time.Time

	alertMu    sync.Mutex
	alertedDay string
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		config:    config,
		logger:    log.WithFields(map[string]interface{}{"component": "mail-gateway"}),
		quota:     deps.Quota,
		queue:     deps.Queue,
		transport: deps.Transport,
		sns:       deps.SNS,
		lock:      deps.ReconcileLock,
		now:       now,
	}
}

// Send delivers one email. A quota slot is consumed once the reservation
// succeeds, even if the transport later fails.
func (s *Service) Send(ctx context.Context, req *SendRequest) (*ProviderResponse, error) {
	if err := ValidateRequest(req); err != nil {
		s.logger.Warn("Rejected send request", map[string]interface{}{
			"error": err,
		})
		return nil, err
	}

	now := s.now().UTC()
	if err := s.reserve(ctx, now); err != nil {
		return nil, err
	}

	email := &QueuedEmail{
		ID:          uuid.New().String(),
		ToEmail:     req.To,
		Subject:     req.Subject,
		TextContent: req.Text,
		HTMLContent: req.HTML,
		Status:      StatusPending,
		CreatedAt:   now,
	}
	if err := s.queue.Enqueue(ctx, email); err != nil {
		s.logger.Error("Failed to enqueue email", map[string]interface{}{
			"error": err,
			"to":    req.To,
		})
		return nil, err
	}

	resp, err := s.deliver(ctx, email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Email sent", map[string]interface{}{
		"queueId":   email.ID,
		"messageId": resp.ID,
		"provider":  resp.Provider,
	})
	return resp, nil
}

func (s *Service) reserve(ctx context.Context, now time.Time) error {
	day := QuotaDay(now)
	used, ok, err := s.quota.Reserve(ctx, day, s.config.DailyLimit)
	if err != nil {
		s.logger.Error("Quota reservation failed", map[string]interface{}{
			"error": err,
			"day":   day,
		})
		return errors.NewExternalServiceError("quota store", err)
	}
	if !ok {
		metrics.QuotaRejections.Inc()
		s.logger.Warn("Daily email limit reached", map[string]interface{}{
			"day":   day,
			"limit": s.config.DailyLimit,
		})
		s.alertQuotaExhausted(ctx, day)
		return errors.NewQuotaExceededError(s.config.DailyLimit)
	}
	s.logger.Debug("Quota reserved", map[string]interface{}{
		"day":  day,
		"used": used,
	})
	return nil
}

// deliver hands a queued email to the transport and records the result on
// the queue row.
func (s *Service) deliver(ctx context.Context, email *QueuedEmail) (*ProviderResponse, error) {
	req := &SendRequest{To: email.ToEmail, Subject: email.Subject, Text: email.TextContent, HTML: email.HTMLContent}
	msg := Message{
		From:    s.config.Sender(),
		To:      email.ToEmail,
		Subject: email.Subject,
		Text:    email.TextContent,
		HTML:    htmlBody(req),
	}

	resp, err := s.transport.Send(ctx, msg)
	if err != nil {
		metrics.EmailTransportFailures.WithLabelValues(s.transport.Name()).Inc()
		s.logger.Error("Transport rejected email", map[string]interface{}{
			"error":    err,
			"queueId":  email.ID,
			"provider": s.transport.Name(),
		})
		if markErr := s.queue.MarkFailed(ctx, email.ID, err.Error()); markErr != nil {
			s.logger.Error("Failed to mark email failed", map[string]interface{}{
				"error":   markErr,
				"queueId": email.ID,
			})
		}
		return nil, errors.NewTransportError(s.transport.Name(), err)
	}
	metrics.EmailsSent.WithLabelValues(resp.Provider).Inc()

	// The provider accepted the message; a stale row only costs a late
	// status update, so the send still succeeds.
	if err := s.queue.MarkSent(ctx, email.ID, s.now().UTC()); err != nil {
		s.logger.Error("Failed to mark email sent", map[string]interface{}{
			"error":   err,
			"queueId": email.ID,
		})
	}

	resp.QueueID = email.ID
	return resp, nil
}

func (s *Service) alertQuotaExhausted(ctx context.Context, day string) {
	if s.sns == nil || s.config.QuotaAlertTopicARN == "" {
		return
	}

	s.alertMu.Lock()
	if s.alertedDay == day {
		s.alertMu.Unlock()
		return
	}
	s.alertedDay = day
	s.alertMu.Unlock()

	input := awsclient.NewAlertInput(
		s.config.QuotaAlertTopicARN,
		"EMAIL_QUOTA_EXHAUSTED",
		"Daily email limit reached",
		fmt.Sprintf("The mail gateway reached its limit of %d emails for %s. Further sends are rejected until the next UTC day.", s.config.DailyLimit, day),
	)
	if _, err := s.sns.Publish(ctx, input); err != nil {
		s.logger.Warn("Quota alert publish failed", map[string]interface{}{
			"error": err,
			"day":   day,
		})
	}
}

// QuotaUsage reports today's reserved sends and the configured limit.
func (s *Service) QuotaUsage(ctx context.Context) (used, limit int64, err error) {
	used, err = s.quota.Usage(ctx, QuotaDay(s.now()))
	return used, s.config.DailyLimit, err
}

// Reconcile re-sends failed rows and pending rows older than StaleAfter.
// The pass stops early once the daily quota is exhausted.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	result := &ReconcileResult{}

	if s.lock != nil {
		ok, err := s.lock.TryLock(ctx)
		if err != nil {
			return nil, errors.NewExternalServiceError("reconcile lock", err)
		}
		if !ok {
			s.logger.Info("Reconciliation already running elsewhere", nil)
			result.Skipped = true
			return result, nil
		}
		defer func() {
			if err := s.lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("Failed to release reconcile lock", map[string]interface{}{"error": err})
			}
		}()
	}

	opts := s.config.Reconcile
	staleBefore := s.now().UTC().Add(-opts.StaleAfter)
	rows, err := s.queue.ListRetryable(ctx, staleBefore, opts.MaxAttempts, opts.BatchSize)
	if err != nil {
		return nil, err
	}
	result.Scanned = len(rows)

	for i := range rows {
		email := &rows[i]
		if err := s.reserve(ctx, s.now().UTC()); err != nil {
			if errors.FromError(err).Code == errors.ErrCodeQuotaExceeded {
				result.QuotaExceeded = true
				break
			}
			return result, err
		}

		if _, err := s.deliver(ctx, email); err != nil {
			result.Failed++
			metrics.QueueReconciled.WithLabelValues("failed").Inc()
			continue
		}
		result.Sent++
		metrics.QueueReconciled.WithLabelValues("sent").Inc()
	}

	s.logger.Info("Reconciliation pass finished", map[string]interface{}{
		"scanned":       result.Scanned,
		"sent":          result.Sent,
		"failed":        result.Failed,
		"quotaExceeded": result.QuotaExceeded,
	})
	return result, nil
}
