package submitissuereport

import (
	"context"
	goerrors "errors"
	"strconv"

	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/common/logger"
	"birdwatch-support/internal/common/metrics"
	"birdwatch-support/internal/common/webhook"
	"birdwatch-support/internal/models"
	emailsend "birdwatch-support/internal/workers/communication/email-send"
)

const (
	stepSupportEmail = "support_email"
	stepAckEmail     = "ack_email"
	stepWebhook      = "webhook"
)

// DispatchPolicy names the notification steps whose failure fails the
// submission.
type DispatchPolicy struct {
	SupportEmailRequired bool `mapstructure:"support_email_required"`
	AckEmailRequired     bool `mapstructure:"ack_email_required"`
	WebhookRequired      bool `mapstructure:"webhook_required"`
}

func DefaultDispatchPolicy() DispatchPolicy {
	return DispatchPolicy{SupportEmailRequired: true}
}

// Mailer is satisfied by the in-process gateway service and the remote
// gateway client.
type Mailer interface {
	Send(ctx context.Context, req *emailsend.SendRequest) (*emailsend.ProviderResponse, error)
}

// Dispatcher sends the support email, the acknowledgment and the team-chat
// post, in that order.
type Dispatcher struct {
	mailer         Mailer
	poster         webhook.Poster
	policy         DispatchPolicy
	supportAddress string
	channel        string
	logger         logger.Logger
}

// NewDispatcher builds a dispatcher. poster may be nil, which skips the
// team-chat post.
func NewDispatcher(mailer Mailer, poster webhook.Poster, policy DispatchPolicy, supportAddress, channel string, log logger.Logger) *Dispatcher {
	if channel == "" {
		channel = SupportChannel
	}
	return &Dispatcher{
		mailer:         mailer,
		poster:         poster,
		policy:         policy,
		supportAddress: supportAddress,
		channel:        channel,
		logger:         log,
	}
}

// Dispatch notifies support and the reporter about report. It stops at the
// first failure of a required step.
func (d *Dispatcher) Dispatch(ctx context.Context, report *models.IssueReport) (*DispatchResult, error) {
	content := BuildEmailContent(report.CaseNumber, report.ReporterEmail, report.Description, d.supportAddress)
	result := &DispatchResult{}

	resp, err := d.mailer.Send(ctx, &content.Support)
	if err := d.check(stepSupportEmail, "support email", d.policy.SupportEmailRequired, report, err); err != nil {
		return result, err
	}
	if err == nil {
		result.SupportSent = true
		result.SupportMessageID = resp.ID
	}

	resp, err = d.mailer.Send(ctx, &content.Acknowledgment)
	if err := d.check(stepAckEmail, "acknowledgment email", d.policy.AckEmailRequired, report, err); err != nil {
		return result, err
	}
	if err == nil {
		result.AckSent = true
		result.AckMessageID = resp.ID
	}

	if d.poster == nil {
		return result, nil
	}
	err = d.poster.Post(ctx, d.channel, WebhookMessage(report.CaseNumber, report.ReporterEmail, report.Description))
	if err := d.check(stepWebhook, "team chat notification", d.policy.WebhookRequired, report, err); err != nil {
		return result, err
	}
	result.WebhookPosted = err == nil

	return result, nil
}

// check logs a failed step and returns the error to surface when the step is
// required. A quota error is surfaced as is.
func (d *Dispatcher) check(step, notification string, required bool, report *models.IssueReport, err error) error {
	if err == nil {
		return nil
	}
	metrics.NotificationFailures.WithLabelValues(step, strconv.FormatBool(required)).Inc()

	fields := map[string]interface{}{
		"error":      err,
		"step":       step,
		"caseNumber": report.CaseNumber,
	}
	if !required {
		d.logger.Warn("Notification step failed", fields)
		return nil
	}
	d.logger.Error("Required notification step failed", fields)

	if goerrors.Is(err, errors.ErrQuotaExceeded) {
		return err
	}
	return errors.NewDispatchError(notification, err)
}
