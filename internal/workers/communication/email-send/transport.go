package emailsend

import (
	"context"
	"fmt"
	"strings"
	"time"

	awsclient "birdwatch-support/internal/common/aws"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/google/uuid"
	mail "gopkg.in/mail.v2"
)

// Transport hands a message to a mail provider.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg Message) (*ProviderResponse, error)
}

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESTransport sends through Amazon SES.
type SESTransport struct {
	client           SESService
	configurationSet string
}

func NewSESTransport(client SESService, configurationSet string) *SESTransport {
	return &SESTransport{client: client, configurationSet: configurationSet}
}

func (t *SESTransport) Name() string { return TransportSES }

func (t *SESTransport) Send(ctx context.Context, msg Message) (*ProviderResponse, error) {
	input := awsclient.NewSendEmailInput(msg.From, msg.To, msg.Subject, msg.HTML, msg.Text, t.configurationSet)
	out, err := t.client.SendEmail(ctx, input)
	if err != nil {
		return nil, err
	}
	return &ProviderResponse{ID: aws.ToString(out.MessageId), Provider: TransportSES}, nil
}

// SMTPDialer is satisfied by *mail.Dialer.
type SMTPDialer interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPTransport sends through an SMTP relay.
type SMTPTransport struct {
	dialer SMTPDialer
	host   string
}

func NewSMTPTransport(cfg *Config) *SMTPTransport {
	d := mail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	if cfg.UseTLS {
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	d.Timeout = cfg.Timeout
	return &SMTPTransport{dialer: d, host: cfg.SMTPHost}
}

// NewSMTPTransportWithDialer is used by tests and by callers owning the dialer.
func NewSMTPTransportWithDialer(d SMTPDialer, host string) *SMTPTransport {
	return &SMTPTransport{dialer: d, host: host}
}

func (t *SMTPTransport) Name() string { return TransportSMTP }

func (t *SMTPTransport) Send(ctx context.Context, msg Message) (*ProviderResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before sending email: %w", err)
	}

	id := t.messageID()
	m := mail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", id)
	m.SetDateHeader("Date", time.Now())
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", msg.HTML)
	}

	if err := t.dialer.DialAndSend(m); err != nil {
		return nil, err
	}
	return &ProviderResponse{ID: id, Provider: TransportSMTP}, nil
}

func (t *SMTPTransport) messageID() string {
	host := t.host
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("<%s@%s>", strings.ReplaceAll(uuid.New().String(), "-", ""), host)
}
