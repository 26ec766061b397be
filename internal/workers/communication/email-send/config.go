package emailsend

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"birdwatch-support/internal/common/config"
)

const (
	TransportSES  = "ses"
	TransportSMTP = "smtp"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`

	DailyLimit  int64  `mapstructure:"daily_limit"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
	Transport   string `mapstructure:"transport"`

	SESConfigurationSet string `mapstructure:"ses_configuration_set"`

	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
	UseTLS       bool   `mapstructure:"use_tls"`

	// QuotaAlertTopicARN receives one alert per day when the limit is hit.
	QuotaAlertTopicARN string `mapstructure:"quota_alert_topic_arn"`

	Reconcile ReconcileOptions `mapstructure:"reconcile"`
}

// ReconcileOptions bound one reconciliation pass over the email queue.
type ReconcileOptions struct {
	BatchSize   int           `mapstructure:"batch_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	StaleAfter  time.Duration `mapstructure:"stale_after"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
		DailyLimit:    2000,
		FromName:      "BirdWatch Support",
		Transport:     TransportSES,
		SMTPPort:      587,
		UseTLS:        true,
		Reconcile: ReconcileOptions{
			BatchSize:   50,
			MaxAttempts: 5,
			StaleAfter:  15 * time.Minute,
		},
	}
}

// ConfigFromApp builds the gateway config from the application config.
func ConfigFromApp(app *config.Config) *Config {
	cfg := DefaultConfig()
	if app == nil {
		return cfg
	}

	w := config.GetWorkerConfig(app, TaskType)
	cfg.Enabled = w.Enabled
	cfg.MaxJobsActive = w.MaxJobsActive
	cfg.Timeout = config.GetDuration(w.Timeout)

	if app.Gateway.DailyLimit > 0 {
		cfg.DailyLimit = app.Gateway.DailyLimit
	}
	cfg.FromAddress = app.Gateway.FromAddress
	if app.Gateway.FromName != "" {
		cfg.FromName = app.Gateway.FromName
	}
	if app.Gateway.Transport != "" {
		cfg.Transport = strings.ToLower(app.Gateway.Transport)
	}

	cfg.SESConfigurationSet = app.Integrations.AWS.SES.ConfigurationSetName
	if app.Integrations.AWS.SNS.Enabled {
		cfg.QuotaAlertTopicARN = app.Integrations.AWS.SNS.QuotaAlertTopicARN
	}

	smtp := app.Integrations.SMTP
	cfg.SMTPHost = smtp.Host
	if smtp.Port > 0 {
		cfg.SMTPPort = smtp.Port
	}
	cfg.SMTPUsername = smtp.Username
	cfg.SMTPPassword = smtp.Password
	cfg.UseTLS = smtp.UseTLS

	rc := app.Support.Reconcile
	if rc.BatchSize > 0 {
		cfg.Reconcile.BatchSize = rc.BatchSize
	}
	if rc.MaxAttempts > 0 {
		cfg.Reconcile.MaxAttempts = rc.MaxAttempts
	}
	if rc.StaleAfter > 0 {
		cfg.Reconcile.StaleAfter = config.GetDuration(rc.StaleAfter)
	}

	return cfg
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.DailyLimit <= 0 {
		return fmt.Errorf("daily_limit must be positive")
	}
	if c.FromAddress == "" {
		return fmt.Errorf("from_address is required")
	}
	switch c.Transport {
	case TransportSES:
	case TransportSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("smtp_host is required")
		}
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			return fmt.Errorf("smtp_port must be between 1 and 65535")
		}
	default:
		return fmt.Errorf("unsupported transport %q", c.Transport)
	}
	if c.Reconcile.MaxAttempts <= 0 {
		return fmt.Errorf("reconcile.max_attempts must be positive")
	}
	return nil
}

// Sender is the From header: "Name <address>", or the bare address when no
// name is configured.
func (c *Config) Sender() string {
	if c.FromName == "" {
		return c.FromAddress
	}
	return (&mail.Address{Name: c.FromName, Address: c.FromAddress}).String()
}
