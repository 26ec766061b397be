package submitissuereport

import (
	"fmt"
	"time"

	"birdwatch-support/internal/common/config"
)

const (
	GuardRedis  = "redis"
	GuardMemory = "memory"

	SupportChannel = "support"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`

	SupportAddress string         `mapstructure:"support_address"`
	Policy         DispatchPolicy `mapstructure:"dispatch"`
	WebhookChannel string         `mapstructure:"webhook_channel"`

	// SubmissionTimeout bounds one submission after it is detached from the
	// caller.
	SubmissionTimeout time.Duration `mapstructure:"submission_timeout"`
	GuardTTL          time.Duration `mapstructure:"guard_ttl"`
	Guard             string        `mapstructure:"guard"`

	IssuesIndex string `mapstructure:"issues_index"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:           true,
		MaxJobsActive:     5,
		Timeout:           30 * time.Second,
		Policy:            DefaultDispatchPolicy(),
		WebhookChannel:    SupportChannel,
		SubmissionTimeout: 30 * time.Second,
		GuardTTL:          time.Minute,
		Guard:             GuardRedis,
		IssuesIndex:       "issues",
	}
}

func ConfigFromApp(app *config.Config) *Config {
	cfg := DefaultConfig()
	if app == nil {
		return cfg
	}

	w := config.GetWorkerConfig(app, TaskType)
	cfg.Enabled = w.Enabled
	cfg.MaxJobsActive = w.MaxJobsActive
	cfg.Timeout = config.GetDuration(w.Timeout)

	s := app.Support
	cfg.SupportAddress = s.SupportAddress
	cfg.Policy = DispatchPolicy{
		SupportEmailRequired: s.Dispatch.SupportEmailRequired,
		AckEmailRequired:     s.Dispatch.AckEmailRequired,
		WebhookRequired:      s.Dispatch.WebhookRequired,
	}
	if s.SubmissionTimeout > 0 {
		cfg.SubmissionTimeout = config.GetDuration(s.SubmissionTimeout)
	}
	if s.GuardTTL > 0 {
		cfg.GuardTTL = config.GetDuration(s.GuardTTL)
	}
	if s.Guard != "" {
		cfg.Guard = s.Guard
	}
	if idx := app.Database.Elasticsearch.IssuesIndex; idx != "" {
		cfg.IssuesIndex = idx
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
	if c.SupportAddress == "" {
		return fmt.Errorf("support_address is required")
	}
	if c.SubmissionTimeout <= 0 {
		return fmt.Errorf("submission_timeout must be positive")
	}
	if c.GuardTTL <= 0 {
		return fmt.Errorf("guard_ttl must be positive")
	}
	if c.GuardTTL < c.SubmissionTimeout {
		return fmt.Errorf("guard_ttl (%s) must not be shorter than submission_timeout (%s)", c.GuardTTL, c.SubmissionTimeout)
	}
	switch c.Guard {
	case GuardRedis, GuardMemory:
	default:
		return fmt.Errorf("unsupported guard %q", c.Guard)
	}
	return nil
}
