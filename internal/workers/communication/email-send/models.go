package emailsend

import (
	"time"
)

// SendRequest is the gateway request body.
type SendRequest struct {
	To      string  `json:"to"`
	Subject string  `json:"subject"`
	Text    string  `json:"text"`
	HTML    *string `json:"html,omitempty"`
}

// ProviderResponse is returned to the caller once the transport accepted the
// message.
type ProviderResponse struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	QueueID  string `json:"queueId,omitempty"`
}

// ErrorResponse is the gateway error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

type EmailStatus string

const (
	StatusPending EmailStatus = "pending"
	StatusSent    EmailStatus = "sent"
	StatusFailed  EmailStatus = "failed"
)

// QueuedEmail is one row of email_queue.
type QueuedEmail struct {
	ID          string
	ToEmail     string
	Subject     string
	TextContent string
	HTMLContent *string
	Status      EmailStatus
	Attempts    int
	LastError   *string
	CreatedAt   time.Time
	SentAt      *time.Time
}

// Message is what a transport delivers.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Scanned       int  `json:"scanned"`
	Sent          int  `json:"sent"`
	Failed        int  `json:"failed"`
	QuotaExceeded bool `json:"quotaExceeded"`
	Skipped       bool `json:"skipped"`
}
