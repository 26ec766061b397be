package submitissuereport

import (
	"birdwatch-support/internal/models"
)

// Submission is what the reporter sends.
type Submission struct {
	Description   string `json:"description"`
	ReporterEmail string `json:"reporterEmail"`
}

// Receipt describes a recorded and dispatched report.
type Receipt struct {
	Report   *models.IssueReport `json:"report"`
	Dispatch *DispatchResult     `json:"dispatch"`
}

// DispatchResult records which notifications went out.
type DispatchResult struct {
	SupportMessageID string `json:"supportMessageId,omitempty"`
	AckMessageID     string `json:"ackMessageId,omitempty"`
	SupportSent      bool   `json:"supportSent"`
	AckSent          bool   `json:"ackSent"`
	WebhookPosted    bool   `json:"webhookPosted"`
}

type ToastVariant string

const (
	ToastDefault     ToastVariant = "default"
	ToastDestructive ToastVariant = "destructive"
)

type Toast struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Variant     ToastVariant `json:"variant"`
}

// Outcome is what the reporter sees after a submission.
type Outcome struct {
	CaseNumber  string `json:"caseNumber,omitempty"`
	Toast       Toast  `json:"toast"`
	ResetInput  bool   `json:"resetInput"`
	CloseDialog bool   `json:"closeDialog"`
	Code        string `json:"code,omitempty"`
}
