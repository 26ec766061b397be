package emailsend

import (
	"html"
	"strings"

	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/common/validation"
)

const (
	msgMissingFields = "Missing required fields"
	msgInvalidEmail  = "Invalid email format"
)

// GetInputSchema describes the gateway request. Presence of to/subject/text
// is checked separately so an empty string and a missing key read the same.
func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"to": {
				Type:        "string",
				Description: "Recipient email address",
				MaxLength:   validation.IntPtr(320),
			},
			"subject": {
				Type:        "string",
				Description: "Email subject line",
				MaxLength:   validation.IntPtr(998),
			},
			"text": {
				Type:        "string",
				Description: "Plain text body",
				MaxLength:   validation.IntPtr(100000),
			},
			"html": {
				Type:        "string",
				Description: "HTML body; defaults to the text wrapped in a div",
				MaxLength:   validation.IntPtr(200000),
			},
		},
		AdditionalProperties: true,
	}
}

// ValidateDocument checks a decoded request body before it is bound.
func ValidateDocument(doc map[string]interface{}) error {
	result := validation.ValidateInput(doc, GetInputSchema())
	if !result.Valid {
		return errors.NewValidationError(msgMissingFields, strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}

// ValidateRequest applies the gateway's presence and address checks.
func ValidateRequest(req *SendRequest) error {
	if req == nil || req.To == "" || req.Subject == "" || req.Text == "" {
		return errors.NewValidationError(msgMissingFields, "to, subject and text are required")
	}
	if !strings.Contains(req.To, "@") {
		return errors.NewValidationError(msgInvalidEmail, "")
	}
	return nil
}

// htmlBody returns the explicit HTML or the escaped text wrapped in a div.
func htmlBody(req *SendRequest) string {
	if req.HTML != nil && *req.HTML != "" {
		return *req.HTML
	}
	return "<div>" + html.EscapeString(req.Text) + "</div>"
}
