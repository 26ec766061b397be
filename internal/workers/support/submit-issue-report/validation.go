package submitissuereport

import (
	"strings"

	"birdwatch-support/internal/common/auth"
	"birdwatch-support/internal/common/errors"
)

const (
	msgDescriptionRequired = "Please provide a description of the issue."
	msgEmailRequired       = "Could not determine your email address. Please try logging in again."
	msgEmailMismatch       = "The email address does not match your signed-in account."
)

// Validate checks a submission before anything remote happens.
func Validate(description, reporterEmail string) error {
	if strings.TrimSpace(description) == "" {
		return errors.NewValidationError(msgDescriptionRequired, "description is empty")
	}
	if strings.TrimSpace(reporterEmail) == "" {
		return errors.NewValidationError(msgEmailRequired, "reporter email is absent")
	}
	return nil
}

// CheckReporter rejects a reporter address other than the signed-in actor's.
// An actor with no email on record keeps the submitted address.
func CheckReporter(actor auth.Actor, reporterEmail string) error {
	if actor.Email == "" {
		return nil
	}
	if !strings.EqualFold(strings.TrimSpace(actor.Email), strings.TrimSpace(reporterEmail)) {
		return errors.NewValidationError(msgEmailMismatch, "reporter email differs from the actor's")
	}
	return nil
}
