package submitissuereport

import (
	goerrors "errors"
	"fmt"
	"net/http"

	"birdwatch-support/internal/common/errors"
)

const fallbackFailureMessage = "Failed to send issue report. Please try again later."

// SuccessOutcome clears the input and closes the dialog.
func SuccessOutcome(caseNumber string) Outcome {
	return Outcome{
		CaseNumber: caseNumber,
		Toast: Toast{
			Title:       "Issue Report Sent",
			Description: fmt.Sprintf("Your case number is %s. We'll respond shortly.", caseNumber),
			Variant:     ToastDefault,
		},
		ResetInput:  true,
		CloseDialog: true,
	}
}

// FailureOutcome keeps the input so the reporter can resubmit.
func FailureOutcome(err error) Outcome {
	title := "Error"
	message := ""
	code := ""

	var stdErr *errors.StandardError
	if goerrors.As(err, &stdErr) {
		message = stdErr.Message
		code = string(stdErr.Code)
		if stdErr.Code == errors.ErrCodeQuotaExceeded {
			title = "Email Limit Reached"
		}
	} else if err != nil {
		message = err.Error()
	}
	if message == "" {
		message = fallbackFailureMessage
	}

	return Outcome{
		Toast: Toast{
			Title:       title,
			Description: message,
			Variant:     ToastDestructive,
		},
		Code: code,
	}
}

// HTTPStatus maps a fatal submission error to a response status.
func HTTPStatus(err error) int {
	switch errors.FromError(err).Code {
	case errors.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case errors.ErrCodeAuthenticationFailed:
		return http.StatusUnauthorized
	case errors.ErrCodeSubmissionInFlight:
		return http.StatusConflict
	case errors.ErrCodeQuotaExceeded:
		return http.StatusTooManyRequests
	case errors.ErrCodeNotificationSendFailed, errors.ErrCodeExternalServiceUnavailable:
		return http.StatusBadGateway
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
