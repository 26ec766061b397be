// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"birdwatch-support/internal/common/errors"
)

// LoadRegistry reads a registry from a JSON file.
func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// Default returns the activities served by the worker manager.
func Default() *ActivityRegistry {
	return &ActivityRegistry{
		Version:     "1.0.0",
		LastUpdated: "2026-10-18",
		Activities: []Activity{
			{
				ID:          "submit-issue-report",
				DisplayName: "Submit Issue Report",
				Description: "Records a bird-sighting app issue report under a new case number and notifies support and the reporter.",
				Category:    "support",
				TaskType:    "support-issue-report",
				Inputs:      []string{"description", "reporterEmail", "actorId", "actorEmail", "accessToken"},
				Outputs:     []string{"caseNumber", "issueId", "supportMessageId", "ackSent", "webhookPosted", "outcome"},
				ErrorCodes: codes(
					errors.ErrCodeValidationFailed,
					errors.ErrCodeAuthenticationFailed,
					errors.ErrCodeSubmissionInFlight,
					errors.ErrCodeDatabaseInsertFailed,
					errors.ErrCodeQuotaExceeded,
					errors.ErrCodeNotificationSendFailed,
					errors.ErrCodeTimeout,
				),
				Timeout:     "30s",
				Retries:     3,
				Tags:        []string{"support", "email"},
			},
			{
				ID:          "email-send",
				DisplayName: "Send Email",
				Description: "Sends one email through the quota-limited mail gateway.",
				Category:    "communication",
				TaskType:    "email-send",
				Inputs:      []string{"to", "subject", "text", "html"},
				Outputs:     []string{"emailId", "emailProvider", "emailQueueId"},
				ErrorCodes: codes(
					errors.ErrCodeValidationFailed,
					errors.ErrCodeQuotaExceeded,
					errors.ErrCodeTransportFailed,
					errors.ErrCodeDatabaseInsertFailed,
					errors.ErrCodeExternalServiceUnavailable,
				),
				Timeout:     "30s",
				Retries:     3,
				Tags:        []string{"email"},
			},
			{
				ID:          "email-queue-reconcile",
				DisplayName: "Reconcile Email Queue",
				Description: "Re-sends failed and stale pending emails within the daily quota.",
				Category:    "communication",
				TaskType:    "email-queue-reconcile",
				Outputs:     []string{"reconcileScanned", "reconcileSent", "reconcileFailed", "reconcileQuotaExceeded", "reconcileSkipped"},
				ErrorCodes:  codes(errors.ErrCodeExternalServiceUnavailable, errors.ErrCodeQueryExecutionFailed),
				Timeout:     "2m",
				Retries:     1,
				Tags:        []string{"email", "maintenance"},
			},
		},
	}
}

// Find returns the activity for taskType.
func (r *ActivityRegistry) Find(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

func codes(cs ...errors.ErrorCode) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

// Validate checks required fields and that IDs and task types are unique.
func (r *ActivityRegistry) Validate() error {
	ids := make(map[string]bool, len(r.Activities))
	taskTypes := make(map[string]bool, len(r.Activities))
	for i, a := range r.Activities {
		if a.ID == "" || a.TaskType == "" || a.DisplayName == "" {
			return fmt.Errorf("activity %d: id, taskType and displayName are required", i)
		}
		if ids[a.ID] {
			return fmt.Errorf("duplicate activity id %q", a.ID)
		}
		if taskTypes[a.TaskType] {
			return fmt.Errorf("duplicate task type %q", a.TaskType)
		}
		ids[a.ID] = true
		taskTypes[a.TaskType] = true
	}
	return nil
}
