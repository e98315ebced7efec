package driven

import (
	"time"

	"github.com/ericfisherdev/infrapanel/internal/domain/model"
)

// Outcome labels shared by the metrics port and its callers.
const (
	OutcomeRevealed      = "revealed"
	OutcomeNotFound      = "not_found"
	OutcomeDecryptFailed = "decrypt_failure"
	OutcomeMisconfigured = "misconfigured"
	OutcomeError         = "error"
	OutcomeUpdated       = "updated"
	OutcomeWarning       = "warning"
	OutcomeCompleted     = "completed"
	OutcomeDryRun        = "dry_run"
)

// MetricsRecorder receives counts from the credential services.
// Labels never carry ids, usernames or secret material.
type MetricsRecorder interface {
	RecordReveal(t model.SecretType, outcome string)
	RecordRotatedRow(t model.SecretType, outcome string)
	RecordRotationRun(outcome string, duration time.Duration)
}
