// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Status labels for registration and login outcomes.
const (
	StatusSuccess   = "success"
	StatusDuplicate = "duplicate"
	StatusInvalid   = "invalid"
	StatusFailed    = "failed"
	StatusError     = "error"
)

// Outcome labels for guard decisions.
const (
	OutcomeAllowed  = "allowed"
	OutcomeRejected = "rejected"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// Registration and login metrics
	IncRegistration(status string)
	IncLogin(status string)

	// Guard metrics. reason is empty for allowed requests.
	IncAuthDecision(outcome, reason string)

	// Token lifecycle metrics
	IncTokenRevoked()

	// Credential hashing metrics
	ObserveHashDuration(duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
