package metrics

import "time"

// NoopRecorder discards all metrics.
type NoopRecorder struct{}

// NewNoop returns a Recorder that does nothing.
func NewNoop() Recorder {
	return NoopRecorder{}
}

func (NoopRecorder) IncRegistration(string) {}
func (NoopRecorder) IncLogin(string) {}
func (NoopRecorder) IncAuthDecision(string, string) {}
func (NoopRecorder) IncTokenRevoked() {}
func (NoopRecorder) ObserveHashDuration(time.Duration) {}
