package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Registrations       map[string]uint64
	Logins              map[string]uint64
	AuthDecisions       map[string]uint64 // keyed "outcome" or "outcome:reason"
	TokensRevoked       uint64
	HashDurationCount   uint64
	HashDurationTotalNs int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu            sync.Mutex
	registrations map[string]uint64
	logins        map[string]uint64
	authDecisions map[string]uint64

	tokensRevoked       uint64
	hashDurationCount   uint64
	hashDurationTotalNs int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		registrations: make(map[string]uint64),
		logins:        make(map[string]uint64),
		authDecisions: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Registrations:       copyCounts(m.registrations),
		Logins:              copyCounts(m.logins),
		AuthDecisions:       copyCounts(m.authDecisions),
		TokensRevoked:       atomic.LoadUint64(&m.tokensRevoked),
		HashDurationCount:   atomic.LoadUint64(&m.hashDurationCount),
		HashDurationTotalNs: atomic.LoadInt64(&m.hashDurationTotalNs),
	}
}

// IncRegistration counts a registration attempt by status.
func (m *InMemoryRecorder) IncRegistration(status string) {
	m.mu.Lock()
	m.registrations[status]++
	m.mu.Unlock()
}

// IncLogin counts a login attempt by status.
func (m *InMemoryRecorder) IncLogin(status string) {
	m.mu.Lock()
	m.logins[status]++
	m.mu.Unlock()
}

// IncAuthDecision counts a guard decision.
func (m *InMemoryRecorder) IncAuthDecision(outcome, reason string) {
	key := outcome
	if reason != "" {
		key += ":" + reason
	}
	m.mu.Lock()
	m.authDecisions[key]++
	m.mu.Unlock()
}

// IncTokenRevoked increments the revoked token counter.
func (m *InMemoryRecorder) IncTokenRevoked() {
	atomic.AddUint64(&m.tokensRevoked, 1)
}

// ObserveHashDuration records how long a hash or verify took.
func (m *InMemoryRecorder) ObserveHashDuration(duration time.Duration) {
	atomic.AddUint64(&m.hashDurationCount, 1)
	atomic.AddInt64(&m.hashDurationTotalNs, duration.Nanoseconds())
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
