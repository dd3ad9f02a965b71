package cache

import (
	"testing"
	"time"
)

func TestRevokedKey(t *testing.T) {
	t.Parallel()

	got := revokedKey("01HZX3")
	if got != "revoked:jti:01HZX3" {
		t.Errorf("revokedKey() = %q", got)
	}
}

func TestRevocationTTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		wantOK    bool
		wantTTL   time.Duration
	}{
		{"future whole seconds", now.Add(time.Hour), true, time.Hour + time.Second},
		{"future fractional", now.Add(1500 * time.Millisecond), true, 2 * time.Second},
		{"already expired", now.Add(-time.Minute), false, 0},
		{"expires now", now, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ttl, ok := revocationTTL(tt.expiresAt, now)
			if ok != tt.wantOK {
				t.Fatalf("revocationTTL() ok = %v, want %v", ok, tt.wantOK)
			}
			if ttl != tt.wantTTL {
				t.Errorf("revocationTTL() = %v, want %v", ttl, tt.wantTTL)
			}
			if ok && ttl < tt.expiresAt.Sub(now) {
				t.Errorf("ttl %v shorter than remaining lifetime", ttl)
			}
		})
	}
}
