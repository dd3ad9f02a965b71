package auth

import (
	"errors"
	"strings"
	"testing"
)

func newTestHasher(t *testing.T, algorithm Algorithm) *PasswordHasher {
	t.Helper()
	// Minimum bcrypt cost keeps the suite fast; the format is identical.
	h, err := NewPasswordHasher(algorithm, 4)
	if err != nil {
		t.Fatalf("NewPasswordHasher(%s) failed: %v", algorithm, err)
	}
	return h
}

func TestNewPasswordHasher_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		algorithm Algorithm
		cost      int
		wantErr   bool
	}{
		{"bcrypt default cost", AlgorithmBcrypt, DefaultBcryptCost, false},
		{"bcrypt cost too low", AlgorithmBcrypt, 3, true},
		{"bcrypt cost too high", AlgorithmBcrypt, 32, true},
		{"argon2id ignores cost", AlgorithmArgon2id, 0, false},
		{"unknown algorithm", Algorithm("md5"), 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewPasswordHasher(tt.algorithm, tt.cost)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPasswordHasher(%q, %d) error = %v, wantErr %v", tt.algorithm, tt.cost, err, tt.wantErr)
			}
		})
	}

	_, err := NewPasswordHasher(Algorithm("md5"), 10)
	if !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("expected ErrUnknownAlgorithm, got %v", err)
	}
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, algorithm := range []Algorithm{AlgorithmBcrypt, AlgorithmArgon2id} {
		t.Run(string(algorithm), func(t *testing.T) {
			t.Parallel()

			h := newTestHasher(t, algorithm)
			hash, err := h.Hash("secret123")
			if err != nil {
				t.Fatalf("Hash failed: %v", err)
			}

			if hash == "secret123" {
				t.Fatal("Hash returned the plaintext")
			}
			if !h.Verify("secret123", hash) {
				t.Error("Correct password should verify")
			}
			if h.Verify("secret124", hash) {
				t.Error("Wrong password should not verify")
			}
		})
	}
}

func TestPasswordHasher_Salted(t *testing.T) {
	t.Parallel()

	for _, algorithm := range []Algorithm{AlgorithmBcrypt, AlgorithmArgon2id} {
		t.Run(string(algorithm), func(t *testing.T) {
			t.Parallel()

			h := newTestHasher(t, algorithm)
			hash1, err := h.Hash("the_same_password")
			if err != nil {
				t.Fatalf("Hash failed: %v", err)
			}
			hash2, err := h.Hash("the_same_password")
			if err != nil {
				t.Fatalf("Hash failed: %v", err)
			}

			if hash1 == hash2 {
				t.Error("Same password should produce different hashes due to random salt")
			}
			if !h.Verify("the_same_password", hash1) || !h.Verify("the_same_password", hash2) {
				t.Error("Both hashes should verify correctly")
			}
		})
	}
}

func TestPasswordHasher_BcryptCostEmbedded(t *testing.T) {
	t.Parallel()

	h, err := NewPasswordHasher(AlgorithmBcrypt, DefaultBcryptCost)
	if err != nil {
		t.Fatalf("NewPasswordHasher failed: %v", err)
	}

	hash, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if !strings.HasPrefix(hash, "$2a$10$") {
		t.Errorf("expected bcrypt hash with cost 10, got %s", hash)
	}
}

func TestPasswordHasher_Argon2Format(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t, AlgorithmArgon2id)
	hash, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("Hash should have 6 parts, got: %d", len(parts))
	}
	if parts[1] != "argon2id" || parts[2] != "v=19" || parts[3] != "m=65536,t=3,p=4" {
		t.Errorf("unexpected PHC header: %s", hash)
	}
}

func TestPasswordHasher_VerifyAcrossAlgorithms(t *testing.T) {
	t.Parallel()

	bcryptHasher := newTestHasher(t, AlgorithmBcrypt)
	argonHasher := newTestHasher(t, AlgorithmArgon2id)

	bcryptHash, err := bcryptHasher.Hash("secret123")
	if err != nil {
		t.Fatalf("bcrypt Hash failed: %v", err)
	}
	argonHash, err := argonHasher.Hash("secret123")
	if err != nil {
		t.Fatalf("argon2id Hash failed: %v", err)
	}

	if !argonHasher.Verify("secret123", bcryptHash) {
		t.Error("argon2id hasher should still verify bcrypt hashes")
	}
	if !bcryptHasher.Verify("secret123", argonHash) {
		t.Error("bcrypt hasher should still verify argon2id hashes")
	}
}

func TestPasswordHasher_MalformedHashNeverMatches(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t, AlgorithmBcrypt)

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"plaintext", "secret123"},
		{"truncated bcrypt", "$2a$10$abc"},
		{"argon2 missing parts", "$argon2id$v=19$m=65536"},
		{"argon2 bad version", "$argon2id$v=18$m=65536,t=3,p=4$c29tZXNhbHRoZXJl$c29tZWhhc2hoZXJl"},
		{"argon2 bad base64", "$argon2id$v=19$m=65536,t=3,p=4$!!!$!!!"},
		{"argon2 zero rounds", "$argon2id$v=19$m=65536,t=0,p=4$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNo"},
		{"argon2 zero parallelism", "$argon2id$v=19$m=65536,t=3,p=0$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNo"},
		{"argon2 huge memory", "$argon2id$v=19$m=4294967295,t=3,p=4$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNo"},
		{"argon2 empty salt", "$argon2id$v=19$m=65536,t=3,p=4$$aGFzaGhhc2hoYXNo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if h.Verify("secret123", tt.hash) {
				t.Errorf("Verify with %q hash should be false", tt.name)
			}
		})
	}
}

func TestVerifyArgon2id_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		hash    string
		wantErr error
	}{
		{"wrong format", "not-a-hash", ErrInvalidHash},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=4$salt$hash", ErrInvalidHash},
		{"wrong version", "$argon2id$v=18$m=65536,t=3,p=4$c29tZXNhbHRoZXJl$c29tZWhhc2hoZXJl", ErrIncompatibleVersion},
		{"zero rounds", "$argon2id$v=19$m=65536,t=0,p=4$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNo", ErrInvalidHash},
		{"too many rounds", "$argon2id$v=19$m=65536,t=1000,p=4$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNo", ErrInvalidHash},
		{"zero parallelism", "$argon2id$v=19$m=65536,t=3,p=0$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNo", ErrInvalidHash},
		{"zero memory", "$argon2id$v=19$m=0,t=3,p=4$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNo", ErrInvalidHash},
		{"memory above cap", "$argon2id$v=19$m=4294967295,t=3,p=4$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNo", ErrInvalidHash},
		{"empty salt", "$argon2id$v=19$m=65536,t=3,p=4$$aGFzaGhhc2hoYXNo", ErrInvalidHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := verifyArgon2id("password", tt.hash)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("verifyArgon2id(%q) error = %v, want %v", tt.name, err, tt.wantErr)
			}
		})
	}
}
