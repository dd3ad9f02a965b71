package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/usergate/usergate/internal/model"
)

// MemoryUserStore is an in-memory user store with the same contract as the
// PostgreSQL repository: unique lowercase emails, IDs assigned on create and
// no password hash in default reads.
type MemoryUserStore struct {
	mu      sync.Mutex
	byID    map[string]*model.User
	byEmail map[string]string

	// Err, when set, is returned by every method.
	Err error

	// Call counters, for asserting which lookups happened.
	CreateCalls  int
	GetByIDCalls int
}

// NewMemoryUserStore returns an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]string),
	}
}

// CreateUser stores a copy of user.
func (s *MemoryUserStore) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CreateCalls++
	if s.Err != nil {
		return s.Err
	}

	email := model.NormalizeEmail(user.Email)
	if _, exists := s.byEmail[email]; exists {
		return model.ErrEmailExists
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now

	cp := *user
	s.byID[cp.ID] = &cp
	s.byEmail[email] = cp.ID
	return nil
}

// GetUserByID returns the user without its password hash.
func (s *MemoryUserStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.GetByIDCalls++
	if s.Err != nil {
		return nil, s.Err
	}

	u, ok := s.byID[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return u.Public(), nil
}

// GetUserCredentialsByEmail returns the user including the password hash.
func (s *MemoryUserStore) GetUserCredentialsByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}

	id, ok := s.byEmail[model.NormalizeEmail(email)]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

// Delete removes a user, simulating a record that vanished after a token was issued.
func (s *MemoryUserStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.byID[id]; ok {
		delete(s.byEmail, u.Email)
		delete(s.byID, id)
	}
}

// Count returns the number of stored users.
func (s *MemoryUserStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// MemoryRevocations is an in-memory revocation index keyed by token ID.
type MemoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time

	// Err, when set, is returned by every method.
	Err error

	// Calls counts IsTokenRevoked lookups.
	Calls int
}

// NewMemoryRevocations returns an empty index.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{revoked: make(map[string]time.Time)}
}

// RevokeToken marks tokenID revoked until expiresAt.
func (m *MemoryRevocations) RevokeToken(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if time.Until(expiresAt) <= 0 {
		return nil
	}
	m.revoked[tokenID] = expiresAt
	return nil
}

// IsTokenRevoked reports whether tokenID is revoked and not yet expired.
func (m *MemoryRevocations) IsTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if m.Err != nil {
		return false, m.Err
	}

	until, ok := m.revoked[tokenID]
	return ok && time.Now().Before(until), nil
}
