// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/usergate/usergate/internal/auth"
	"github.com/usergate/usergate/internal/metrics"
	"github.com/usergate/usergate/internal/model"
	"github.com/usergate/usergate/internal/validation"
)

// Service errors.
var (
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrUserNotFound        = errors.New("user not found")
	ErrMissingSessionClaim = errors.New("session claims missing")
)

// Guard failure reasons, used for logging and metrics labels.
const (
	ReasonMissingToken = "missing_token"
	ReasonInvalidToken = "invalid_token"
	ReasonExpiredToken = "expired_token"
	ReasonRevokedToken = "revoked_token"
	ReasonUserNotFound = "user_not_found"
	ReasonStoreError   = "store_error"
)

// dummyPassword is hashed once at startup so logins for unknown emails
// spend the same time in the hasher as logins with a wrong password.
const dummyPassword = "usergate-dummy-password"

const maxPasswordBytes = 72

// UserStore persists user records. Default reads never include the password hash.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserCredentialsByEmail(ctx context.Context, email string) (*model.User, error)
}

// RevocationIndex records revoked token IDs until the token would expire anyway.
type RevocationIndex interface {
	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// UserService handles registration, login and session verification.
type UserService struct {
	store       UserStore
	revocations RevocationIndex
	hasher      *auth.PasswordHasher
	tokens      *auth.TokenIssuer
	hashSlots   *semaphore.Weighted
	dummyHash   string
	metrics     metrics.Recorder
}

// NewUserService creates a new UserService. hashConcurrency bounds the number
// of password hashes computed at once; zero or less means one per CPU.
func NewUserService(
	store UserStore,
	revocations RevocationIndex,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenIssuer,
	hashConcurrency int,
	recorder metrics.Recorder,
) (*UserService, error) {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if hashConcurrency <= 0 {
		hashConcurrency = runtime.NumCPU()
	}

	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &UserService{
		store:       store,
		revocations: revocations,
		hasher:      hasher,
		tokens:      tokens,
		hashSlots:   semaphore.NewWeighted(int64(hashConcurrency)),
		dummyHash:   dummyHash,
		metrics:     recorder,
	}, nil
}

// FullnameInput is the name part of a registration request.
// LastName is persisted when present. The legacy service accepted it but
// never stored it; that behavior was dropped on purpose.
type FullnameInput struct {
	FirstName string `json:"firstname" validate:"required,min=3"`
	LastName  string `json:"lastname" validate:"omitempty,min=3"`
}

// RegisterInput defines input for registering a user.
type RegisterInput struct {
	Fullname FullnameInput `json:"fullname"`
	Email    string        `json:"email" validate:"required,email"`
	Password string        `json:"password" validate:"required,min=6,max=72"`
}

// LoginInput defines input for logging in.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token  string
	Claims *auth.Claims
	User   *model.User
}

var registerMessages = validation.Messages{
	"fullname.firstname.required": "First name is required",
	"fullname.firstname.min":      "First name must be at least 3 characters long",
	"fullname.lastname.min":       "Last name must be at least 3 characters long",
	"email.required":              "Email is required",
	"email.email":                 "Invalid email",
	"password.required":           "Password is required",
	"password.min":                "Password must be at least 6 characters long",
	"password.max":                "Password must be at most 72 characters long",
}

var loginMessages = validation.Messages{
	"email.required":    "Email is required",
	"email.email":       "Invalid email",
	"password.required": "Password is required",
}

// Register validates input, stores a new user with a hashed password and
// issues a session token for it. Validation and duplicate failures create
// no record.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Email = model.NormalizeEmail(input.Email)

	if err := validation.Validate(input, registerMessages); err != nil {
		s.metrics.IncRegistration(metrics.StatusInvalid)
		return nil, err
	}
	// bcrypt rejects inputs over 72 bytes; the max tag counts runes.
	if len(input.Password) > maxPasswordBytes {
		s.metrics.IncRegistration(metrics.StatusInvalid)
		return nil, &validation.Errors{Fields: []validation.FieldError{
			{Field: "password", Message: registerMessages["password.max"]},
		}}
	}

	hash, err := s.hashPassword(ctx, input.Password)
	if err != nil {
		s.metrics.IncRegistration(metrics.StatusError)
		return nil, err
	}

	user := &model.User{
		Fullname: model.Fullname{
			FirstName: input.Fullname.FirstName,
			LastName:  input.Fullname.LastName,
		},
		Email:        input.Email,
		PasswordHash: hash,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, model.ErrEmailExists) {
			s.metrics.IncRegistration(metrics.StatusDuplicate)
			return nil, ErrDuplicateEmail
		}
		s.metrics.IncRegistration(metrics.StatusError)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	result, err := s.issue(user)
	if err != nil {
		s.metrics.IncRegistration(metrics.StatusError)
		return nil, err
	}

	s.metrics.IncRegistration(metrics.StatusSuccess)
	return result, nil
}

// Login checks the email and password against the stored hash and issues a
// session token. Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	input.Email = model.NormalizeEmail(input.Email)

	if err := validation.Validate(input, loginMessages); err != nil {
		s.metrics.IncLogin(metrics.StatusInvalid)
		return nil, err
	}

	user, err := s.store.GetUserCredentialsByEmail(ctx, input.Email)
	if err != nil && !errors.Is(err, model.ErrUserNotFound) {
		s.metrics.IncLogin(metrics.StatusError)
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	hash := s.dummyHash
	if user != nil {
		hash = user.PasswordHash
	}

	ok, err := s.verifyPassword(ctx, input.Password, hash)
	if err != nil {
		s.metrics.IncLogin(metrics.StatusError)
		return nil, err
	}
	if user == nil || !ok {
		s.metrics.IncLogin(metrics.StatusFailed)
		return nil, ErrInvalidCredentials
	}

	result, err := s.issue(user)
	if err != nil {
		s.metrics.IncLogin(metrics.StatusError)
		return nil, err
	}

	s.metrics.IncLogin(metrics.StatusSuccess)
	return result, nil
}

// Authenticate resolves a raw session token to its user. The signature and
// expiry are verified first, then the token ID is checked against the
// revocation index, then the user is loaded.
func (s *UserService) Authenticate(ctx context.Context, token string) (*model.User, *auth.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	revoked, err := s.revocations.IsTokenRevoked(ctx, claims.TokenID())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrTokenRevoked)
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}

	return user.Public(), claims, nil
}

// Logout revokes the session token described by claims until it expires.
func (s *UserService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.TokenID() == "" {
		return ErrMissingSessionClaim
	}

	if err := s.revocations.RevokeToken(ctx, claims.TokenID(), claims.ExpiresAtTime()); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.metrics.IncTokenRevoked()
	return nil
}

// TokenTTL returns the lifetime of issued tokens.
func (s *UserService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

// FailureReason classifies an Authenticate error for logs and metrics.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenRevoked):
		return ReasonRevokedToken
	case errors.Is(err, auth.ErrTokenExpired):
		return ReasonExpiredToken
	case errors.Is(err, ErrUnauthorized):
		return ReasonInvalidToken
	case errors.Is(err, ErrUserNotFound):
		return ReasonUserNotFound
	default:
		return ReasonStoreError
	}
}

func (s *UserService) issue(user *model.User) (*AuthResult, error) {
	token, claims, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &AuthResult{Token: token, Claims: claims, User: user.Public()}, nil
}

// hashPassword hashes within a bounded number of slots so slow hashes
// cannot starve the process.
func (s *UserService) hashPassword(ctx context.Context, password string) (string, error) {
	if err := s.hashSlots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("failed to acquire hash slot: %w", err)
	}
	defer s.hashSlots.Release(1)

	start := time.Now()
	hash, err := s.hasher.Hash(password)
	s.metrics.ObserveHashDuration(time.Since(start))
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func (s *UserService) verifyPassword(ctx context.Context, password, hash string) (bool, error) {
	if err := s.hashSlots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("failed to acquire hash slot: %w", err)
	}
	defer s.hashSlots.Release(1)

	start := time.Now()
	ok := s.hasher.Verify(password, hash)
	s.metrics.ObserveHashDuration(time.Since(start))
	return ok, nil
}
