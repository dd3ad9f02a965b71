package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/usergate/usergate/internal/model"
)

// Re-exported store errors so callers can match on either package.
var (
	ErrUserNotFound = model.ErrUserNotFound
	ErrEmailExists  = model.ErrEmailExists
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// userColumns is the default projection. It never includes password_hash.
const userColumns = `id, first_name, COALESCE(last_name, ''), email, created_at, updated_at`

// CreateUser inserts a new user. An empty ID is assigned a fresh UUID.
// The email is normalized before insert; the unique constraint on email
// makes concurrent duplicate registrations fail with ErrEmailExists.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = model.NormalizeEmail(user.Email)

	query := `
		INSERT INTO users (id, first_name, last_name, email, password_hash)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Fullname.FirstName,
		user.Fullname.LastName,
		user.Email,
		user.PasswordHash,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID. The password hash is not loaded.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetUserCredentialsByEmail retrieves a user together with the password hash.
// Only the login flow should call this.
func (r *Repository) GetUserCredentialsByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + `, password_hash FROM users WHERE email = $1`

	var user model.User
	err := r.pool.QueryRow(ctx, query, model.NormalizeEmail(email)).Scan(
		&user.ID,
		&user.Fullname.FirstName,
		&user.Fullname.LastName,
		&user.Email,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user credentials: %w", err)
	}

	return &user, nil
}

// scanUser scans the default projection. pgx.ErrNoRows maps to ErrUserNotFound.
func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Fullname.FirstName,
		&user.Fullname.LastName,
		&user.Email,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
