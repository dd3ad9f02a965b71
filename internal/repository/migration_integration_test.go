//go:build integration

package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/usergate/usergate/internal/testutil"
)

// ============================================================================
// Migration Integration Tests
// ============================================================================

func TestIntegrationMigration_UsersTableSchema(t *testing.T) {
	ctx, db := newMigrationTestEnv(t)

	if err := Migrate(testutil.RequireEnv(t, "DATABASE_URL")); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	expectedColumns := []string{
		"id",
		"first_name",
		"last_name",
		"email",
		"password_hash",
		"created_at",
		"updated_at",
	}

	for _, col := range expectedColumns {
		t.Run(col, func(t *testing.T) {
			exists, err := columnExists(ctx, db, "users", col)
			if err != nil {
				t.Fatalf("columnExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Column %q should exist in users table", col)
			}
		})
	}
}

func TestIntegrationMigration_UsersConstraints(t *testing.T) {
	ctx, db := newMigrationTestEnv(t)

	if err := Migrate(testutil.RequireEnv(t, "DATABASE_URL")); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM users`); err != nil {
		t.Fatalf("clean users: %v", err)
	}

	insert := `INSERT INTO users (id, first_name, last_name, email, password_hash)
		VALUES (gen_random_uuid(), $1, $2, $3, 'x')`

	if _, err := db.ExecContext(ctx, insert, "Ann", "Lee", "ann@example.com"); err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	tests := []struct {
		name      string
		firstName string
		lastName  any
		email     string
	}{
		{"duplicate email", "Bob", nil, "ann@example.com"},
		{"uppercase email", "Bob", nil, "Bob@Example.com"},
		{"short first name", "Al", nil, "al@example.com"},
		{"short last name", "Bob", "Li", "bob@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.ExecContext(ctx, insert, tt.firstName, tt.lastName, tt.email)
			if err == nil {
				t.Error("expected constraint violation")
			}
		})
	}
}

func TestIntegrationMigration_Rollback(t *testing.T) {
	ctx, db := newMigrationTestEnv(t)
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	if err := Migrate(dbURL); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	m, err := NewMigrator(dbURL)
	if err != nil {
		t.Fatalf("NewMigrator() error = %v", err)
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("Down() error = %v", err)
	}

	exists, err := tableExists(ctx, db, "users")
	if err != nil {
		t.Fatalf("tableExists failed: %v", err)
	}
	if exists {
		t.Error("users table should not exist after rollback")
	}

	if err := Migrate(dbURL); err != nil {
		t.Fatalf("re-apply Migrate() error = %v", err)
	}
}

func TestIntegrationMigration_Idempotency(t *testing.T) {
	_, _ = newMigrationTestEnv(t)
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	if err := Migrate(dbURL); err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	if err := Migrate(dbURL); err != nil {
		t.Errorf("second Migrate() should be a no-op, got %v", err)
	}
}

func tableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, tableName).Scan(&exists)
	return exists, err
}

func columnExists(ctx context.Context, db *sql.DB, tableName, columnName string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2
		)
	`, tableName, columnName).Scan(&exists)
	return exists, err
}

// newMigrationTestEnv opens a database/sql handle for schema inspection and
// holds the shared advisory lock for the duration of the test.
func newMigrationTestEnv(t *testing.T) (context.Context, *sql.DB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	// Start from an empty schema so migration state matches the tables.
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS users, schema_migrations`); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	return ctx, db
}
