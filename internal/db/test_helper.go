package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/google/uuid"
)

// SetupTestDB opens a fresh, migrated SQLite database under t.TempDir and
// closes it when the test ends.
func SetupTestDB(t testing.TB) *DB {
	t.Helper()

	database, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return database
}

// CreateTestUser creates a test user and returns it
func CreateTestUser(t testing.TB, database *DB, username string) *models.User {
	t.Helper()

	// Make username unique by adding timestamp
	uniqueUsername := fmt.Sprintf("%s_%d", username, time.Now().UnixNano())

	u := &models.User{
		ID:           uuid.NewString(),
		Username:     uniqueUsername,
		Email:        uniqueUsername + "@test.com",
		Name:         username,
		PasswordHash: "not-a-real-hash",
		Roles:        []string{models.RoleUser},
		CreatedAt:    time.Now().UTC(),
	}
	if err := InsertUser(context.Background(), database, u); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return u
}

// CountRows returns the number of rows in a table; tests use it to prove
// that nothing was written.
func CountRows(t testing.TB, database *DB, table string) int {
	t.Helper()

	var n int
	if err := database.queryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}
