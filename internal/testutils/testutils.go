package testutils

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/engagekit/vaultd/internal/database"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var (
	testDB     *sqlx.DB
	dbInitOnce sync.Once
)

// TestDB returns a shared test database connection with the schema applied.
func TestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	var initErr error
	dbInitOnce.Do(func() {
		cfg := database.Config{
			Host:     getEnv("TEST_DB_HOST", "localhost"),
			Port:     5433,
			User:     getEnv("TEST_DB_USER", "postgres"),
			Password: getEnv("TEST_DB_PASSWORD", "postgres"),
			DBName:   getEnv("TEST_DB_NAME", "vaultd_test"),
			SSLMode:  getEnv("TEST_DB_SSL_MODE", "disable"),
		}

		testDB, initErr = database.NewPostgresDB(cfg)
		if initErr != nil {
			return
		}

		initErr = ensureSchema(testDB)
		if initErr != nil {
			return
		}

		// Clean up any existing data
		_, initErr = testDB.Exec("TRUNCATE TABLE secrets, webhook_events CASCADE")
	})

	if initErr != nil {
		t.Fatalf("Failed to initialize test database: %v", initErr)
	}

	t.Cleanup(func() {
		// Clean up test data
		_, err := testDB.Exec("TRUNCATE TABLE secrets, webhook_events CASCADE")
		if err != nil {
			t.Errorf("Failed to clean up test data: %v", err)
		}
	})

	return testDB
}

func ensureSchema(db *sqlx.DB) error {
	var count int
	err := db.GetContext(context.Background(), &count, "SELECT COUNT(*) FROM pg_tables WHERE tablename = 'secrets'")
	if err == nil && count > 0 {
		return nil
	}

	migration, err := os.ReadFile("../../migrations/001_initial_schema.up.sql")
	if err != nil {
		return err
	}
	_, err = db.ExecContext(context.Background(), string(migration))
	return err
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// RandomUUID returns a new random UUID for testing
func RandomUUID() uuid.UUID {
	return uuid.New()
}
