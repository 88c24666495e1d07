// Package testing provides test utilities and database setup for repository and flow tests
package testing

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/amirphl/url-shortener/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// TestDB represents a test database instance
type TestDB struct {
	DB       *gorm.DB
	Name     string
	Backend  string
	teardown func() error
}

// IntegrationEnabled reports whether tests should run against real containers
func IntegrationEnabled() bool {
	return os.Getenv("INTEGRATION_TESTS") == "1"
}

// SetupTestDB creates an isolated database. It uses an in-memory SQLite database
// unless INTEGRATION_TESTS=1, in which case a PostgreSQL container is started and migrated.
func SetupTestDB() (*TestDB, error) {
	if IntegrationEnabled() {
		return SetupPostgresTestDB(context.Background())
	}
	return SetupSQLiteTestDB()
}

// SetupSQLiteTestDB opens a private in-memory SQLite database with the shortener schema
func SetupSQLiteTestDB() (*TestDB, error) {
	name := "shortener_test_" + uuid.NewString()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	// A single connection keeps the in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.ShortLink{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}

	return &TestDB{
		DB:       db,
		Name:     name,
		Backend:  BackendSQLite,
		teardown: sqlDB.Close,
	}, nil
}

// TeardownTestDB closes connections and releases the backing database
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.teardown == nil {
		return nil
	}
	return tdb.teardown()
}

// ClearAllTables removes all rows while preserving structure
func (tdb *TestDB) ClearAllTables() error {
	// Order matters due to foreign key constraints
	tables := []string{
		"short_links",
		"users",
	}

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}

	return nil
}

// TestWithDB is a helper function that sets up a test database, runs the test function, and cleans up
func TestWithDB(testFunc func(*TestDB) error) error {
	testDB, err := SetupTestDB()
	if err != nil {
		return fmt.Errorf("failed to setup test database: %w", err)
	}
	defer func() {
		if cleanupErr := testDB.TeardownTestDB(); cleanupErr != nil {
			log.Printf("Warning: failed to cleanup test database: %v", cleanupErr)
		}
	}()

	return testFunc(testDB)
}

// CreateTestContext creates a context for testing
func CreateTestContext() context.Context {
	return context.Background()
}
