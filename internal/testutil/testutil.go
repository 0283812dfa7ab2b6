// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pollsite/backend/pkg/database"
)

// NewSQLiteDB opens a private in-memory sqlite database that is closed when the test ends.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := database.OpenGorm("sqlite", dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.CloseGorm(db)
	})
	return db
}

// PostgresURL returns POLLS_TEST_DATABASE_URL or skips the test when it is unset.
func PostgresURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("POLLS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("POLLS_TEST_DATABASE_URL not set")
	}
	return url
}

// RedisAddr returns POLLS_TEST_REDIS_ADDR or skips the test when it is unset.
func RedisAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("POLLS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POLLS_TEST_REDIS_ADDR not set")
	}
	return addr
}
