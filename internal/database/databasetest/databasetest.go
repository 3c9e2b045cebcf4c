// Package databasetest provides store-backed fixtures for tests.
package databasetest

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"studentapi/internal/database"
)

// New returns a Gateway over a private in-memory SQLite database. The pool
// holds a single connection so every statement sees the same database.
func New(t *testing.T) *database.Gateway {
	t.Helper()

	gw, err := database.Open(sqlite.Open(":memory:"), database.PoolConfig{
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

// NewWithSchema is New followed by EnsureSchema.
func NewWithSchema(t *testing.T) *database.Gateway {
	t.Helper()

	gw := New(t)
	require.NoError(t, gw.EnsureSchema(context.Background()))
	return gw
}
