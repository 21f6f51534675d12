// Package testutil provides shared test helpers.
package testutil

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/wichananm65/catfood-compare/internal/database"
)

// Logger returns a logger that writes through t.Log.
func Logger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

// SQLite opens an in-memory SQLite database that is closed when the test ends.
func SQLite(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("testutil.SQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Clock is a controllable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts at 2025-01-01 00:00:00 UTC.
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
