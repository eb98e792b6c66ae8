// Package meterdbtest opens throwaway SQLite meter databases for tests.
package meterdbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/NotCoffee418/linky_meter/pkg/config"
	"github.com/NotCoffee418/linky_meter/pkg/meterdb"
)

// Open returns a provisioned database in t.TempDir, closed on cleanup.
func Open(t testing.TB, loc *time.Location) *meterdb.MeterDB {
	t.Helper()

	db, err := meterdb.Open(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "linky.db"),
	}, loc, nil)
	if err != nil {
		t.Fatalf("open meterdb: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}

// SeedStream inserts a stream row without any diff computation.
func SeedStream(t testing.TB, db *meterdb.MeterDB, clock time.Time, base uint32) {
	t.Helper()

	_, err := meterdb.InsertStream(context.Background(), db.DB(), &meterdb.StreamRecord{
		Clock: clock,
		Base:  base,
	})
	if err != nil {
		t.Fatalf("seed stream: %v", err)
	}
}
