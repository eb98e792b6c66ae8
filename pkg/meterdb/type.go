package meterdb

import (
	"context"
	"database/sql"
	"time"
)

const (
	TableStream  = "stream"
	TableDailies = "dailies"
)

// Layouts used for the clock columns. Values are written in the daemon's
// clock location, never converted.
const (
	ClockLayout = "2006-01-02 15:04:05"
	DateLayout  = "2006-01-02"
)

// One row per acquisition cycle.
type StreamRecord struct {
	ID    int64     `db:"id"`
	Clock time.Time `db:"clock"`
	Base  uint32    `db:"base"`
	Papp  uint32    `db:"papp"`
	// Base minus the previous row's base, 0 for the first row
	BaseDiff int64 `db:"base_diff"`
}

// One row per day rollover.
type DailyRecord struct {
	ID    int64     `db:"id"`
	Clock time.Time `db:"clock"`
	// Today's first base minus the previous day's first base
	BaseDiff int64 `db:"base_diff"`
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
