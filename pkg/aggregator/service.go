// Package aggregator derives consumption deltas from the cumulative BASE
// index and records stream and daily rows.
package aggregator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/NotCoffee418/linky_meter/pkg/clock"
	"github.com/NotCoffee418/linky_meter/pkg/meterdb"
	"github.com/NotCoffee418/linky_meter/pkg/types"
)

// ComputeStreamDiff returns counter minus the base of the latest stream
// row, or 0 when the table is empty. A meter reset shows as a negative
// value and is reported as is.
func ComputeStreamDiff(ctx context.Context, q meterdb.Querier, counter uint32) (int64, error) {
	query := `
		SELECT base
		FROM stream
		ORDER BY clock DESC, id DESC
		LIMIT 1
	`

	var previous int64
	err := q.QueryRowContext(ctx, query).Scan(&previous)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No records yet
			return 0, nil
		}
		return 0, fmt.Errorf("query previous stream base: %w", err)
	}
	return int64(counter) - previous, nil
}

// ComputeDailyDiff returns counter minus the base of the first stream row
// of the most recent day before dayStart, or 0 when no earlier day exists.
// Rows at or after dayStart are ignored so the result does not depend on
// whether today's stream row was written already.
func ComputeDailyDiff(ctx context.Context, q meterdb.Querier, counter uint32, dayStart time.Time) (int64, error) {
	query := `
		SELECT s.base
		FROM stream s
		INNER JOIN (
			SELECT MIN(clock) AS first_of_day
			FROM stream
			WHERE clock < ?
			GROUP BY DATE(clock)
		) firsts ON s.clock = firsts.first_of_day
		ORDER BY s.clock DESC, s.id ASC
		LIMIT 1
	`

	var previous int64
	err := q.QueryRowContext(ctx, query, dayStart.Format(meterdb.ClockLayout)).Scan(&previous)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No earlier day
			return 0, nil
		}
		return 0, fmt.Errorf("query previous day first base: %w", err)
	}
	return int64(counter) - previous, nil
}

// Aggregator writes each record together with its diff in one transaction.
type Aggregator struct {
	db *meterdb.MeterDB
}

func New(db *meterdb.MeterDB) *Aggregator {
	return &Aggregator{db: db}
}

func (a *Aggregator) RecordStream(ctx context.Context, reading types.Reading) (meterdb.StreamRecord, error) {
	record := meterdb.StreamRecord{
		Clock: reading.Timestamp,
		Base:  reading.Counter,
		Papp:  reading.Power,
	}

	err := a.db.WithTx(ctx, func(tx *sql.Tx) error {
		diff, err := ComputeStreamDiff(ctx, tx, reading.Counter)
		if err != nil {
			return err
		}
		record.BaseDiff = diff

		id, err := meterdb.InsertStream(ctx, tx, &record)
		if err != nil {
			return err
		}
		record.ID = id
		return nil
	})
	if err != nil {
		return meterdb.StreamRecord{}, err
	}
	return record, nil
}

// RecordDaily writes the rollup for day, using the first reading of that
// day as the reference counter.
func (a *Aggregator) RecordDaily(ctx context.Context, reading types.Reading, day clock.Day) (meterdb.DailyRecord, error) {
	dayStart := day.Start(reading.Timestamp.Location())
	record := meterdb.DailyRecord{Clock: dayStart}

	err := a.db.WithTx(ctx, func(tx *sql.Tx) error {
		diff, err := ComputeDailyDiff(ctx, tx, reading.Counter, dayStart)
		if err != nil {
			return err
		}
		record.BaseDiff = diff

		id, err := meterdb.InsertDaily(ctx, tx, &record)
		if err != nil {
			return err
		}
		record.ID = id
		return nil
	})
	if err != nil {
		return meterdb.DailyRecord{}, err
	}
	return record, nil
}
