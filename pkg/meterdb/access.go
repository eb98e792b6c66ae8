package meterdb

import (
	"context"
	"fmt"
	"time"
)

func InsertStream(ctx context.Context, q Querier, record *StreamRecord) (int64, error) {
	result, err := q.ExecContext(ctx,
		"INSERT INTO stream (clock, base, papp, base_diff) "+
			"VALUES (?, ?, ?, ?)",
		record.Clock.Format(ClockLayout),
		record.Base,
		record.Papp,
		record.BaseDiff,
	)
	if err != nil {
		return 0, fmt.Errorf("insert stream: %w", err)
	}
	return result.LastInsertId()
}

func InsertDaily(ctx context.Context, q Querier, record *DailyRecord) (int64, error) {
	result, err := q.ExecContext(ctx,
		"INSERT INTO dailies (clock, base_diff) "+
			"VALUES (?, ?)",
		record.Clock.Format(DateLayout),
		record.BaseDiff,
	)
	if err != nil {
		return 0, fmt.Errorf("insert dailies: %w", err)
	}
	return result.LastInsertId()
}

// ListStream returns the stream rows in clock order.
func (m *MeterDB) ListStream(ctx context.Context) ([]StreamRecord, error) {
	rows, err := m.db.QueryContext(ctx,
		"SELECT id, clock, base, papp, base_diff FROM stream ORDER BY clock, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []StreamRecord
	for rows.Next() {
		var (
			r   StreamRecord
			raw any
		)
		if err := rows.Scan(&r.ID, &raw, &r.Base, &r.Papp, &r.BaseDiff); err != nil {
			return nil, err
		}
		if r.Clock, err = m.parseClock(raw); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListDailies returns the dailies rows in clock order.
func (m *MeterDB) ListDailies(ctx context.Context) ([]DailyRecord, error) {
	rows, err := m.db.QueryContext(ctx,
		"SELECT id, clock, base_diff FROM dailies ORDER BY clock, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DailyRecord
	for rows.Next() {
		var (
			r   DailyRecord
			raw any
		)
		if err := rows.Scan(&r.ID, &raw, &r.BaseDiff); err != nil {
			return nil, err
		}
		if r.Clock, err = m.parseClock(raw); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// The MySQL driver hands back []byte, or time.Time with parseTime=true;
// SQLite stores the text as written.
func (m *MeterDB) parseClock(raw any) (time.Time, error) {
	var text string
	switch v := raw.(type) {
	case time.Time:
		return time.Date(v.Year(), v.Month(), v.Day(), v.Hour(), v.Minute(), v.Second(), 0, m.loc), nil
	case []byte:
		text = string(v)
	case string:
		text = v
	default:
		return time.Time{}, fmt.Errorf("unexpected clock value %T", raw)
	}

	for _, layout := range []string{ClockLayout, DateLayout} {
		if t, err := time.ParseInLocation(layout, text, m.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable clock %q", text)
}
