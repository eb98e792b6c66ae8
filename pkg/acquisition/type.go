package acquisition

import (
	"context"
	"errors"
	"time"

	"github.com/NotCoffee418/linky_meter/pkg/clock"
	"github.com/NotCoffee418/linky_meter/pkg/config"
	"github.com/NotCoffee418/linky_meter/pkg/meterdb"
	"github.com/NotCoffee418/linky_meter/pkg/types"
)

var (
	// ErrReadStall is returned when a cycle hits its line or time cap
	// without assembling a complete reading.
	ErrReadStall = errors.New("no complete reading")
	// ErrTransport wraps failures to open or read the serial line.
	ErrTransport = errors.New("transport failure")
	// ErrCycleSkipped wraps a write that still failed after all attempts.
	ErrCycleSkipped = errors.New("cycle skipped")
)

// LineSource is a line oriented transport, opened and closed every cycle.
type LineSource interface {
	Open() error
	ReadLine() (string, error)
	Close() error
}

// Recorder persists readings.
type Recorder interface {
	RecordStream(ctx context.Context, reading types.Reading) (meterdb.StreamRecord, error)
	RecordDaily(ctx context.Context, reading types.Reading, day clock.Day) (meterdb.DailyRecord, error)
}

// Publisher receives every complete reading, whether or not it was stored.
type Publisher interface {
	Publish(reading types.Reading)
}

type Options struct {
	Interval         time.Duration
	MaxLinesPerCycle int
	ReadTimeout      time.Duration
	FailurePolicy    string
	MaxAttempts      int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
}

func OptionsFromConfig(cfg *config.LinkyConfig) Options {
	return Options{
		Interval:         cfg.Acquisition.Interval(),
		MaxLinesPerCycle: cfg.Acquisition.MaxLinesPerCycle,
		ReadTimeout:      cfg.Acquisition.ReadTimeout(),
		FailurePolicy:    cfg.Persistence.FailurePolicy,
		MaxAttempts:      cfg.Persistence.MaxAttempts,
		RetryBaseDelay:   cfg.Persistence.RetryBaseDelay(),
		RetryMaxDelay:    cfg.Persistence.RetryMaxDelay(),
	}
}
