// Package acquisition runs the read, assemble and store cycle.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/NotCoffee418/linky_meter/pkg/clock"
	"github.com/NotCoffee418/linky_meter/pkg/config"
	"github.com/NotCoffee418/linky_meter/pkg/metrics"
	"github.com/NotCoffee418/linky_meter/pkg/tic"
	"github.com/NotCoffee418/linky_meter/pkg/types"
	"go.uber.org/zap"
)

type Loop struct {
	opts      Options
	source    LineSource
	recorder  Recorder
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *metrics.Metrics
	publisher Publisher
	detector  *RolloverDetector

	// sleep waits d or until ctx is done
	sleep func(ctx context.Context, d time.Duration) error
}

func NewLoop(opts Options, source LineSource, recorder Recorder, clk clock.Clock, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		opts:     opts,
		source:   source,
		recorder: recorder,
		clock:    clk,
		logger:   logger,
		detector: NewRolloverDetector(clk.Today()),
		sleep:    sleepContext,
	}
}

// SetMetrics attaches a metrics sink. A nil value disables metrics.
func (l *Loop) SetMetrics(m *metrics.Metrics) {
	l.metrics = m
}

// SetPublisher attaches the live feed.
func (l *Loop) SetPublisher(p Publisher) {
	l.publisher = p
}

// Run repeats RunCycle every Interval until ctx is cancelled. It only
// returns an error under the crash policy.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Acquisition loop started",
		zap.Duration("interval", l.opts.Interval),
		zap.String("failure_policy", l.opts.FailurePolicy),
		zap.Stringer("day", l.detector.LastSeen()))

	for {
		err := l.RunCycle(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			l.logger.Info("Acquisition loop stopped")
			return nil
		case l.opts.FailurePolicy == config.PolicyCrash && !errors.Is(err, ErrReadStall):
			return err
		default:
			l.logger.Error("Cycle failed", zap.Error(err))
		}

		if err := l.sleep(ctx, l.opts.Interval); err != nil {
			l.logger.Info("Acquisition loop stopped")
			return nil
		}
	}
}

// RunCycle reads one complete reading and stores it. The dailies record is
// written before the stream record whenever the reading falls on a new day.
func (l *Loop) RunCycle(ctx context.Context) error {
	start := time.Now()

	reading, err := l.collectReading(ctx)
	if err != nil {
		if errors.Is(err, ErrReadStall) {
			l.metrics.ObserveCycle(metrics.ResultStall, time.Since(start))
		} else {
			l.metrics.ObserveCycle(metrics.ResultTransportError, time.Since(start))
		}
		return err
	}
	l.logger.Debug("Output parsed",
		zap.Uint32("base", reading.Counter),
		zap.Uint32("papp", reading.Power))

	l.metrics.ObserveReading(reading)
	if l.publisher != nil {
		l.publisher.Publish(reading)
	}

	day := clock.DayOf(reading.Timestamp)
	if l.detector.Check(day) {
		l.logger.Info("First record of the day, inserting dailies record", zap.Stringer("day", day))
		err := l.withRetry(ctx, "dailies", func(ctx context.Context) error {
			daily, err := l.recorder.RecordDaily(ctx, reading, day)
			if err == nil {
				l.logger.Info("Dailies record inserted", zap.Int64("base_diff", daily.BaseDiff))
			}
			return err
		})
		if err != nil {
			// day stays unobserved so the next cycle writes the dailies record
			l.metrics.ObserveCycle(metrics.ResultWriteError, time.Since(start))
			return err
		}
		l.metrics.ObserveRollover()
		l.detector.Observe(day)
	}

	err = l.withRetry(ctx, "stream", func(ctx context.Context) error {
		stream, err := l.recorder.RecordStream(ctx, reading)
		if err == nil {
			l.logger.Debug("Stream record inserted",
				zap.Int64("id", stream.ID),
				zap.Int64("base_diff", stream.BaseDiff))
		}
		return err
	})
	l.detector.Observe(day)
	if err != nil {
		l.metrics.ObserveCycle(metrics.ResultWriteError, time.Since(start))
		return err
	}

	l.metrics.ObserveCycle(metrics.ResultOK, time.Since(start))
	return nil
}

// collectReading opens the transport, feeds lines to a fresh assembler and
// closes the transport on every path.
func (l *Loop) collectReading(ctx context.Context) (types.Reading, error) {
	l.logger.Debug("Opening terminal")
	if err := l.source.Open(); err != nil {
		return types.Reading{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() {
		if err := l.source.Close(); err != nil {
			l.logger.Warn("Failed to close terminal", zap.Error(err))
		}
	}()

	asm := tic.NewAssembler(l.clock.Now)
	var deadline time.Time
	if l.opts.ReadTimeout > 0 {
		deadline = l.clock.Now().Add(l.opts.ReadTimeout)
	}

	lines := 0
	for {
		if err := ctx.Err(); err != nil {
			return types.Reading{}, err
		}
		if l.opts.MaxLinesPerCycle > 0 && lines >= l.opts.MaxLinesPerCycle {
			return types.Reading{}, fmt.Errorf("%w after %d lines", ErrReadStall, lines)
		}
		if !deadline.IsZero() && !l.clock.Now().Before(deadline) {
			return types.Reading{}, fmt.Errorf("%w within %s", ErrReadStall, l.opts.ReadTimeout)
		}

		line, err := l.source.ReadLine()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return types.Reading{}, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		lines++
		l.logger.Debug("Current line", zap.String("line", line))

		ev, ok := tic.ParseLine(line)
		if !ok {
			continue
		}
		if reading, done := asm.Feed(ev); done {
			return reading, nil
		}
	}
}

// withRetry runs fn until it succeeds. Under the retry policy failed
// attempts are repeated with exponential backoff up to MaxAttempts, under
// the crash policy the first error is returned.
func (l *Loop) withRetry(ctx context.Context, table string, fn func(ctx context.Context) error) error {
	attempts := l.opts.MaxAttempts
	if attempts < 1 || l.opts.FailurePolicy == config.PolicyCrash {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt, l.opts.RetryBaseDelay, l.opts.RetryMaxDelay)
			l.logger.Warn("Retrying write",
				zap.String("table", table),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", attempts),
				zap.Duration("delay", delay))
			l.metrics.ObserveWriteRetry()
			if err := l.sleep(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn("Write failed", zap.String("table", table), zap.Error(lastErr))
	}

	if l.opts.FailurePolicy == config.PolicyCrash {
		return fmt.Errorf("write %s: %w", table, lastErr)
	}
	return fmt.Errorf("%w: write %s after %d attempts: %w", ErrCycleSkipped, table, attempts, lastErr)
}

// backoffDelay doubles base for every attempt after the first, capped at ceiling.
func backoffDelay(attempt int, base, ceiling time.Duration) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if ceiling > 0 && delay >= ceiling {
			return ceiling
		}
	}
	if ceiling > 0 && delay > ceiling {
		return ceiling
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
