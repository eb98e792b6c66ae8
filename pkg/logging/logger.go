// Package logging builds the daemon's zap logger on top of a size-rotated
// log file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/NotCoffee418/linky_meter/pkg/config"
	"github.com/NotCoffee418/linky_meter/pkg/pathing"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timeLayout = "2006-01-02 15:04:05 -0700"

// New returns a logger writing to the rotating file in cfg.File, and to
// stdout as well when cfg.Console is set. Call Sync before exiting.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := lvl.Set(cfg.Level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	encoderCfg.EncodeDuration = zapcore.StringDurationEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{}

	if cfg.File != "" {
		if err := pathing.EnsureDir(filepath.Dir(cfg.File)); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.AddSync(rotating),
			lvl,
		))
	}

	if cfg.Console || len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.Lock(os.Stdout),
			lvl,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger.Named("linky"), nil
}

// Uptime reports how long the daemon ran, for the shutdown line.
func Uptime(start time.Time) zap.Field {
	return zap.Duration("uptime", time.Since(start))
}
