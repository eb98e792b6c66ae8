// Linky collector reads the TIC output of a Linky meter and stores the
// BASE index and PAPP power in the stream and dailies tables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/NotCoffee418/linky_meter/pkg/acquisition"
	"github.com/NotCoffee418/linky_meter/pkg/aggregator"
	"github.com/NotCoffee418/linky_meter/pkg/clock"
	"github.com/NotCoffee418/linky_meter/pkg/config"
	"github.com/NotCoffee418/linky_meter/pkg/live"
	"github.com/NotCoffee418/linky_meter/pkg/logging"
	"github.com/NotCoffee418/linky_meter/pkg/meterdb"
	"github.com/NotCoffee418/linky_meter/pkg/metrics"
	"github.com/NotCoffee418/linky_meter/pkg/pathing"
	"github.com/NotCoffee418/linky_meter/pkg/port_reader"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	exitRuntime    = 1
	exitLogger     = 2
	exitConfig     = 3
	exitConnection = 4
	exitSchema     = 5
)

func main() {
	os.Exit(run(os.Stderr))
}

// run wires the daemon and returns the process exit code. Fatal errors are
// reported on stderr as well as in the log.
func run(stderr io.Writer) int {
	start := time.Now()

	// Load config
	configPath := pathing.GetConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config %s: %v\n", configPath, err)
		return exitConfig
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create logger: %v\n", err)
		return exitLogger
	}
	defer logger.Sync()

	clk := clock.NewSystem(cfg.UseUTC)
	logger.Info("Starting Linky collector",
		zap.String("config", configPath),
		zap.String("device", cfg.Device.File),
		zap.String("driver", cfg.Database.Driver),
		zap.Stringer("timezone", clk.Location()))

	db, err := meterdb.Open(cfg.Database, clk.Location(), logger)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to connect to database: %v\n", err)
		logger.Error("Failed to connect to database", zap.Error(err))
		return exitConnection
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(stderr, "Failed to provision schema: %v\n", err)
		logger.Error("Failed to provision schema", zap.Error(err))
		return exitSchema
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	reader := port_reader.NewTICReader(cfg.Device.File, cfg.Device.Baudrate, cfg.Device.ReadTimeout())
	loop := acquisition.NewLoop(
		acquisition.OptionsFromConfig(cfg),
		reader,
		aggregator.New(db),
		clk,
		logger.Named("acquisition"),
	)
	loop.SetMetrics(m)

	if cfg.Live.Enabled {
		addr := net.JoinHostPort(cfg.Live.ListenAddress, strconv.Itoa(cfg.Live.ListenPort))
		feed := live.NewServer(addr, reg, logger)
		loop.SetPublisher(feed)
		go func() {
			// Acquisition keeps running without the feed
			if err := feed.ListenAndServe(ctx); err != nil {
				logger.Error("Live feed stopped", zap.Error(err))
			}
		}()
	}

	if runErr := loop.Run(ctx); runErr != nil {
		fmt.Fprintf(stderr, "Acquisition failed: %v\n", runErr)
		logger.Error("Acquisition failed, exiting", zap.Error(runErr))
		if errors.Is(runErr, acquisition.ErrTransport) {
			logger.Error("Check the serial device", zap.String("device", reader.Port()))
		}
		return exitRuntime
	}

	logger.Info("Linky collector stopped", logging.Uptime(start))
	return 0
}
