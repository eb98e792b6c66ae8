// Linky tail prints the readings broadcast by a running collector.
// Depends on the collector running with the live feed enabled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/linky_meter/pkg/interpreter"
	"github.com/NotCoffee418/linky_meter/pkg/types"
	"go.uber.org/zap"
)

func main() {
	// Set the host:port from env var LINKY_LIVE_HOST
	host := os.Getenv("LINKY_LIVE_HOST")
	if host == "" {
		host = "127.0.0.1:9040"
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Subscribe to websocket with revive
	err = interpreter.StartListener(ctx, host, interpreter.DefaultListenerOptions(), logger, handleMeterReading)
	if err != nil {
		logger.Error("Listener stopped", zap.Error(err))
		stop()
		logger.Sync()
		os.Exit(1)
	}
}

func handleMeterReading(reading *types.Reading) {
	fmt.Println(string(reading.ToJsonBytes()))
}
