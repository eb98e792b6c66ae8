// Package interpreter subscribes to the live feed of a running collector.
package interpreter

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/NotCoffee418/linky_meter/pkg/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type ListenerOptions struct {
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	// Readings arrive once per acquisition interval, pongs keep the
	// connection alive in between.
	ReadTimeout  time.Duration
	PingInterval time.Duration
}

func DefaultListenerOptions() ListenerOptions {
	return ListenerOptions{
		MaxRetries:     10,
		BaseRetryDelay: 2 * time.Second,
		MaxRetryDelay:  60 * time.Second,
		ReadTimeout:    75 * time.Second,
		PingInterval:   30 * time.Second,
	}
}

// StartListener connects to ws://host/ws and calls funcToCall for each
// reading, reconnecting with exponential backoff. It returns nil when ctx
// is cancelled and an error once MaxRetries consecutive attempts failed.
func StartListener(ctx context.Context, host string, opts ListenerOptions, logger *zap.Logger, funcToCall func(reading *types.Reading)) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	// WebSocket server URL
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}

	retryCount := 0
	for {
		if ctx.Err() != nil {
			logger.Info("Shutting down listener")
			return nil
		}

		if retryCount > 0 {
			retryDelay := time.Duration(1<<(retryCount-1)) * opts.BaseRetryDelay
			if retryDelay > opts.MaxRetryDelay {
				retryDelay = opts.MaxRetryDelay
			}
			logger.Info("Retrying connection",
				zap.Duration("delay", retryDelay),
				zap.Int("attempt", retryCount+1),
				zap.Int("max_retries", opts.MaxRetries))
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				logger.Info("Shutting down listener during retry wait")
				return nil
			}
		}

		logger.Info("Connecting", zap.String("url", u.String()))

		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("Connection failed", zap.Error(err))
			retryCount++
			if retryCount >= opts.MaxRetries {
				return fmt.Errorf("connect to %s: giving up after %d attempts: %w", u.String(), retryCount, err)
			}
			continue
		}

		logger.Info("Connected, accepting meter readings")

		// Reset retry count on successful connection
		retryCount = 0

		connectionBroken := handleConnection(ctx, c, opts, logger, funcToCall)
		c.Close()

		if !connectionBroken {
			return nil
		}
		logger.Warn("Connection lost, will retry")
		retryCount = 1
	}
}

func handleConnection(
	ctx context.Context,
	c *websocket.Conn,
	opts ListenerOptions,
	logger *zap.Logger,
	funcToCall func(reading *types.Reading),
) bool {
	done := make(chan struct{})

	// Set read deadline to detect dead connections
	c.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	})

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warn("WebSocket error", zap.Error(err))
				} else {
					logger.Info("Connection closed", zap.Error(err))
				}
				return
			}

			c.SetReadDeadline(time.Now().Add(opts.ReadTimeout))

			if messageType != websocket.TextMessage {
				logger.Debug("Ignoring message", zap.Int("type", messageType))
				continue
			}
			if reading := types.ReadingFromJsonBytes(message); reading != nil {
				funcToCall(reading)
			} else {
				logger.Warn("Failed to parse meter reading", zap.ByteString("message", message))
			}
		}
	}()

	// Periodic pings keep the connection alive between readings
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				logger.Warn("Failed to send ping", zap.Error(err))
			}
		case <-done:
			return true
		case <-ctx.Done():
			logger.Info("Closing connection")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				logger.Warn("Error sending close message", zap.Error(err))
			}

			// Wait for close confirmation or timeout
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}
