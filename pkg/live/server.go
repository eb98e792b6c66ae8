// Package live serves the latest reading over HTTP and pushes every new one
// to websocket subscribers.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/NotCoffee418/linky_meter/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
	sendBuffer      = 8
)

// client owns a queue drained by its own writer goroutine, so a slow
// subscriber never blocks Publish.
type client struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue drops data when the queue is full.
func (c *client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

type Server struct {
	addr     string
	logger   *zap.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	latestMu sync.RWMutex
	latest   *types.Reading

	clientsMu sync.RWMutex
	clients   map[*client]bool
}

// NewServer builds the feed. gatherer backs /metrics and may be nil.
func NewServer(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		addr:   addr,
		logger: logger.Named("live"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Read only feed on a trusted network
			},
		},
		clients: make(map[*client]bool),
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/", s.handleStatus)
	s.mux.HandleFunc("/latest", s.handleLatest)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	if gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Publish stores reading as the latest one and broadcasts it.
func (s *Server) Publish(reading types.Reading) {
	s.latestMu.Lock()
	s.latest = &reading
	s.latestMu.Unlock()

	s.broadcast(reading.ToJsonBytes())
}

// Latest returns a copy of the last published reading, or nil.
func (s *Server) Latest() *types.Reading {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	if s.latest == nil {
		return nil
	}
	reading := *s.latest
	return &reading
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting live feed", zap.String("address", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.closeClients()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Linky Meter",
		"status":  "running",
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	reading := s.Latest()
	if reading == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "No readings available yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(conn)

	// Send current reading immediately if available
	if reading := s.Latest(); reading != nil {
		c.enqueue(reading.ToJsonBytes())
	}
	s.addClient(c)
	s.logger.Debug("WebSocket client connected", zap.String("remote", r.RemoteAddr))
	go s.writePump(c)

	// Drain until the peer goes away, pings are answered by the default handler
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.removeClient(c)
			return
		}
	}
}

func (s *Server) broadcast(data []byte) {
	s.clientsMu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(data) {
			s.logger.Debug("WebSocket client is behind, skipping reading")
		}
	}
}

// writePump is the only goroutine writing data messages to c.
func (s *Server) writePump(c *client) {
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug("Dropping WebSocket client", zap.Error(err))
				s.removeClient(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (s *Server) addClient(c *client) {
	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()
}

func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()
	c.close()
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		c.close()
		delete(s.clients, c)
	}
}

// ClientCount is the number of connected websocket subscribers.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
