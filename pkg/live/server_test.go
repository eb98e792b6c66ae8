package live

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/NotCoffee418/linky_meter/pkg/metrics"
	"github.com/NotCoffee418/linky_meter/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = types.Reading{
	Counter:   7640930,
	Power:     390,
	Timestamp: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC),
}

func dialFeed(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readReading(t *testing.T, conn *websocket.Conn) types.Reading {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, messageType)
	reading := types.ReadingFromJsonBytes(data)
	require.NotNil(t, reading)
	return *reading
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(NewServer("", nil, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "running", body["status"])
}

func TestLatest(t *testing.T) {
	s := NewServer("", nil, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/latest")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	s.Publish(sample)

	resp, err = http.Get(srv.URL + "/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got types.Reading
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, sample.Counter, got.Counter)
	assert.Equal(t, sample.Power, got.Power)
	assert.True(t, sample.Timestamp.Equal(got.Timestamp))
}

func TestWebSocketBroadcast(t *testing.T) {
	s := NewServer("", nil, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	s.Publish(sample)
	conn := dialFeed(t, srv)

	// The latest reading is replayed on connect
	assert.Equal(t, sample.Counter, readReading(t, conn).Counter)

	next := sample
	next.Counter += 10
	next.Timestamp = next.Timestamp.Add(time.Minute)
	s.Publish(next)
	assert.Equal(t, next.Counter, readReading(t, conn).Counter)
}

func TestWebSocketClientRemovedOnDisconnect(t *testing.T) {
	s := NewServer("", nil, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialFeed(t, srv)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return s.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	assert.NotPanics(t, func() { s.Publish(sample) })
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveReading(sample)

	srv := httptest.NewServer(NewServer("", reg, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "linky_index_kwh 7640.93")
	assert.Contains(t, string(body), "linky_power_apparent_va 390")
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	s := NewServer(addr, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestPublishDoesNotWaitForSlowClients(t *testing.T) {
	s := NewServer("", nil, nil)

	// A subscriber whose queue is full and never drained
	stalled := newClient(nil)
	for stalled.enqueue([]byte("{}")) {
	}
	s.addClient(stalled)

	done := make(chan struct{})
	go func() {
		s.Publish(sample)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full client queue")
	}

	assert.Equal(t, sample.Counter, s.Latest().Counter)
	assert.Len(t, stalled.send, sendBuffer)
	assert.Equal(t, 1, s.ClientCount())
}
