package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Logger
// ---------------------------------------------------------------------------

func TestNewLoggerWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "amoca.log")
	log, closer, err := NewLogger(path, "debug")
	require.NoError(t, err)

	log.WithField("state", "connected").Info("transition")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"connected"`)
	assert.Contains(t, string(data), `"msg":"transition"`)
}

func TestNewLoggerBadLevel(t *testing.T) {
	_, _, err := NewLogger(filepath.Join(t.TempDir(), "x.log"), "loud")
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	assert.Equal(t, io.Discard, Discard().Out)
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.ObserveRPC("getBalance", 20*time.Millisecond, nil)
	m.ObserveRPC("getBalance", 20*time.Millisecond, errors.New("boom"))
	m.Transition("checking", "has-local-passkey")
	m.Invest("sol", "confirmed")
	m.Discovery("local")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `amoca_rpc_requests_total{method="getBalance",status="ok"} 1`)
	assert.Contains(t, body, `amoca_rpc_requests_total{method="getBalance",status="error"} 1`)
	assert.Contains(t, body, `amoca_session_transitions_total{from="checking",to="has-local-passkey"} 1`)
	assert.Contains(t, body, `amoca_invest_attempts_total{asset="sol",outcome="confirmed"} 1`)
	assert.True(t, strings.Contains(body, "amoca_passkey_discoveries_total"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRPC("getSlot", time.Millisecond, nil)
		m.Transition("a", "b")
		m.Invest("sol", "failed")
		m.Discovery("none")
	})
}

func TestServeStopsOnCancel(t *testing.T) {
	m := NewMetrics()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

// ---------------------------------------------------------------------------
// Tracing
// ---------------------------------------------------------------------------

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "", "amoca", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.NotNil(t, Tracer())
}
