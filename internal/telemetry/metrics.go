package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "amoca"

// Metrics holds amoca's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	rpcRequests *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	investments *prometheus.CounterVec
	discoveries *prometheus.CounterVec
}

// NewMetrics creates a registry with all collectors registered.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		rpcRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Ledger RPC calls by method and outcome.",
			},
			[]string{"method", "status"},
		),
		rpcDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Ledger RPC call latency.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
			},
			[]string{"method"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "transitions_total",
				Help:      "Wallet connection state transitions.",
			},
			[]string{"from", "to"},
		),
		investments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "invest",
				Name:      "attempts_total",
				Help:      "Invest attempts by asset and outcome.",
			},
			[]string{"asset", "outcome"},
		),
		discoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "passkey",
				Name:      "discoveries_total",
				Help:      "Passkey discovery results.",
			},
			[]string{"outcome"},
		),
	}
	m.Registry.MustRegister(
		m.rpcRequests,
		m.rpcDuration,
		m.transitions,
		m.investments,
		m.discoveries,
		prometheus.NewGoCollector(),
	)
	return m
}

// ObserveRPC records one RPC call.
func (m *Metrics) ObserveRPC(method string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.rpcRequests.WithLabelValues(method, status).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(d.Seconds())
}

// Transition records a connection state change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// Invest records an invest attempt outcome.
func (m *Metrics) Invest(asset, outcome string) {
	if m == nil {
		return
	}
	m.investments.WithLabelValues(asset, outcome).Inc()
}

// Discovery records a passkey discovery outcome.
func (m *Metrics) Discovery(outcome string) {
	if m == nil {
		return
	}
	m.discoveries.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
