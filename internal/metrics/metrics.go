// Package metrics exposes the server root's prometheus instrumentation.
//
// The teacher carries no metrics of its own; this is pulled in from the
// rest of the retrieval pack (marmos91-dittofs's go.mod requires
// prometheus/client_golang) as an ambient observability concern every
// long-running network daemon in that pack's ecosystem carries.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the counters/gauges the server root updates as
// connections, tenants, and messages move through it.
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	TenantsActive     prometheus.Gauge
	MessagesRouted    *prometheus.CounterVec
	BackendRequests   *prometheus.CounterVec

	registry *prometheus.Registry
	server   *http.Server
}

// New registers a fresh set of collectors on a private registry (not the
// global default one, so multiple Servers in the same process/tests don't
// collide on collector registration).
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ConnectionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "monkirc_connections_active",
			Help: "Number of currently open client connections.",
		}),
		ConnectionsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "monkirc_connections_total",
			Help: "Total client connections accepted since start.",
		}),
		TenantsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "monkirc_tenants_active",
			Help: "Number of tenants with at least one connected user.",
		}),
		MessagesRouted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "monkirc_messages_routed_total",
			Help: "Messages routed by verb (privmsg, notice).",
		}, []string{"verb"}),
		BackendRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "monkirc_backend_requests_total",
			Help: "Backend HTTP calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
	}

	return m
}

// Serve starts a metrics HTTP server on addr; a blank addr disables it.
// Returns nil immediately if disabled.
func (m *Metrics) Serve(addr string) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	m.server = &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// The error is dropped, not logged or returned: metrics are
			// best-effort and must never take the IRC listener down.
			_ = err
		}
	}()

	return nil
}

// Shutdown stops the metrics HTTP server, if running.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
