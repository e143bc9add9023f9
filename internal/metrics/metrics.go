// Package metrics exposes factory counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tokenfactory"

// Result labels.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Metrics holds the collectors of one factory instance on a private
// registry, so several instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	Deposits          *prometheus.CounterVec
	Creations         *prometheus.CounterVec
	Provisioned       *prometheus.CounterVec
	Tokens            prometheus.Gauge
	StorageUsage      prometheus.Gauge
	PendingProvisions prometheus.Gauge
	RPCRequests       *prometheus.CounterVec
}

// New creates and registers the factory collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "deposits_total",
			Help:      "Storage deposits by result",
		}, []string{"result"}),
		Creations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "creations_total",
			Help:      "Token creation attempts by result (ok or the failure kind)",
		}, []string{"result"}),
		Provisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provision",
			Name:      "requests_total",
			Help:      "Dispatched provisioning requests by result",
		}, []string{"result"}),
		Tokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "tokens",
			Help:      "Number of registered tokens",
		}),
		StorageUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_usage_bytes",
			Help:      "Metered storage used by the factory state",
		}),
		PendingProvisions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provision",
			Name:      "pending",
			Help:      "Provisioning requests waiting in the outbox",
		}),
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "JSON-RPC requests by method and result",
		}, []string{"method", "result"}),
	}
	m.registry.MustRegister(
		m.Deposits,
		m.Creations,
		m.Provisioned,
		m.Tokens,
		m.StorageUsage,
		m.PendingProvisions,
		m.RPCRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns the HTTP handler serving this instance's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
