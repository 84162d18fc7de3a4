// Package metrics exposes Prometheus collectors for tool calls and upstream traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "openapi_mcp"

// Collector holds the process metrics on its own registry, so tests can build
// as many as they like.
type Collector struct {
	registry *prometheus.Registry

	toolCalls        *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	catalogOps       *prometheus.GaugeVec
}

// NewCollector creates a collector with a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool calls by outcome",
			},
			[]string{"tool", "outcome"},
		),
		upstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Upstream API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),
		catalogOps: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_operations",
				Help:      "Operations in the API description by build state",
			},
			[]string{"state"},
		),
	}
}

// RecordToolCall counts one tool call. outcome is "ok" or a failure kind.
func (c *Collector) RecordToolCall(tool, outcome string) {
	c.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// ObserveUpstream records one upstream request. status 0 means no response.
func (c *Collector) ObserveUpstream(method string, status int, duration time.Duration) {
	c.upstreamDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(duration.Seconds())
}

// SetCatalog records how many operations were built, skipped and filtered out.
func (c *Collector) SetCatalog(built, skipped, filtered int) {
	c.catalogOps.WithLabelValues("built").Set(float64(built))
	c.catalogOps.WithLabelValues("skipped").Set(float64(skipped))
	c.catalogOps.WithLabelValues("filtered").Set(float64(filtered))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
