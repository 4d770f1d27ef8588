package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fashiondeck"

// Core contains platform-level metrics shared by every upstream adapter.
// Domain components register their own metrics separately.
type Core struct {
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	FallbacksTotal   *prometheus.CounterVec
}

// NewCore creates and registers the core metrics set.
func NewCore(reg *Registry) (*Core, error) {
	c := &Core{
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Total upstream calls by upstream, operation, and status",
			},
			[]string{"upstream", "operation", "status"},
		),
		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "request_duration_seconds",
				Help:      "Upstream call latency",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"upstream", "operation"},
		),
		FallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "core",
				Name:      "fallbacks_total",
				Help:      "Times a component degraded to its rule-based fallback",
			},
			[]string{"component"},
		),
	}

	if err := reg.Register("core", "upstream_requests", c.UpstreamRequests); err != nil {
		return nil, err
	}
	if err := reg.Register("core", "upstream_duration", c.UpstreamDuration); err != nil {
		return nil, err
	}
	if err := reg.Register("core", "fallbacks", c.FallbacksTotal); err != nil {
		return nil, err
	}

	return c, nil
}

// ObserveUpstream records one upstream call outcome.
func (c *Core) ObserveUpstream(upstream, operation string, start time.Time, err error) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.UpstreamRequests.WithLabelValues(upstream, operation, status).Inc()
	c.UpstreamDuration.WithLabelValues(upstream, operation).Observe(time.Since(start).Seconds())
}

// Fallback records one fallback activation for a component.
func (c *Core) Fallback(component string) {
	if c == nil {
		return
	}
	c.FallbacksTotal.WithLabelValues(component).Inc()
}
