package cache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	fderrors "github.com/Tekstrive/fashionDeck/errors"
	"github.com/Tekstrive/fashionDeck/metric"
)

// Instrumented wraps a Store and records hit, miss and error counts
// plus operation latency.
type Instrumented struct {
	next Store

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewInstrumented wraps next with prometheus instrumentation
// registered under reg. When reg is nil the store is returned
// unwrapped.
func NewInstrumented(next Store, reg *metric.Registry) (Store, error) {
	if reg == nil {
		return next, nil
	}

	inst := &Instrumented{
		next: next,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fashiondeck",
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Cache operations by result (hit, miss, error, ok).",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fashiondeck",
			Subsystem: "cache",
			Name:      "operation_duration_seconds",
			Help:      "Cache operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	if err := reg.Register("cache", "operations_total", inst.operations); err != nil {
		return nil, err
	}
	if err := reg.Register("cache", "operation_duration_seconds", inst.duration); err != nil {
		return nil, err
	}
	return inst, nil
}

func (i *Instrumented) observe(op string, start time.Time, result string) {
	i.operations.WithLabelValues(op, result).Inc()
	i.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (i *Instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := i.next.Get(ctx, key)
	switch {
	case err == nil:
		i.observe("get", start, "hit")
	case fderrors.Is(err, fderrors.ErrKeyNotFound):
		i.observe("get", start, "miss")
	default:
		i.observe("get", start, "error")
	}
	return value, err
}

func (i *Instrumented) SetTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := i.next.SetTTL(ctx, key, value, ttl)
	i.observe("set", start, resultLabel(err))
	return err
}

func (i *Instrumented) SetPermanent(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := i.next.SetPermanent(ctx, key, value)
	i.observe("set", start, resultLabel(err))
	return err
}

func (i *Instrumented) Keys(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := i.next.Keys(ctx, prefix)
	i.observe("keys", start, resultLabel(err))
	return keys, err
}

func (i *Instrumented) Close() error { return i.next.Close() }

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
