package bufferpool

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const meterName = "github.com/Blackdeer1524/HeapDB/src/bufferpool"

const (
	metricHits      = "bufferpool.hits"
	metricMisses    = "bufferpool.misses"
	metricEvictions = "bufferpool.evictions"
	metricAborts    = "bufferpool.aborts"
	metricFlushes   = "bufferpool.flushes"
)

type poolMetrics struct {
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	evictions metric.Int64Counter
	aborts    metric.Int64Counter
	flushes   metric.Int64Counter
}

// newPoolMetrics registers the pool counters with provider, or with the
// global provider when it is nil.
func newPoolMetrics(provider metric.MeterProvider) poolMetrics {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			otel.Handle(err)
			return noop.Int64Counter{}
		}
		return c
	}

	return poolMetrics{
		hits:      counter(metricHits, "GetPage calls served from the pool"),
		misses:    counter(metricMisses, "GetPage calls that read the page from disk"),
		evictions: counter(metricEvictions, "clean pages dropped to make room"),
		aborts:    counter(metricAborts, "lock waits that ran out of time"),
		flushes:   counter(metricFlushes, "dirty pages written to disk"),
	}
}

// Stats are the pool counters accumulated since the provider was created.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Aborts    int64
	Flushes   int64
}

// ReadStats collects the pool counters from reader. The reader must be
// registered with the provider passed in Config.MeterProvider.
func ReadStats(ctx context.Context, reader sdkmetric.Reader) (Stats, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return Stats{}, errors.Wrap(err, "collect pool metrics")
	}

	var s Stats
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != meterName {
			continue
		}

		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}

			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}

			switch m.Name {
			case metricHits:
				s.Hits = total
			case metricMisses:
				s.Misses = total
			case metricEvictions:
				s.Evictions = total
			case metricAborts:
				s.Aborts = total
			case metricFlushes:
				s.Flushes = total
			}
		}
	}
	return s, nil
}
