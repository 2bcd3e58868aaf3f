package bufferpool

import (
	"time"

	"go.opentelemetry.io/otel/metric"
)

// DefaultPoolPages is the pool capacity when none is configured.
const DefaultPoolPages = 50

type Config struct {
	Capacity int
	// every GetPage call draws its lock-wait budget uniformly from
	// [LockTimeoutMin, LockTimeoutMax)
	LockTimeoutMin time.Duration
	LockTimeoutMax time.Duration
	// nil means the global provider
	MeterProvider metric.MeterProvider
}

func DefaultConfig() Config {
	return Config{
		Capacity:       DefaultPoolPages,
		LockTimeoutMin: time.Second,
		LockTimeoutMax: 3 * time.Second,
	}
}
