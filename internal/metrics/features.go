package metrics

import (
	"strings"
	"sync/atomic"

	"churnflow/config"
)

// Feature names toggleable metric families.
type Feature string

const (
	// FeatureChannelSize gates the periodic channel buffer occupancy gauges.
	FeatureChannelSize Feature = "channel_size"
	// FeaturePrometheus gates the Prometheus registry and /metrics endpoint.
	FeaturePrometheus Feature = "prometheus"
)

type featureFlags struct {
	channelSize bool
	prometheus  bool
}

var features atomic.Pointer[featureFlags]

func init() {
	features.Store(&featureFlags{channelSize: true, prometheus: true})
}

// Configure applies the metrics section of the application configuration.
func Configure(cfg config.MetricsConfig) {
	features.Store(&featureFlags{
		channelSize: cfg.ChannelSize,
		prometheus:  cfg.Prometheus,
	})
}

// IsFeatureEnabled reports whether the given metric family is enabled.
func IsFeatureEnabled(feature Feature) bool {
	f := features.Load()
	if f == nil {
		return true
	}
	switch feature {
	case FeatureChannelSize:
		return f.channelSize
	case FeaturePrometheus:
		return f.prometheus
	default:
		return true
	}
}

// metricAllowed filters individual metric events against the feature flags.
// Buffer occupancy gauges are the only name-gated family.
func metricAllowed(name string) bool {
	if strings.HasSuffix(name, "_buffer_length") {
		return IsFeatureEnabled(FeatureChannelSize)
	}
	return true
}
