package metrics

import (
	"context"
	"time"

	"churnflow/internal/channel"
	"churnflow/logger"
)

// StartChannelSizeMetrics emits occupancy gauges for the four pipeline
// buffers. Metrics are logged every `interval` until the context is
// cancelled. When interval <=0, a one-second cadence is used.
func StartChannelSizeMetrics(ctx context.Context, channels *channel.Channels, interval time.Duration) {
	if !IsFeatureEnabled(FeatureChannelSize) {
		return
	}
	if channels == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}

	log := logger.GetLogger()
	ticker := time.NewTicker(interval)
	component := "channel_buffers"

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				EmitMetric(log, component, "sample_buffer_length", len(channels.Samples), "gauge", logger.Fields{
					"buffer":   "samples",
					"capacity": cap(channels.Samples),
				})
				EmitMetric(log, component, "assessment_buffer_length", len(channels.Assessments), "gauge", logger.Fields{
					"buffer":   "assessments",
					"capacity": cap(channels.Assessments),
				})
				EmitMetric(log, component, "snapshot_buffer_length", len(channels.Snapshots), "gauge", logger.Fields{
					"buffer":   "snapshots",
					"capacity": cap(channels.Snapshots),
				})
				EmitMetric(log, component, "proposal_buffer_length", len(channels.Proposals), "gauge", logger.Fields{
					"buffer":   "proposals",
					"capacity": cap(channels.Proposals),
				})
			}
		}
	}()
}
