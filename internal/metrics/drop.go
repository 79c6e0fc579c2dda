package metrics

import "churnflow/logger"

// DropMetric identifies the metric name emitted when channel messages are dropped.
type DropMetric string

const (
	// DropMetricSampleRaw records dropped feature samples before scoring.
	DropMetricSampleRaw DropMetric = "sample_messages_dropped"
	// DropMetricAssessment records dropped assessment batches after scoring.
	DropMetricAssessment DropMetric = "assessment_batches_dropped"
	// DropMetricSnapshot records dropped risk summary snapshots.
	DropMetricSnapshot DropMetric = "snapshot_messages_dropped"
	// DropMetricProposal records dropped pricing proposal sets.
	DropMetricProposal DropMetric = "proposal_sets_dropped"
)

// EmitDropMetric logs and emits a metric representing a dropped channel message. The
// metric value is always incremented by one so callers should invoke this helper for
// each dropped message. Optional metadata (source, segment, stage) is added to the
// metric fields when provided which enables downstream aggregation per source and
// pipeline stage.
func EmitDropMetric(log *logger.Log, metric DropMetric, source, segment, stage string) {
	fields := logger.Fields{}
	if source != "" {
		fields["source"] = source
	}
	if segment != "" {
		fields["segment"] = segment
	}
	if stage != "" {
		fields["stage"] = stage
	}

	EmitMetric(log, "channel_drops", string(metric), 1, "counter", fields)
}
