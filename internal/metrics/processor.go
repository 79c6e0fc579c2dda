package metrics

import "churnflow/logger"

// ScorerStats holds throughput metrics for the scoring worker pool.
type ScorerStats struct {
	MessagesProcessed int64
	BatchesProcessed  int64
	CustomersScored   int64
	WarningsCount     int64
	ErrorsCount       int64
	ActiveBatches     int
	SampleChannelLen  int
	SampleChannelCap  int
	BatchChannelLen   int
	BatchChannelCap   int
}

// ReportScorerStats emits metrics for the scorer component.
func ReportScorerStats(log *logger.Log, stats ScorerStats) {
	l := log.WithComponent("scorer")

	errorRate := float64(0)
	if stats.MessagesProcessed+stats.ErrorsCount > 0 {
		errorRate = float64(stats.ErrorsCount) / float64(stats.MessagesProcessed+stats.ErrorsCount)
	}

	avgScoredPerMessage := float64(0)
	if stats.MessagesProcessed > 0 {
		avgScoredPerMessage = float64(stats.CustomersScored) / float64(stats.MessagesProcessed)
	}

	l.LogMetric("scorer", "messages_processed", stats.MessagesProcessed, "counter", logger.Fields{})
	l.LogMetric("scorer", "batches_processed", stats.BatchesProcessed, "counter", logger.Fields{})
	l.LogMetric("scorer", "customers_scored", stats.CustomersScored, "counter", logger.Fields{})
	l.LogMetric("scorer", "warnings_count", stats.WarningsCount, "counter", logger.Fields{})
	l.LogMetric("scorer", "errors_count", stats.ErrorsCount, "counter", logger.Fields{})
	l.LogMetric("scorer", "error_rate", errorRate, "gauge", logger.Fields{})
	l.LogMetric("scorer", "active_batches", stats.ActiveBatches, "gauge", logger.Fields{})
	l.LogMetric("scorer", "avg_scored_per_message", avgScoredPerMessage, "gauge", logger.Fields{})

	l.WithFields(logger.Fields{
		"messages_processed":     stats.MessagesProcessed,
		"batches_processed":      stats.BatchesProcessed,
		"customers_scored":       stats.CustomersScored,
		"warnings_count":         stats.WarningsCount,
		"errors_count":           stats.ErrorsCount,
		"error_rate":             errorRate,
		"active_batches":         stats.ActiveBatches,
		"avg_scored_per_message": avgScoredPerMessage,
		"sample_channel_len":     stats.SampleChannelLen,
		"sample_channel_cap":     stats.SampleChannelCap,
		"batch_channel_len":      stats.BatchChannelLen,
		"batch_channel_cap":      stats.BatchChannelCap,
	}).Info("scorer metrics")
}

// AggregatorStats holds tallies for the scan-window cohort aggregator.
type AggregatorStats struct {
	BatchesMerged     int64
	SnapshotsEmitted  int64
	CustomersIncluded int64
	WindowHighRisk    int
	WindowMediumRisk  int
	WindowLowRisk     int
}

// ReportAggregatorStats emits metrics for the cohort aggregator.
func ReportAggregatorStats(log *logger.Log, stats AggregatorStats) {
	l := log.WithComponent("aggregator")

	l.LogMetric("aggregator", "batches_merged", stats.BatchesMerged, "counter", logger.Fields{})
	l.LogMetric("aggregator", "snapshots_emitted", stats.SnapshotsEmitted, "counter", logger.Fields{})
	l.LogMetric("aggregator", "customers_included", stats.CustomersIncluded, "counter", logger.Fields{})

	l.WithFields(logger.Fields{
		"batches_merged":     stats.BatchesMerged,
		"snapshots_emitted":  stats.SnapshotsEmitted,
		"customers_included": stats.CustomersIncluded,
		"window_high_risk":   stats.WindowHighRisk,
		"window_medium_risk": stats.WindowMediumRisk,
		"window_low_risk":    stats.WindowLowRisk,
	}).Info("aggregator metrics")
}
