package metrics

import (
	"testing"

	"churnflow/logger"
)

func TestReportScorerStats(t *testing.T) {
	log := logger.GetLogger()
	stats := ScorerStats{
		MessagesProcessed: 10,
		BatchesProcessed:  2,
		CustomersScored:   25,
		WarningsCount:     3,
		ErrorsCount:       0,
		ActiveBatches:     1,
		SampleChannelLen:  1,
		SampleChannelCap:  2,
		BatchChannelLen:   1,
		BatchChannelCap:   2,
	}
	ReportScorerStats(log, stats)
}

func TestReportAggregatorStats(t *testing.T) {
	log := logger.GetLogger()
	stats := AggregatorStats{
		BatchesMerged:     4,
		SnapshotsEmitted:  1,
		CustomersIncluded: 40,
		WindowHighRisk:    5,
		WindowMediumRisk:  10,
		WindowLowRisk:     25,
	}
	ReportAggregatorStats(log, stats)
}

func TestReportWriter(t *testing.T) {
	log := logger.GetLogger()
	ReportWriter(log, "report_writer", WriterStats{
		BatchesWritten: 3,
		FilesWritten:   3,
		BytesWritten:   1024,
	})
}
