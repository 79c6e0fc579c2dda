package channel

import (
	"context"
	"testing"

	"churnflow/models"
)

func TestSendSampleDropsWhenFull(t *testing.T) {
	c := NewChannels(1, 1, 1, 1)
	ctx := context.Background()

	if !c.SendSample(ctx, models.RawSampleMessage{Source: "crm"}) {
		t.Fatal("first send should succeed")
	}
	if c.SendSample(ctx, models.RawSampleMessage{Source: "crm"}) {
		t.Fatal("second send should drop on a full buffer")
	}

	stats := c.GetStats()
	if stats.SamplesSent != 1 || stats.SamplesDropped != 1 {
		t.Fatalf("stats = %+v, want 1 sent / 1 dropped", stats)
	}
}

func TestSendCancelledContext(t *testing.T) {
	c := NewChannels(1, 1, 1, 1)
	c.Snapshots <- models.RiskSummarySnapshot{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Buffer full and context cancelled: either path returns false without
	// blocking, and a cancelled send is not counted as a drop caused by us.
	if c.SendSnapshot(ctx, models.RiskSummarySnapshot{}) {
		t.Fatal("send on cancelled context should fail")
	}
}

func TestStatsPerStage(t *testing.T) {
	c := NewChannels(2, 2, 2, 2)
	ctx := context.Background()

	c.SendAssessments(ctx, models.AssessmentBatch{BatchID: "b1"})
	c.SendSnapshot(ctx, models.RiskSummarySnapshot{ScanID: "s1"})
	c.SendProposals(ctx, models.PricingProposalSet{ProposalID: "p1"})

	stats := c.GetStats()
	if stats.AssessmentsSent != 1 || stats.SnapshotsSent != 1 || stats.ProposalsSent != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	batch := <-c.Assessments
	if batch.BatchID != "b1" {
		t.Fatalf("batch id = %q", batch.BatchID)
	}
}
