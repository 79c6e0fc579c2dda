package writer

import (
	"context"
	"testing"
	"time"

	appconfig "churnflow/config"
	"churnflow/logger"
	"churnflow/models"
)

func proposalSet(id string) models.PricingProposalSet {
	return models.PricingProposalSet{
		ProposalID: id,
		ScanID:     "scan-1",
		Snapshot:   models.RiskSummarySnapshot{HighRisk: 30, MediumRisk: 20, LowRisk: 50, Total: 100},
		Proposals: []models.PlanPriceProposal{
			{PlanID: "basic", BasePrice: 499, ProposedPrice: 535, PercentChange: 7, Rationale: "High churn risk (30 at-risk customers)"},
			{PlanID: "standard", BasePrice: 799, ProposedPrice: 839, PercentChange: 5, Rationale: "Demand-based increase"},
		},
		GeneratedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestAddSetBuffers(t *testing.T) {
	w := &ReportWriter{
		config: &appconfig.Config{},
		log:    logger.GetLogger(),
	}
	w.addSet(proposalSet("p1"))
	w.addSet(proposalSet("p2"))

	w.mu.RLock()
	size := len(w.buffer)
	w.mu.RUnlock()
	if size != 2 {
		t.Fatalf("buffer size = %d, want 2", size)
	}
}

func TestCreateParquetFile(t *testing.T) {
	cfg := &appconfig.Config{}
	cfg.Writer.Formats.Parquet.Compression = "snappy"
	w := &ReportWriter{config: cfg, log: logger.GetLogger()}

	set := proposalSet("p1")
	records := make([]ProposalRecord, 0, len(set.Proposals))
	for _, p := range set.Proposals {
		records = append(records, ProposalRecord{
			ProposalID:    set.ProposalID,
			ScanID:        set.ScanID,
			PlanID:        p.PlanID,
			BasePrice:     p.BasePrice,
			ProposedPrice: p.ProposedPrice,
			PercentChange: p.PercentChange,
			Rationale:     p.Rationale,
			HighRisk:      int32(set.Snapshot.HighRisk),
			Total:         int32(set.Snapshot.Total),
			GeneratedAt:   set.GeneratedAt.UnixMilli(),
		})
	}

	data, size, err := w.createParquetFile(records)
	if err != nil {
		t.Fatalf("create parquet: %v", err)
	}
	if size == 0 || len(data) != int(size) {
		t.Fatalf("file size = %d, data = %d", size, len(data))
	}
}

func TestGenerateS3Key(t *testing.T) {
	cfg := &appconfig.Config{}
	cfg.Churnflow.Name = "churnflow"
	cfg.Writer.Partitioning.TimeFormat = "year={year}/month={month}/day={day}/hour={hour}"
	cfg.Writer.Partitioning.AdditionalKeys = []string{"service"}
	w := &ReportWriter{config: cfg, log: logger.GetLogger()}

	ts := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	key := w.generateS3Key(ts)

	want := "service=churnflow/year=2026/month=03/day=14/hour=10/pricing_proposals_20260314103000.parquet"
	if key != want {
		t.Fatalf("s3 key = %q, want %q", key, want)
	}
}

func TestFanOutCopiesToAllSinks(t *testing.T) {
	in := make(chan models.PricingProposalSet, 1)
	a := make(chan models.PricingProposalSet, 1)
	b := make(chan models.PricingProposalSet, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	FanOut(ctx, in, a, b)

	in <- proposalSet("p1")

	for _, sink := range []chan models.PricingProposalSet{a, b} {
		select {
		case set := <-sink:
			if set.ProposalID != "p1" {
				t.Fatalf("proposal id = %q", set.ProposalID)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fanned-out proposal set")
		}
	}
}

func TestFanOutClosesSinksWhenInputCloses(t *testing.T) {
	in := make(chan models.PricingProposalSet)
	sink := make(chan models.PricingProposalSet, 1)

	FanOut(context.Background(), in, sink)
	close(in)

	select {
	case _, ok := <-sink:
		if ok {
			t.Fatal("expected closed sink")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sink close")
	}
}

func TestNewKafkaWriterRequiresBrokers(t *testing.T) {
	cfg := &appconfig.Config{}
	if _, err := NewKafkaWriter(cfg, make(chan models.PricingProposalSet)); err == nil {
		t.Fatal("expected error for missing brokers")
	}
}
