package synthetic

import (
	"context"
	"encoding/json"
	"math/rand"
	"reflect"
	"testing"

	appconfig "churnflow/config"
	"churnflow/internal/channel"
	"churnflow/models"
)

func testConfig(customers int, seed int64) *appconfig.Config {
	return &appconfig.Config{
		Source: appconfig.SourceConfig{
			Synthetic: appconfig.SyntheticSourceConfig{
				Enabled:    true,
				Customers:  customers,
				Seed:       seed,
				ChurnRate:  0.25,
				IntervalMs: 60000,
			},
		},
	}
}

func seededGenerator(cfg *appconfig.Config, ch *channel.Channels) *Generator {
	g := NewGenerator(cfg, ch)
	g.rng = rand.New(rand.NewSource(cfg.Source.Synthetic.Seed))
	return g
}

func TestGenerateCohortDeterministic(t *testing.T) {
	cfg := testConfig(50, 42)
	ch := channel.NewChannels(1, 1, 1, 1)

	a := seededGenerator(cfg, ch).generateCohort(50, 0.25)
	b := seededGenerator(cfg, ch).generateCohort(50, 0.25)

	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different cohorts")
	}
}

func TestGenerateCohortBounds(t *testing.T) {
	cfg := testConfig(500, 7)
	ch := channel.NewChannels(1, 1, 1, 1)
	cohort := seededGenerator(cfg, ch).generateCohort(500, 0.25)

	if len(cohort) != 500 {
		t.Fatalf("cohort size = %d, want 500", len(cohort))
	}
	if cohort[0].CustomerID != "CUST_000001" {
		t.Fatalf("first customer id = %s", cohort[0].CustomerID)
	}

	for _, s := range cohort {
		if *s.UsageChangePercent < -50 || *s.UsageChangePercent > 30 {
			t.Fatalf("usage change out of range: %v", *s.UsageChangePercent)
		}
		if *s.DaysSinceLastLogin < 0 || *s.DaysSinceLastLogin > 90 {
			t.Fatalf("days since login out of range: %v", *s.DaysSinceLastLogin)
		}
		if *s.PaymentFailureCount < 0 || *s.PaymentFailureCount > 5 {
			t.Fatalf("payment failures out of range: %v", *s.PaymentFailureCount)
		}
		if *s.SupportTicketCount < 0 || *s.SupportTicketCount > 15 {
			t.Fatalf("support tickets out of range: %v", *s.SupportTicketCount)
		}
		if *s.NPSScore < 0 || *s.NPSScore > 10 {
			t.Fatalf("nps out of range: %v", *s.NPSScore)
		}
		if *s.ContractAgeMonths < 1 || *s.ContractAgeMonths > 60 {
			t.Fatalf("contract age out of range: %v", *s.ContractAgeMonths)
		}
		if s.PlanID == "" || s.PlanPrice == nil || *s.PlanPrice <= 0 {
			t.Fatalf("sample missing plan: %+v", s)
		}
	}
}

func TestGenerateCohortDifferentSeeds(t *testing.T) {
	ch := channel.NewChannels(1, 1, 1, 1)
	a := seededGenerator(testConfig(50, 1), ch).generateCohort(50, 0.25)
	b := seededGenerator(testConfig(50, 2), ch).generateCohort(50, 0.25)

	if reflect.DeepEqual(a, b) {
		t.Fatal("different seeds produced identical cohorts")
	}
}

func TestEmitScanPagesCohort(t *testing.T) {
	cfg := testConfig(150, 42)
	ch := channel.NewChannels(10, 1, 1, 1)
	g := seededGenerator(cfg, ch)
	g.ctx = context.Background()
	g.cohort = g.generateCohort(150, 0.25)

	g.emitScan()

	var pages []models.ScanPage
	total := 0
	for {
		select {
		case msg := <-ch.Samples:
			if msg.Source != "synthetic" || msg.MessageType != models.MessageTypeScanPage {
				t.Fatalf("message = %+v", msg)
			}
			var page models.ScanPage
			if err := json.Unmarshal(msg.Data, &page); err != nil {
				t.Fatalf("unmarshal page: %v", err)
			}
			pages = append(pages, page)
			total += len(page.Samples)
		default:
			if len(pages) != 2 {
				t.Fatalf("pages = %d, want 2", len(pages))
			}
			if total != 150 {
				t.Fatalf("customers across pages = %d, want 150", total)
			}
			if pages[0].ScanID == "" || pages[0].ScanID != pages[1].ScanID {
				t.Fatalf("pages carry inconsistent scan ids: %q vs %q", pages[0].ScanID, pages[1].ScanID)
			}
			return
		}
	}
}
