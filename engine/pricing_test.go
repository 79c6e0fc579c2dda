package engine

import (
	"testing"

	"churnflow/models"
)

func catalogPrices() map[string]float64 {
	return map[string]float64{
		"basic":    499,
		"standard": 799,
		"premium":  1299,
	}
}

func TestProposePricingStressedCohort(t *testing.T) {
	e := newTestEngine(t)

	snapshot := models.RiskSummarySnapshot{
		ScanID:     "scan-42",
		HighRisk:   30,
		MediumRisk: 20,
		LowRisk:    50,
		Total:      100,
	}

	set, err := e.ProposePricing(snapshot, catalogPrices())
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if set.ScanID != "scan-42" {
		t.Errorf("scan id = %q", set.ScanID)
	}
	if len(set.Proposals) != 3 {
		t.Fatalf("expected 3 proposals, got %d", len(set.Proposals))
	}

	basic := set.Proposals[0]
	if basic.PlanID != "basic" {
		t.Fatalf("proposal order: first = %s, want basic", basic.PlanID)
	}
	if basic.ProposedPrice != 535 {
		t.Errorf("basic proposed = %v, want 535", basic.ProposedPrice)
	}
	if basic.PercentChange != 7 {
		t.Errorf("basic percent change = %v, want 7", basic.PercentChange)
	}
	if basic.Rationale != "High churn risk (30 at-risk customers)" {
		t.Errorf("basic rationale = %q", basic.Rationale)
	}

	standard := set.Proposals[1]
	if standard.PlanID != "standard" {
		t.Fatalf("proposal order: second = %s, want standard", standard.PlanID)
	}
	// Raw adjustment 1.07 must be clamped to the 1.05 ceiling first.
	if standard.ProposedPrice != 839 {
		t.Errorf("standard proposed = %v, want 839", standard.ProposedPrice)
	}
	if standard.Rationale != "Demand-based increase" {
		t.Errorf("standard rationale = %q", standard.Rationale)
	}

	premium := set.Proposals[2]
	if premium.PlanID != "premium" {
		t.Fatalf("proposal order: third = %s, want premium", premium.PlanID)
	}
	if premium.ProposedPrice != 1517 {
		t.Errorf("premium proposed = %v, want 1517", premium.ProposedPrice)
	}
	if premium.Rationale != "Value-based pricing" {
		t.Errorf("premium rationale = %q", premium.Rationale)
	}
}

func TestProposePricingHealthyCohort(t *testing.T) {
	e := newTestEngine(t)

	snapshot := models.RiskSummarySnapshot{
		HighRisk: 2,
		LowRisk:  98,
		Total:    100,
	}
	set, err := e.ProposePricing(snapshot, catalogPrices())
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	if set.Proposals[0].Rationale != "Market competitive adjustment" {
		t.Errorf("basic rationale = %q", set.Proposals[0].Rationale)
	}
	if set.Proposals[2].Rationale != "Low price sensitivity (98% low-risk)" {
		t.Errorf("premium rationale = %q", set.Proposals[2].Rationale)
	}
}

func TestProposePricingEmptySnapshot(t *testing.T) {
	e := newTestEngine(t)

	set, err := e.ProposePricing(models.RiskSummarySnapshot{}, catalogPrices())
	if err != nil {
		t.Fatalf("propose on empty snapshot: %v", err)
	}
	for _, p := range set.Proposals {
		if p.ProposedPrice <= 0 {
			t.Errorf("%s proposed %v, want positive", p.PlanID, p.ProposedPrice)
		}
	}
}

func TestProposePricingClampBands(t *testing.T) {
	e := newTestEngine(t)

	// Sweep cohort mixes; every proposal must respect its tier band.
	bands := map[string][2]float64{
		"basic":    {0.70, 1.10},
		"standard": {0.95, 1.05},
		"premium":  {0.90, 1.20},
	}
	mixes := []models.RiskSummarySnapshot{
		{Total: 0},
		{HighRisk: 100, Total: 100},
		{LowRisk: 100, Total: 100},
		{MediumRisk: 100, Total: 100},
		{HighRisk: 500, LowRisk: 500, Total: 1000},
	}
	for _, snapshot := range mixes {
		set, err := e.ProposePricing(snapshot, catalogPrices())
		if err != nil {
			t.Fatalf("propose: %v", err)
		}
		for _, p := range set.Proposals {
			band := bands[p.PlanID]
			ratio := p.ProposedPrice / p.BasePrice
			// Rounding to whole currency can nudge the ratio past the band
			// by at most half a unit of price.
			slack := 0.5 / p.BasePrice
			if ratio < band[0]-slack || ratio > band[1]+slack {
				t.Errorf("snapshot %+v: %s ratio %v outside [%v,%v]", snapshot, p.PlanID, ratio, band[0], band[1])
			}
		}
	}
}

func TestProposePricingMissingBasePrice(t *testing.T) {
	e := newTestEngine(t)

	prices := catalogPrices()
	delete(prices, "standard")

	_, err := e.ProposePricing(models.RiskSummarySnapshot{Total: 10}, prices)
	if err == nil {
		t.Fatal("expected error for missing base price")
	}
	if !IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
}

func TestProposePricingDemandSaturation(t *testing.T) {
	e := newTestEngine(t)

	small := models.RiskSummarySnapshot{LowRisk: 100, Total: 100}
	huge := models.RiskSummarySnapshot{LowRisk: 100000, Total: 100000}

	setSmall, err := e.ProposePricing(small, catalogPrices())
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	setHuge, err := e.ProposePricing(huge, catalogPrices())
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	for i := range setSmall.Proposals {
		if setSmall.Proposals[i].ProposedPrice != setHuge.Proposals[i].ProposedPrice {
			t.Errorf("%s: demand factor must saturate, got %v vs %v",
				setSmall.Proposals[i].PlanID,
				setSmall.Proposals[i].ProposedPrice,
				setHuge.Proposals[i].ProposedPrice)
		}
	}
}
