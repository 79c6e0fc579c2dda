package engine

import (
	"testing"

	"churnflow/models"
)

func TestProjectRevenue(t *testing.T) {
	set := models.PricingProposalSet{
		Proposals: []models.PlanPriceProposal{
			{PlanID: "basic", BasePrice: 500, ProposedPrice: 520, PercentChange: 4},
			{PlanID: "standard", BasePrice: 800, ProposedPrice: 840, PercentChange: 5},
			{PlanID: "premium", BasePrice: 1300, ProposedPrice: 1430, PercentChange: 10},
		},
	}
	subs := map[string]int{"basic": 100, "standard": 50, "premium": 10}

	proj := ProjectRevenue(set, subs)

	if proj.BaseRevenue != 103000 {
		t.Errorf("base revenue = %v, want 103000", proj.BaseRevenue)
	}
	if proj.ProposedRevenue != 108300 {
		t.Errorf("proposed revenue = %v, want 108300", proj.ProposedRevenue)
	}
	if proj.RevenueChange != 5300 {
		t.Errorf("revenue change = %v, want 5300", proj.RevenueChange)
	}
	if proj.RevenueChangePercent != 5.15 {
		t.Errorf("revenue change percent = %v, want 5.15", proj.RevenueChangePercent)
	}
	if proj.AvgPriceChangePct != 6.33 {
		t.Errorf("avg price change = %v, want 6.33", proj.AvgPriceChangePct)
	}
}

func TestProjectRevenueUnknownTierIgnored(t *testing.T) {
	set := models.PricingProposalSet{
		Proposals: []models.PlanPriceProposal{
			{PlanID: "basic", BasePrice: 500, ProposedPrice: 450, PercentChange: -10},
		},
	}

	proj := ProjectRevenue(set, map[string]int{"premium": 500})
	if proj.BaseRevenue != 0 || proj.ProposedRevenue != 0 {
		t.Errorf("tiers without subscribers must weigh zero, got %+v", proj)
	}
	if proj.RevenueChangePercent != 0 {
		t.Errorf("change percent with zero base = %v, want 0", proj.RevenueChangePercent)
	}
}

func TestProjectROI(t *testing.T) {
	proj := ProjectROI(700, 500, 24, 1000000)

	if proj.RevenueSaved != 8400000 {
		t.Errorf("revenue saved = %v, want 8400000", proj.RevenueSaved)
	}
	if proj.NetBenefit != 7400000 {
		t.Errorf("net benefit = %v, want 7400000", proj.NetBenefit)
	}
	if proj.ROIPercent != 740 {
		t.Errorf("roi = %v%%, want 740%%", proj.ROIPercent)
	}
	if proj.PaybackMonths != 2.9 {
		t.Errorf("payback = %v months, want 2.9", proj.PaybackMonths)
	}
}

func TestProjectROIDegenerateInputs(t *testing.T) {
	proj := ProjectROI(100, 500, 24, 0)
	if proj.ROIPercent != 0 || proj.RevenueSaved != 0 {
		t.Errorf("zero cost must yield zero projection, got %+v", proj)
	}

	proj = ProjectROI(100, 500, 0, 1000000)
	if proj.ROIPercent != 0 {
		t.Errorf("zero lifetime must yield zero projection, got %+v", proj)
	}
}
