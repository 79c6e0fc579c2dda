package engine

import (
	"math"

	"churnflow/models"
)

// RevenueProjection compares the current revenue run-rate against the
// run-rate under a pricing proposal set, weighted by tier subscriber counts.
type RevenueProjection struct {
	BaseRevenue          float64 `json:"base_revenue"`
	ProposedRevenue      float64 `json:"proposed_revenue"`
	RevenueChange        float64 `json:"revenue_change"`
	RevenueChangePercent float64 `json:"revenue_change_percent"`
	AvgPriceChangePct    float64 `json:"avg_price_change_percent"`
}

// ROIProjection estimates the return on a retention programme:
// (saved revenue over the customer lifetime minus cost) over cost.
type ROIProjection struct {
	CustomersSaved     int     `json:"customers_saved"`
	RevenueSaved       float64 `json:"revenue_saved"`
	ImplementationCost float64 `json:"implementation_cost"`
	NetBenefit         float64 `json:"net_benefit"`
	ROIPercent         float64 `json:"roi_percent"`
	PaybackMonths      float64 `json:"payback_months"`
}

// ProjectRevenue weighs each tier proposal by its subscriber count. Tiers
// absent from the subscriber map contribute a weight of zero, not an error;
// the projection is advisory and logged alongside the proposal set.
func ProjectRevenue(set models.PricingProposalSet, subscribers map[string]int) RevenueProjection {
	var base, proposed, pctSum float64

	for _, p := range set.Proposals {
		n := float64(subscribers[p.PlanID])
		base += p.BasePrice * n
		proposed += p.ProposedPrice * n
		pctSum += p.PercentChange
	}

	proj := RevenueProjection{
		BaseRevenue:     round2(base),
		ProposedRevenue: round2(proposed),
		RevenueChange:   round2(proposed - base),
	}
	if base > 0 {
		proj.RevenueChangePercent = round2((proposed - base) / base * 100)
	}
	if len(set.Proposals) > 0 {
		proj.AvgPriceChangePct = round2(pctSum / float64(len(set.Proposals)))
	}
	return proj
}

// ProjectROI computes the retention-programme return. A non-positive
// implementation cost makes the ratio meaningless, so the zero projection is
// returned rather than an infinity.
func ProjectROI(customersSaved int, avgRevenuePerUser float64, avgLifetimeMonths int, implementationCost float64) ROIProjection {
	if implementationCost <= 0 || avgLifetimeMonths <= 0 {
		return ROIProjection{CustomersSaved: customersSaved, ImplementationCost: implementationCost}
	}

	revenueSaved := float64(customersSaved) * avgRevenuePerUser * float64(avgLifetimeMonths)
	netBenefit := revenueSaved - implementationCost

	proj := ROIProjection{
		CustomersSaved:     customersSaved,
		RevenueSaved:       round2(revenueSaved),
		ImplementationCost: implementationCost,
		NetBenefit:         round2(netBenefit),
		ROIPercent:         round2(netBenefit / implementationCost * 100),
	}
	if revenueSaved > 0 {
		proj.PaybackMonths = math.Round(implementationCost/(revenueSaved/float64(avgLifetimeMonths))*10) / 10
	}
	return proj
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
