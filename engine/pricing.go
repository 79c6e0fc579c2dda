package engine

import (
	"fmt"
	"math"

	"churnflow/config"
	"churnflow/models"
)

// cohortFactors are the per-snapshot quantities shared by the tier formulas.
type cohortFactors struct {
	total           int
	highRisk        int
	mediumRisk      int
	highRiskRatio   float64
	mediumRiskRatio float64
	lowRiskRatio    float64
	demandFactor    float64
}

// tierPolicy binds one subscription tier's distinct adjustment formula and
// rationale to the configured elasticity and clamp band. The three tiers are
// structurally parallel but intentionally not identical, so a table of
// variants replaces triplicated branch logic.
type tierPolicy struct {
	id        string
	adjust    func(p config.PricingConfig, elasticity float64, f cohortFactors) float64
	rationale func(f cohortFactors, percentChange float64) string
}

var tierPolicies = []tierPolicy{
	{
		id: config.PlanTierBasic,
		adjust: func(p config.PricingConfig, elasticity float64, f cohortFactors) float64 {
			// High-risk concentration buys the entry tier a retention
			// discount: a three-level step, not a gradient.
			churnRisk := 0.05
			if f.highRiskRatio > 0.20 {
				churnRisk = 0.30
			} else if f.highRiskRatio > 0.10 {
				churnRisk = 0.15
			}
			return 1 + p.Alpha*f.demandFactor + p.Beta*elasticity*0.1 - p.Gamma*churnRisk
		},
		rationale: func(f cohortFactors, _ float64) string {
			if f.highRiskRatio > 0.15 {
				return fmt.Sprintf("High churn risk (%d at-risk customers)", f.highRisk)
			}
			if f.highRiskRatio > 0.05 {
				return "Moderate churn risk detected"
			}
			return "Market competitive adjustment"
		},
	},
	{
		id: config.PlanTierStandard,
		adjust: func(p config.PricingConfig, elasticity float64, f cohortFactors) float64 {
			return 1 + p.Alpha*f.demandFactor*0.5 + p.Beta*elasticity*0.05
		},
		rationale: func(f cohortFactors, percentChange float64) string {
			if math.Abs(percentChange) < 3 {
				return fmt.Sprintf("Optimal pricing (%d medium-risk)", f.mediumRisk)
			}
			if percentChange > 0 {
				return "Demand-based increase"
			}
			return "Retention strategy"
		},
	},
	{
		id: config.PlanTierPremium,
		adjust: func(p config.PricingConfig, elasticity float64, f cohortFactors) float64 {
			return 1 + p.Alpha*f.demandFactor + p.Beta*elasticity*0.1 + p.Gamma*(1-f.highRiskRatio)*0.15
		},
		rationale: func(f cohortFactors, _ float64) string {
			if f.lowRiskRatio > 0.70 {
				return fmt.Sprintf("Low price sensitivity (%d%% low-risk)", int(math.Round(f.lowRiskRatio*100)))
			}
			return "Value-based pricing"
		},
	},
}

// ProposePricing turns a risk summary snapshot and the plan base prices into
// one proposed price per subscription tier. The set is built atomically: a
// base price missing for any known tier fails the whole call with a
// ConfigurationError, since a partial proposal set would be misleading. The
// engine only proposes; applying prices belongs to the external approval
// workflow.
func (e *Engine) ProposePricing(snapshot models.RiskSummarySnapshot, basePrices map[string]float64) (models.PricingProposalSet, error) {
	for _, policy := range tierPolicies {
		if _, ok := basePrices[policy.id]; !ok {
			return models.PricingProposalSet{}, &ConfigurationError{Field: "base_prices." + policy.id}
		}
	}

	f := e.factors(snapshot)
	proposals := make([]models.PlanPriceProposal, 0, len(tierPolicies))

	for _, policy := range tierPolicies {
		tier := tierConfig(e.cfg.Pricing, policy.id)
		basePrice := basePrices[policy.id]

		adjustment := policy.adjust(e.cfg.Pricing, tier.Elasticity, f)
		adjustment = clamp(adjustment, tier.ClampMin, tier.ClampMax)

		proposedPrice := math.Round(basePrice * adjustment)
		percentChange := math.Round((proposedPrice - basePrice) / basePrice * 100)

		proposals = append(proposals, models.PlanPriceProposal{
			PlanID:        policy.id,
			BasePrice:     basePrice,
			ProposedPrice: proposedPrice,
			PercentChange: percentChange,
			Rationale:     policy.rationale(f, percentChange),
		})
	}

	return models.PricingProposalSet{
		ScanID:    snapshot.ScanID,
		Snapshot:  snapshot,
		Proposals: proposals,
	}, nil
}

func (e *Engine) factors(snapshot models.RiskSummarySnapshot) cohortFactors {
	// An empty population must not divide by zero.
	total := snapshot.Total
	if total < 1 {
		total = 1
	}

	saturation := e.cfg.Pricing.DemandSaturation
	if saturation <= 0 {
		saturation = 100
	}

	return cohortFactors{
		total:           total,
		highRisk:        snapshot.HighRisk,
		mediumRisk:      snapshot.MediumRisk,
		highRiskRatio:   float64(snapshot.HighRisk) / float64(total),
		mediumRiskRatio: float64(snapshot.MediumRisk) / float64(total),
		lowRiskRatio:    float64(snapshot.LowRisk) / float64(total),
		demandFactor:    math.Min(float64(total)/saturation, 1),
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
