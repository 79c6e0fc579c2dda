package engine

import (
	"math"

	"churnflow/models"
)

// Price and usage anchors for the elasticity heuristic. A plan priced at the
// price ceiling or a customer at the usage ceiling contributes the full
// factor weight; anything above is treated the same.
const (
	elasticityBase         = -2.0
	elasticityPriceCeiling = 2000
	elasticityUsageCeiling = 500
	elasticityDefaultPrice = 1000
	elasticityDefaultUsage = 200
)

// estimateElasticity derives a per-customer price sensitivity estimate from
// satisfaction, plan price and usage volume. Happier, pricier, heavier
// customers are less price sensitive. The result is clamped to [-2.5, -0.2]
// and rounded to two decimals; it rides along on the assessment for the
// pricing stage and downstream analytics.
func estimateElasticity(sample models.RawFeatureSample, resolved resolvedSample) float64 {
	planPrice := float64(elasticityDefaultPrice)
	if sample.PlanPrice != nil && *sample.PlanPrice > 0 {
		planPrice = *sample.PlanPrice
	}
	usage := float64(elasticityDefaultUsage)
	if sample.AvgMonthlyUsageGB != nil && *sample.AvgMonthlyUsageGB > 0 {
		usage = *sample.AvgMonthlyUsageGB
	}

	npsFactor := float64(resolved.NPSScore) / 10
	priceFactor := math.Min(planPrice/elasticityPriceCeiling, 1)
	usageFactor := math.Min(usage/elasticityUsageCeiling, 1)

	elasticity := elasticityBase + npsFactor*0.7 + priceFactor*0.5 + usageFactor*0.3
	elasticity = clamp(elasticity, -2.5, -0.2)

	return math.Round(elasticity*100) / 100
}
