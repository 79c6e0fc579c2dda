package engine

import (
	"churnflow/models"
)

// Aggregate tallies tier assignments across a population into a risk summary
// snapshot. A single linear pass; the input is never mutated and no shared
// state is held, so concurrent calls on independent slices are safe. Empty
// input yields all-zero counts.
func Aggregate(assessments []models.ChurnAssessment) models.RiskSummarySnapshot {
	snapshot := models.RiskSummarySnapshot{}
	for _, a := range assessments {
		switch a.RiskTier {
		case models.RiskTierHigh:
			snapshot.HighRisk++
		case models.RiskTierMedium:
			snapshot.MediumRisk++
		default:
			snapshot.LowRisk++
		}
		snapshot.Total++
	}
	return snapshot
}

// MergeSnapshots sums partial tallies produced by sharded scoring workers.
// The merge is commutative and associative, so the shard layout never
// changes the result.
func MergeSnapshots(parts ...models.RiskSummarySnapshot) models.RiskSummarySnapshot {
	merged := models.RiskSummarySnapshot{}
	for _, p := range parts {
		merged.HighRisk += p.HighRisk
		merged.MediumRisk += p.MediumRisk
		merged.LowRisk += p.LowRisk
		merged.Total += p.Total
	}
	return merged
}
