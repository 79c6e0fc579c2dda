package engine

import (
	"math"

	"churnflow/models"
)

// Retention recommendations per risk tier.
const (
	RecommendationHigh   = "URGENT: Immediate intervention required. Offer retention discount."
	RecommendationMedium = "Monitor closely. Consider proactive outreach."
	RecommendationLow    = "Customer is stable. Continue standard engagement."
)

// ScoreCustomer evaluates one customer: normalization, weighted scoring,
// logistic transform and tier classification. Identical inputs always
// produce an identical assessment.
func (e *Engine) ScoreCustomer(sample models.RawFeatureSample) (models.ChurnAssessment, []Warning) {
	resolved, warnings := e.resolve(sample)
	subScores := normalizeResolved(resolved)

	assessment := e.score(subScores)
	assessment.CustomerID = sample.CustomerID
	assessment.PriceElasticity = estimateElasticity(sample, resolved)

	return assessment, warnings
}

// Score combines already-normalized sub-scores into an assessment. Exposed
// for callers that normalize separately (explainability tooling).
func (e *Engine) Score(subScores models.RiskSubScores) models.ChurnAssessment {
	return e.score(subScores)
}

func (e *Engine) score(s models.RiskSubScores) models.ChurnAssessment {
	w := e.weights

	rawScore := s.UsageRisk*w.UsageChange +
		s.LoginRisk*w.DaysSinceLogin +
		s.PaymentRisk*w.PaymentFailures +
		s.TicketRisk*w.SupportTickets +
		s.NPSRisk*w.NPSScore +
		s.ContractRisk*w.ContractAge

	probability := 1 / (1 + math.Exp(-(rawScore*e.cfg.Logistic.Scale - e.cfg.Logistic.Bias)))
	percent := int(math.Round(probability * 100))

	tier, recommendation := e.classify(percent)

	return models.ChurnAssessment{
		ProbabilityPercent: percent,
		RiskTier:           tier,
		Recommendation:     recommendation,
		SubScores:          s,
	}
}

func (e *Engine) classify(percent int) (models.RiskTier, string) {
	switch {
	case percent >= e.cfg.Tiers.HighPercent:
		return models.RiskTierHigh, RecommendationHigh
	case percent >= e.cfg.Tiers.MediumPercent:
		return models.RiskTierMedium, RecommendationMedium
	default:
		return models.RiskTierLow, RecommendationLow
	}
}
