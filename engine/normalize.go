package engine

import (
	"math"

	"churnflow/models"
)

// resolvedSample is a feature sample after defaulting and range clamping.
type resolvedSample struct {
	UsageChangePercent  float64
	DaysSinceLastLogin  int
	PaymentFailureCount int
	SupportTicketCount  int
	NPSScore            int
	ContractAgeMonths   int
}

// resolve fills absent fields with their defaults and pulls out-of-domain
// values back into range. Noisy upstream data never fails a scoring call;
// every substitution is reported as a warning instead.
func (e *Engine) resolve(sample models.RawFeatureSample) (resolvedSample, []Warning) {
	d := e.cfg.Defaults
	var warnings []Warning

	r := resolvedSample{
		UsageChangePercent:  d.UsageChangePercent,
		DaysSinceLastLogin:  d.DaysSinceLastLogin,
		PaymentFailureCount: d.PaymentFailureCount,
		SupportTicketCount:  d.SupportTicketCount,
		NPSScore:            d.NPSScore,
		ContractAgeMonths:   d.ContractAgeMonths,
	}

	if sample.UsageChangePercent != nil {
		r.UsageChangePercent = *sample.UsageChangePercent
	} else {
		warnings = append(warnings, Warning{Kind: WarnInputDefaulted, Field: "usage_change_percent"})
	}

	if sample.DaysSinceLastLogin != nil {
		r.DaysSinceLastLogin = *sample.DaysSinceLastLogin
	} else {
		warnings = append(warnings, Warning{Kind: WarnInputDefaulted, Field: "days_since_last_login"})
	}
	if r.DaysSinceLastLogin < 0 {
		r.DaysSinceLastLogin = 0
		warnings = append(warnings, Warning{Kind: WarnRangeClamped, Field: "days_since_last_login"})
	}

	if sample.PaymentFailureCount != nil {
		r.PaymentFailureCount = *sample.PaymentFailureCount
	} else {
		warnings = append(warnings, Warning{Kind: WarnInputDefaulted, Field: "payment_failure_count"})
	}
	if r.PaymentFailureCount < 0 {
		r.PaymentFailureCount = 0
		warnings = append(warnings, Warning{Kind: WarnRangeClamped, Field: "payment_failure_count"})
	}

	if sample.SupportTicketCount != nil {
		r.SupportTicketCount = *sample.SupportTicketCount
	} else {
		warnings = append(warnings, Warning{Kind: WarnInputDefaulted, Field: "support_ticket_count"})
	}
	if r.SupportTicketCount < 0 {
		r.SupportTicketCount = 0
		warnings = append(warnings, Warning{Kind: WarnRangeClamped, Field: "support_ticket_count"})
	}

	if sample.NPSScore != nil {
		r.NPSScore = *sample.NPSScore
	} else {
		warnings = append(warnings, Warning{Kind: WarnInputDefaulted, Field: "nps_score"})
	}
	if r.NPSScore < 0 || r.NPSScore > 10 {
		if r.NPSScore < 0 {
			r.NPSScore = 0
		} else {
			r.NPSScore = 10
		}
		warnings = append(warnings, Warning{Kind: WarnRangeClamped, Field: "nps_score"})
	}

	if sample.ContractAgeMonths != nil {
		r.ContractAgeMonths = *sample.ContractAgeMonths
	} else {
		warnings = append(warnings, Warning{Kind: WarnInputDefaulted, Field: "contract_age_months"})
	}
	if r.ContractAgeMonths < 0 {
		r.ContractAgeMonths = 0
		warnings = append(warnings, Warning{Kind: WarnRangeClamped, Field: "contract_age_months"})
	}

	return r, warnings
}

// Normalize converts one customer's raw behavioural measurements into
// bounded per-feature risk sub-scores. Each sub-score is independently
// clamped to [0,1].
func (e *Engine) Normalize(sample models.RawFeatureSample) (models.RiskSubScores, []Warning) {
	resolved, warnings := e.resolve(sample)
	return normalizeResolved(resolved), warnings
}

func normalizeResolved(r resolvedSample) models.RiskSubScores {
	scores := models.RiskSubScores{}

	// Only declines in usage are a risk signal; growth contributes zero,
	// not negative risk.
	if r.UsageChangePercent < 0 {
		scores.UsageRisk = math.Min(1, math.Abs(r.UsageChangePercent)/50)
	}

	scores.LoginRisk = math.Min(1, float64(r.DaysSinceLastLogin)/30)
	scores.PaymentRisk = math.Min(1, float64(r.PaymentFailureCount)/3)
	scores.TicketRisk = math.Min(1, float64(r.SupportTicketCount)/5)
	scores.NPSRisk = math.Min(1, float64(10-r.NPSScore)/10)

	// New accounts carry a fixed risk premium; tenure beyond six months
	// carries none. A step, not a gradient.
	if r.ContractAgeMonths < 6 {
		scores.ContractRisk = 0.5
	}

	return scores
}
