package models

import (
	"time"
)

// RiskSummarySnapshot is a point-in-time tally of a customer population per
// risk tier. Total always equals HighRisk+MediumRisk+LowRisk when the
// snapshot comes from a single pass over a deduplicated population.
type RiskSummarySnapshot struct {
	ScanID      string    `json:"scan_id,omitempty"`
	HighRisk    int       `json:"high_risk"`
	MediumRisk  int       `json:"medium_risk"`
	LowRisk     int       `json:"low_risk"`
	Total       int       `json:"total"`
	GeneratedAt time.Time `json:"generated_at,omitempty"`
}

// PlanPriceProposal is one proposed price change for a subscription tier.
type PlanPriceProposal struct {
	PlanID        string  `json:"plan_id"`
	BasePrice     float64 `json:"base_price"`
	ProposedPrice float64 `json:"proposed_price"`
	PercentChange float64 `json:"percent_change"`
	Rationale     string  `json:"rationale"`
}

// PricingProposalSet holds one proposal per subscription tier, built
// atomically from a single risk summary snapshot. The set only proposes
// prices; applying them is the responsibility of the external approval
// workflow.
type PricingProposalSet struct {
	ProposalID  string              `json:"proposal_id,omitempty"`
	ScanID      string              `json:"scan_id,omitempty"`
	Snapshot    RiskSummarySnapshot `json:"snapshot"`
	Proposals   []PlanPriceProposal `json:"proposals"`
	GeneratedAt time.Time           `json:"generated_at,omitempty"`
}
