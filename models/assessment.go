package models

import (
	"time"
)

// RiskTier classifies a customer's churn probability.
type RiskTier string

const (
	RiskTierLow    RiskTier = "low"
	RiskTierMedium RiskTier = "medium"
	RiskTierHigh   RiskTier = "high"
)

// ChurnAssessment is the result of scoring one customer. It is created fresh
// on every scoring call and never mutated afterwards.
type ChurnAssessment struct {
	CustomerID         string        `json:"customer_id"`
	ProbabilityPercent int           `json:"probability_percent"`
	RiskTier           RiskTier      `json:"risk_tier"`
	Recommendation     string        `json:"recommendation"`
	SubScores          RiskSubScores `json:"sub_scores"`
	PriceElasticity    float64       `json:"price_elasticity"`
}

// AssessmentBatch groups assessments produced by the scoring workers for one
// source before they are handed to the cohort aggregator.
type AssessmentBatch struct {
	BatchID     string            `json:"batch_id"`
	Source      string            `json:"source"`
	Segment     string            `json:"segment"`
	Assessments []ChurnAssessment `json:"assessments"`
	RecordCount int               `json:"record_count"`
	Timestamp   time.Time         `json:"timestamp"`
	ProcessedAt time.Time         `json:"processed_at"`
}
