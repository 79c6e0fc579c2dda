package models

import (
	"time"
)

// Message types carried by RawSampleMessage.
const (
	MessageTypeScanPage = "scan_page"
	MessageTypeActivity = "activity"
)

// RawSampleMessage represents the raw payload received from a customer data
// source before scoring. Data carries the JSON body exactly as the source
// produced it; the scorer decodes it according to MessageType.
type RawSampleMessage struct {
	Source      string
	Segment     string
	Data        []byte
	Timestamp   time.Time
	MessageType string // "scan_page" or "activity"
}

// RawFeatureSample holds one customer's behavioural signals at evaluation
// time. Signal fields are pointers so an absent value can be told apart from
// an explicit zero; the engine substitutes documented defaults for absent
// fields instead of failing.
type RawFeatureSample struct {
	CustomerID          string   `json:"customer_id"`
	UsageChangePercent  *float64 `json:"usage_change_percent,omitempty"`
	DaysSinceLastLogin  *int     `json:"days_since_last_login,omitempty"`
	PaymentFailureCount *int     `json:"payment_failure_count,omitempty"`
	SupportTicketCount  *int     `json:"support_ticket_count,omitempty"`
	NPSScore            *int     `json:"nps_score,omitempty"`
	ContractAgeMonths   *int     `json:"contract_age_months,omitempty"`

	// Optional billing context used for the elasticity estimate.
	PlanID            string   `json:"plan_id,omitempty"`
	PlanPrice         *float64 `json:"plan_price,omitempty"`
	AvgMonthlyUsageGB *float64 `json:"avg_monthly_usage_gb,omitempty"`
}

// RiskSubScores is the normalized view of one sample: one bounded [0,1]
// risk contribution per behavioural signal.
type RiskSubScores struct {
	UsageRisk    float64 `json:"usage_risk"`
	LoginRisk    float64 `json:"login_risk"`
	PaymentRisk  float64 `json:"payment_risk"`
	TicketRisk   float64 `json:"ticket_risk"`
	NPSRisk      float64 `json:"nps_risk"`
	ContractRisk float64 `json:"contract_risk"`
}

// ScanPage is the decoded body of a "scan_page" message: one page of
// customer samples from a population scan.
type ScanPage struct {
	ScanID  string             `json:"scan_id"`
	Segment string             `json:"segment"`
	Samples []RawFeatureSample `json:"samples"`
}

// ActivityEvent is the decoded body of an "activity" message pushed by the
// customer activity feed.
type ActivityEvent struct {
	Type     string           `json:"type"`
	Customer RawFeatureSample `json:"customer"`
}
