package engine

import (
	"testing"

	"churnflow/config"
	"churnflow/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(config.DefaultEngineConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func fullSample() models.RawFeatureSample {
	return models.RawFeatureSample{
		CustomerID:          "CUST-0001",
		UsageChangePercent:  fptr(-20),
		DaysSinceLastLogin:  iptr(10),
		PaymentFailureCount: iptr(1),
		SupportTicketCount:  iptr(2),
		NPSScore:            iptr(6),
		ContractAgeMonths:   iptr(24),
	}
}

func TestNormalizeFullSample(t *testing.T) {
	e := newTestEngine(t)

	scores, warnings := e.Normalize(fullSample())
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings for a complete sample, got %v", warnings)
	}

	if got, want := scores.UsageRisk, 0.4; got != want {
		t.Errorf("usage risk = %v, want %v", got, want)
	}
	if got, want := scores.LoginRisk, 10.0/30; got != want {
		t.Errorf("login risk = %v, want %v", got, want)
	}
	if got, want := scores.PaymentRisk, 1.0/3; got != want {
		t.Errorf("payment risk = %v, want %v", got, want)
	}
	if got, want := scores.TicketRisk, 0.4; got != want {
		t.Errorf("ticket risk = %v, want %v", got, want)
	}
	if got, want := scores.NPSRisk, 0.4; got != want {
		t.Errorf("nps risk = %v, want %v", got, want)
	}
	if got := scores.ContractRisk; got != 0 {
		t.Errorf("contract risk = %v, want 0 for a 24 month contract", got)
	}
}

func TestNormalizeUsageGrowthIsNotRisk(t *testing.T) {
	e := newTestEngine(t)

	s := fullSample()
	s.UsageChangePercent = fptr(35)
	scores, _ := e.Normalize(s)
	if scores.UsageRisk != 0 {
		t.Fatalf("usage growth must score 0, got %v", scores.UsageRisk)
	}
}

func TestNormalizeSaturation(t *testing.T) {
	e := newTestEngine(t)

	s := models.RawFeatureSample{
		UsageChangePercent:  fptr(-300),
		DaysSinceLastLogin:  iptr(365),
		PaymentFailureCount: iptr(50),
		SupportTicketCount:  iptr(40),
		NPSScore:            iptr(0),
		ContractAgeMonths:   iptr(1),
	}
	scores, _ := e.Normalize(s)

	for name, got := range map[string]float64{
		"usage":   scores.UsageRisk,
		"login":   scores.LoginRisk,
		"payment": scores.PaymentRisk,
		"ticket":  scores.TicketRisk,
		"nps":     scores.NPSRisk,
	} {
		if got != 1 {
			t.Errorf("%s risk = %v, want saturation at 1", name, got)
		}
	}
	if scores.ContractRisk != 0.5 {
		t.Errorf("contract risk = %v, want 0.5 for a new account", scores.ContractRisk)
	}
}

func TestNormalizeContractAgeStep(t *testing.T) {
	e := newTestEngine(t)

	cases := []struct {
		months int
		want   float64
	}{
		{0, 0.5},
		{5, 0.5},
		{6, 0},
		{60, 0},
	}
	for _, tc := range cases {
		s := fullSample()
		s.ContractAgeMonths = iptr(tc.months)
		scores, _ := e.Normalize(s)
		if scores.ContractRisk != tc.want {
			t.Errorf("contract risk at %d months = %v, want %v", tc.months, scores.ContractRisk, tc.want)
		}
	}
}

func TestResolveDefaultsAbsentFields(t *testing.T) {
	e := newTestEngine(t)

	_, warnings := e.Normalize(models.RawFeatureSample{CustomerID: "CUST-0002"})
	if len(warnings) != 6 {
		t.Fatalf("expected 6 defaulted-input warnings, got %d: %v", len(warnings), warnings)
	}
	for _, w := range warnings {
		if w.Kind != WarnInputDefaulted {
			t.Errorf("warning %v: want kind %s", w, WarnInputDefaulted)
		}
	}
}

func TestResolveClampsOutOfDomainValues(t *testing.T) {
	e := newTestEngine(t)

	cases := []struct {
		name   string
		mutate func(*models.RawFeatureSample)
		field  string
	}{
		{"negative login days", func(s *models.RawFeatureSample) { s.DaysSinceLastLogin = iptr(-4) }, "days_since_last_login"},
		{"negative payment failures", func(s *models.RawFeatureSample) { s.PaymentFailureCount = iptr(-1) }, "payment_failure_count"},
		{"negative tickets", func(s *models.RawFeatureSample) { s.SupportTicketCount = iptr(-9) }, "support_ticket_count"},
		{"nps below zero", func(s *models.RawFeatureSample) { s.NPSScore = iptr(-3) }, "nps_score"},
		{"nps above ten", func(s *models.RawFeatureSample) { s.NPSScore = iptr(14) }, "nps_score"},
		{"negative contract age", func(s *models.RawFeatureSample) { s.ContractAgeMonths = iptr(-2) }, "contract_age_months"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := fullSample()
			tc.mutate(&s)
			scores, warnings := e.Normalize(s)

			var clamped bool
			for _, w := range warnings {
				if w.Kind == WarnRangeClamped && w.Field == tc.field {
					clamped = true
				}
			}
			if !clamped {
				t.Fatalf("expected clamp warning for %s, got %v", tc.field, warnings)
			}

			for name, v := range map[string]float64{
				"usage":    scores.UsageRisk,
				"login":    scores.LoginRisk,
				"payment":  scores.PaymentRisk,
				"ticket":   scores.TicketRisk,
				"nps":      scores.NPSRisk,
				"contract": scores.ContractRisk,
			} {
				if v < 0 || v > 1 {
					t.Errorf("%s risk = %v, want within [0,1]", name, v)
				}
			}
		})
	}
}

func TestNormalizeNPSClampBounds(t *testing.T) {
	e := newTestEngine(t)

	s := fullSample()
	s.NPSScore = iptr(-5)
	scores, _ := e.Normalize(s)
	if scores.NPSRisk != 1 {
		t.Errorf("nps risk for clamped-to-0 score = %v, want 1", scores.NPSRisk)
	}

	s.NPSScore = iptr(25)
	scores, _ = e.Normalize(s)
	if scores.NPSRisk != 0 {
		t.Errorf("nps risk for clamped-to-10 score = %v, want 0", scores.NPSRisk)
	}
}
