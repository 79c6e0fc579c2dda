package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T) string {
	t.Helper()
	content := `churnflow:
  name: "TestApp"
  version: "1.0"
channels:
  sample_buffer: 1
  assessment_buffer: 1
  snapshot_buffer: 1
  proposal_buffer: 1
reader:
  max_workers: 1
scorer:
  max_workers: 1
  batch_size: 1
  batch_timeout: 1s
  scan_window: 1m
storage:
  s3:
    enabled: false
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Churnflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Churnflow.Name)
	}
	if cfg.Scorer.ScanWindow != time.Minute {
		t.Errorf("unexpected scan window: %s", cfg.Scorer.ScanWindow)
	}
}

func TestLoadConfigAppliesEngineDefaults(t *testing.T) {
	path := writeTempConfig(t)
	defer os.Remove(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Engine.Weights[FeatureWeightUsageChange] != 0.173 {
		t.Errorf("usage_change weight = %v", cfg.Engine.Weights[FeatureWeightUsageChange])
	}
	if cfg.Engine.Logistic.Scale != 10 || cfg.Engine.Logistic.Bias != 3 {
		t.Errorf("logistic = %+v", cfg.Engine.Logistic)
	}
	if cfg.Engine.Tiers.HighPercent != 60 || cfg.Engine.Tiers.MediumPercent != 30 {
		t.Errorf("tiers = %+v", cfg.Engine.Tiers)
	}
	if len(cfg.Engine.Pricing.Tiers) != 3 {
		t.Fatalf("pricing tiers = %d, want 3", len(cfg.Engine.Pricing.Tiers))
	}
	if cfg.Engine.Pricing.Tiers[0].ID != PlanTierBasic || cfg.Engine.Pricing.Tiers[0].Elasticity != -1.8 {
		t.Errorf("basic tier = %+v", cfg.Engine.Pricing.Tiers[0])
	}
}

func TestLoadConfigRejectsInvertedTiers(t *testing.T) {
	content := `churnflow:
  name: "TestApp"
  version: "1.0"
channels:
  sample_buffer: 1
reader:
  max_workers: 1
scorer:
  max_workers: 1
  batch_size: 1
  batch_timeout: 1s
  scan_window: 1m
engine:
  tiers:
    high_percent: 20
    medium_percent: 30
`
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	f.Close()

	if _, err := LoadConfig(f.Name()); err == nil {
		t.Fatal("expected validation error for inverted tier thresholds")
	}
}

func TestLoadPlans(t *testing.T) {
	content := `plans:
- id: basic
  name: Basic
  base_price: 499
  subscribers: 5000
- id: standard
  name: Standard
  base_price: 799
  subscribers: 3000
`
	f, err := os.CreateTemp("", "plans-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	f.Close()

	catalog, err := LoadPlans(f.Name())
	if err != nil {
		t.Fatalf("LoadPlans failed: %v", err)
	}
	if len(catalog.Plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(catalog.Plans))
	}

	prices := catalog.BasePrices()
	if prices["basic"] != 499 || prices["standard"] != 799 {
		t.Errorf("unexpected base prices: %v", prices)
	}
	counts := catalog.SubscriberCounts()
	if counts["basic"] != 5000 {
		t.Errorf("unexpected subscriber counts: %v", counts)
	}
}

func TestLoadPlansRejectsInvalidEntries(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"empty", "plans: []\n"},
		{"missing id", "plans:\n- name: Basic\n  base_price: 499\n"},
		{"bad price", "plans:\n- id: basic\n  base_price: 0\n"},
	}
	for _, c := range cases {
		f, err := os.CreateTemp("", "plans-*.yml")
		if err != nil {
			t.Fatalf("create temp file: %v", err)
		}
		if _, err := f.WriteString(c.content); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
		f.Close()

		if _, err := LoadPlans(f.Name()); err == nil {
			t.Errorf("%s: expected error", c.name)
		}
		os.Remove(f.Name())
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"valid-bucket", true},
		{"Invalid", false},
		{"ab", false},
		{"my..bucket", false},
	}
	for _, c := range cases {
		if got := isValidS3Bucket(c.name); got != c.valid {
			t.Errorf("isValidS3Bucket(%q) = %v, want %v", c.name, got, c.valid)
		}
	}
}
