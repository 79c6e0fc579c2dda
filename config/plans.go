package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan describes one subscription tier in the plan catalog: its identifier,
// display name, current base price and an estimate of active subscribers
// used for revenue projections.
type Plan struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	BasePrice   float64 `yaml:"base_price"`
	Subscribers int     `yaml:"subscribers"`
}

// PlanCatalog represents the full plan configuration file.
type PlanCatalog struct {
	Plans []Plan `yaml:"plans"`
}

// LoadPlans loads the plan catalog from the given path. Like LoadConfig it
// honors environment specific catalog files selected through APP_ENV.
func LoadPlans(path string) (*PlanCatalog, error) {
	path = resolveEnvSpecificPath(path, defaultPlansPath, plansEnvPaths)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans file: %w", err)
	}
	var catalog PlanCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse plans file: %w", err)
	}
	if len(catalog.Plans) == 0 {
		return nil, fmt.Errorf("plans file contains no plans")
	}
	for _, p := range catalog.Plans {
		if p.ID == "" {
			return nil, fmt.Errorf("plan entry missing id")
		}
		if p.BasePrice <= 0 {
			return nil, fmt.Errorf("plan %q has non-positive base price", p.ID)
		}
	}
	return &catalog, nil
}

// BasePrices returns the plan catalog as a planID -> price map, the shape
// the pricing adjuster consumes.
func (c *PlanCatalog) BasePrices() map[string]float64 {
	prices := make(map[string]float64, len(c.Plans))
	for _, p := range c.Plans {
		prices[p.ID] = p.BasePrice
	}
	return prices
}

// SubscriberCounts returns active subscriber estimates per plan for revenue
// projections.
func (c *PlanCatalog) SubscriberCounts() map[string]int {
	counts := make(map[string]int, len(c.Plans))
	for _, p := range c.Plans {
		counts[p.ID] = p.Subscribers
	}
	return counts
}
