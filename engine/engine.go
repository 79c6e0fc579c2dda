// Package engine implements the churn risk scoring core and the
// demand/elasticity pricing adjuster. Every exported operation is a pure
// function of its inputs and the engine configuration: no I/O, no clock, no
// shared mutable state, so calls are safe to shard across any number of
// workers.
package engine

import (
	"churnflow/config"
)

// FeatureWeights is the resolved weight table. Weights are supplied as fixed
// external constants; the engine never derives or updates them.
type FeatureWeights struct {
	UsageChange     float64
	PaymentFailures float64
	SupportTickets  float64
	NPSScore        float64
	DaysSinceLogin  float64
	ContractAge     float64
}

// Engine evaluates customers and prices against one immutable configuration.
type Engine struct {
	cfg     config.EngineConfig
	weights FeatureWeights
}

var requiredWeightKeys = []string{
	config.FeatureWeightUsageChange,
	config.FeatureWeightPaymentFailures,
	config.FeatureWeightSupportTickets,
	config.FeatureWeightNPSScore,
	config.FeatureWeightDaysSinceLogin,
	config.FeatureWeightContractAge,
}

// New validates the engine configuration and returns a ready engine. A
// weight table missing any required feature key yields a ConfigurationError;
// there is no default for a model weight.
func New(cfg config.EngineConfig) (*Engine, error) {
	for _, key := range requiredWeightKeys {
		if _, ok := cfg.Weights[key]; !ok {
			return nil, &ConfigurationError{Field: "engine.weights." + key}
		}
	}
	for _, tier := range []string{config.PlanTierBasic, config.PlanTierStandard, config.PlanTierPremium} {
		if tierConfig(cfg.Pricing, tier) == nil {
			return nil, &ConfigurationError{Field: "engine.pricing.tiers." + tier}
		}
	}

	return &Engine{
		cfg: cfg,
		weights: FeatureWeights{
			UsageChange:     cfg.Weights[config.FeatureWeightUsageChange],
			PaymentFailures: cfg.Weights[config.FeatureWeightPaymentFailures],
			SupportTickets:  cfg.Weights[config.FeatureWeightSupportTickets],
			NPSScore:        cfg.Weights[config.FeatureWeightNPSScore],
			DaysSinceLogin:  cfg.Weights[config.FeatureWeightDaysSinceLogin],
			ContractAge:     cfg.Weights[config.FeatureWeightContractAge],
		},
	}, nil
}

// Weights exposes the resolved weight table, mostly for logging and tests.
func (e *Engine) Weights() FeatureWeights {
	return e.weights
}

// ConfigVersion reports the version tag of the loaded engine configuration.
func (e *Engine) ConfigVersion() string {
	return e.cfg.Version
}

func tierConfig(p config.PricingConfig, id string) *config.PlanTierConfig {
	for i := range p.Tiers {
		if p.Tiers[i].ID == id {
			return &p.Tiers[i]
		}
	}
	return nil
}
