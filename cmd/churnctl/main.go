// churnctl runs the scoring and pricing engine once against local input
// files. It is the offline companion to the streaming service: the same
// engine configuration, no channels, results printed as JSON.
//
// Usage:
//
//	churnctl score -sample customer.json [-config config/config.yml]
//	churnctl propose -snapshot snapshot.json [-plans config/plans.yml]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"churnflow/config"
	"churnflow/engine"
	"churnflow/logger"
	"churnflow/models"
)

func main() {
	log := logger.GetLogger()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: churnctl <score|propose> [flags]")
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "score":
		err = runScore(os.Args[2:])
	case "propose":
		err = runPropose(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}

	if err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func buildEngine(configPath string) (*engine.Engine, error) {
	engineCfg := config.DefaultEngineConfig()
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		engineCfg = cfg.Engine
	}
	return engine.New(engineCfg)
}

func runScore(args []string) error {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	samplePath := fs.String("sample", "", "Path to a customer feature sample JSON file")
	configPath := fs.String("config", "", "Path to configuration file (defaults to built-in engine config)")
	fs.Parse(args)

	if *samplePath == "" {
		return fmt.Errorf("score: -sample is required")
	}

	data, err := os.ReadFile(*samplePath)
	if err != nil {
		return fmt.Errorf("read sample: %w", err)
	}
	var sample models.RawFeatureSample
	if err := json.Unmarshal(data, &sample); err != nil {
		return fmt.Errorf("parse sample: %w", err)
	}

	eng, err := buildEngine(*configPath)
	if err != nil {
		return err
	}

	assessment, warnings := eng.ScoreCustomer(sample)

	out := struct {
		Assessment models.ChurnAssessment `json:"assessment"`
		Warnings   []string               `json:"warnings,omitempty"`
	}{Assessment: assessment}
	for _, w := range warnings {
		out.Warnings = append(out.Warnings, w.String())
	}

	return printJSON(out)
}

func runPropose(args []string) error {
	fs := flag.NewFlagSet("propose", flag.ExitOnError)
	snapshotPath := fs.String("snapshot", "", "Path to a risk summary snapshot JSON file")
	plansPath := fs.String("plans", "config/plans.yml", "Path to plan catalog file")
	configPath := fs.String("config", "", "Path to configuration file (defaults to built-in engine config)")
	fs.Parse(args)

	if *snapshotPath == "" {
		return fmt.Errorf("propose: -snapshot is required")
	}

	data, err := os.ReadFile(*snapshotPath)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot models.RiskSummarySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	catalog, err := config.LoadPlans(*plansPath)
	if err != nil {
		return err
	}

	eng, err := buildEngine(*configPath)
	if err != nil {
		return err
	}

	set, err := eng.ProposePricing(snapshot, catalog.BasePrices())
	if err != nil {
		return err
	}

	projection := engine.ProjectRevenue(set, catalog.SubscriberCounts())

	out := struct {
		Proposals models.PricingProposalSet `json:"proposals"`
		Revenue   engine.RevenueProjection  `json:"revenue_projection"`
	}{Proposals: set, Revenue: projection}

	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
