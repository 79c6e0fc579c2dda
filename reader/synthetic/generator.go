// Package synthetic generates a seeded customer cohort and replays it as
// scan pages. It stands in for the CRM during demo runs and load tests: the
// same seed always produces the same cohort, so downstream scores and
// proposals are reproducible run to run.
package synthetic

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	appconfig "churnflow/config"
	"churnflow/internal/channel"
	"churnflow/internal/metrics"
	"churnflow/logger"
	"churnflow/models"
)

const pageSize = 100

// Plan mix roughly matching a broadband subscriber base: most customers sit
// on the mid tier.
var planMix = []struct {
	id    string
	price float64
	prob  float64
}{
	{"basic", 499, 0.35},
	{"standard", 799, 0.40},
	{"premium", 1299, 0.25},
}

type Generator struct {
	config   *appconfig.Config
	channels *channel.Channels
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	rng    *rand.Rand
	cohort []models.RawFeatureSample
}

func NewGenerator(cfg *appconfig.Config, ch *channel.Channels) *Generator {
	return &Generator{
		config:   cfg,
		channels: ch,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

func (g *Generator) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return fmt.Errorf("synthetic generator already running")
	}
	g.running = true
	g.ctx = ctx
	g.mu.Unlock()

	log := g.log.WithComponent("synthetic_scan_reader").WithFields(logger.Fields{"operation": "start"})

	synCfg := g.config.Source.Synthetic
	if !synCfg.Enabled {
		log.Warn("synthetic source is disabled")
		return fmt.Errorf("synthetic source is disabled")
	}
	if synCfg.Customers <= 0 {
		return fmt.Errorf("synthetic source has no customers configured")
	}

	g.rng = rand.New(rand.NewSource(synCfg.Seed))
	g.cohort = g.generateCohort(synCfg.Customers, synCfg.ChurnRate)

	log.WithFields(logger.Fields{
		"customers":  synCfg.Customers,
		"seed":       synCfg.Seed,
		"churn_rate": synCfg.ChurnRate,
	}).Info("synthetic cohort generated")

	g.wg.Add(1)
	go g.emitLoop(synCfg)

	log.Info("synthetic generator started successfully")
	return nil
}

func (g *Generator) Stop() {
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()

	g.log.WithComponent("synthetic_scan_reader").Info("stopping synthetic generator")
	g.wg.Wait()
	g.log.WithComponent("synthetic_scan_reader").Info("synthetic generator stopped")
}

// emitLoop replays the cohort as one full scan per interval, paged like a
// real CRM export.
func (g *Generator) emitLoop(synCfg appconfig.SyntheticSourceConfig) {
	defer g.wg.Done()

	log := g.log.WithComponent("synthetic_scan_reader")

	interval := time.Duration(synCfg.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First scan immediately so the pipeline has data on startup.
	g.emitScan()

	for {
		select {
		case <-g.ctx.Done():
			log.Info("generator stopped due to context cancellation")
			return
		case <-ticker.C:
			g.emitScan()
		}
	}
}

func (g *Generator) emitScan() {
	log := g.log.WithComponent("synthetic_scan_reader")

	scanID := uuid.New().String()
	start := time.Now()
	pages := 0

	for offset := 0; offset < len(g.cohort); offset += pageSize {
		end := offset + pageSize
		if end > len(g.cohort) {
			end = len(g.cohort)
		}

		page := models.ScanPage{
			ScanID:  scanID,
			Segment: "synthetic",
			Samples: g.cohort[offset:end],
		}

		payload, err := json.Marshal(page)
		if err != nil {
			metrics.IncrementScanError("synthetic")
			log.WithError(err).Warn("failed to marshal scan page")
			return
		}

		rawData := models.RawSampleMessage{
			Source:      "synthetic",
			Segment:     "synthetic",
			Data:        payload,
			Timestamp:   time.Now().UTC(),
			MessageType: models.MessageTypeScanPage,
		}

		if g.channels.SendSample(g.ctx, rawData) {
			logger.IncrementScanRead(len(payload))
		} else if g.ctx.Err() != nil {
			return
		} else {
			metrics.EmitDropMetric(g.log, metrics.DropMetricSampleRaw, "synthetic", "synthetic", "scan_emit")
			log.Warn("sample channel is full, dropping page")
		}
		pages++
	}

	logger.LogPerformanceEntry(log, "synthetic_scan_reader", "emit_scan", time.Since(start), logger.Fields{
		"scan_id":   scanID,
		"pages":     pages,
		"customers": len(g.cohort),
	})
}

// generateCohort builds the customer population. Distributions follow what a
// broadband subscriber base actually looks like: usage trends slightly down
// on average, payment failures rare, engagement long-tailed. A churnRate
// fraction of the cohort is skewed toward risky signals so scans always
// surface an at-risk population.
func (g *Generator) generateCohort(customers int, churnRate float64) []models.RawFeatureSample {
	cohort := make([]models.RawFeatureSample, 0, customers)

	for i := 1; i <= customers; i++ {
		plan := g.pickPlan()
		atRisk := g.rng.Float64() < churnRate

		usageChange := clampF(g.rng.NormFloat64()*15-2, -50, 30)
		daysSinceLogin := clampI(int(g.rng.ExpFloat64()*7), 0, 90)
		paymentFailures := clampI(g.poisson(0.3), 0, 5)
		supportTickets := clampI(g.poisson(1.2), 0, 15)
		nps := g.pickNPS()
		contractAge := clampI(int(g.rng.ExpFloat64()*18), 1, 60)

		if atRisk {
			usageChange = clampF(usageChange-25, -50, 30)
			daysSinceLogin = clampI(daysSinceLogin+20, 0, 90)
			paymentFailures = clampI(paymentFailures+1, 0, 5)
			supportTickets = clampI(supportTickets+3, 0, 15)
			nps = clampI(nps-4, 0, 10)
			contractAge = clampI(contractAge/3, 1, 60)
		}

		usageChange = math.Round(usageChange*100) / 100
		avgUsage := math.Round(clampF(plan.price/2+g.rng.NormFloat64()*50, 10, 2000)*100) / 100

		cohort = append(cohort, models.RawFeatureSample{
			CustomerID:          fmt.Sprintf("CUST_%06d", i),
			UsageChangePercent:  &usageChange,
			DaysSinceLastLogin:  &daysSinceLogin,
			PaymentFailureCount: &paymentFailures,
			SupportTicketCount:  &supportTickets,
			NPSScore:            &nps,
			ContractAgeMonths:   &contractAge,
			PlanID:              plan.id,
			PlanPrice:           &plan.price,
			AvgMonthlyUsageGB:   &avgUsage,
		})
	}

	return cohort
}

func (g *Generator) pickPlan() struct {
	id    string
	price float64
	prob  float64
} {
	r := g.rng.Float64()
	cum := 0.0
	for _, p := range planMix {
		cum += p.prob
		if r < cum {
			return p
		}
	}
	return planMix[len(planMix)-1]
}

// pickNPS draws from a distribution centered around 6-8, matching survey
// response patterns.
func (g *Generator) pickNPS() int {
	weights := []float64{0.02, 0.02, 0.03, 0.05, 0.08, 0.15, 0.15, 0.18, 0.15, 0.10, 0.07}
	r := g.rng.Float64()
	cum := 0.0
	for score, w := range weights {
		cum += w
		if r < cum {
			return score
		}
	}
	return 10
}

// poisson draws a Poisson variate via Knuth's method; fine for the small
// lambdas used here.
func (g *Generator) poisson(lambda float64) int {
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= g.rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

func clampF(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampI(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
