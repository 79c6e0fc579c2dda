package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	appconfig "churnflow/config"
	"churnflow/engine"
	"churnflow/internal/channel"
	"churnflow/internal/metrics"
	"churnflow/logger"
)

// Adjuster turns each risk summary snapshot into a pricing proposal set
// using the engine and the plan catalog. Proposals are advisory: the set is
// stamped and forwarded to the writers, never applied to any billing system
// from here.
type Adjuster struct {
	config   *appconfig.Config
	engine   *engine.Engine
	catalog  *appconfig.PlanCatalog
	channels *channel.Channels
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	// Metrics
	snapshotsProcessed int64
	proposalsEmitted   int64
	errorsCount        int64
}

func NewAdjuster(cfg *appconfig.Config, eng *engine.Engine, catalog *appconfig.PlanCatalog, channels *channel.Channels) *Adjuster {
	return &Adjuster{
		config:   cfg,
		engine:   eng,
		catalog:  catalog,
		channels: channels,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

func (p *Adjuster) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("adjuster already running")
	}
	p.running = true
	p.ctx = ctx
	p.mu.Unlock()

	log := p.log.WithComponent("adjuster").WithFields(logger.Fields{"operation": "start"})
	log.WithFields(logger.Fields{"plans": len(p.catalog.Plans)}).Info("starting pricing adjuster")

	p.wg.Add(1)
	go p.run()

	log.Info("pricing adjuster started successfully")
	return nil
}

func (p *Adjuster) Stop() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.log.WithComponent("adjuster").Info("stopping pricing adjuster")
	p.wg.Wait()
	p.log.WithComponent("adjuster").Info("pricing adjuster stopped")
}

func (p *Adjuster) run() {
	defer p.wg.Done()

	log := p.log.WithComponent("adjuster")
	basePrices := p.catalog.BasePrices()
	subscribers := p.catalog.SubscriberCounts()

	for {
		select {
		case <-p.ctx.Done():
			log.Info("adjuster stopped due to context cancellation")
			return
		case snapshot, ok := <-p.channels.Snapshots:
			if !ok {
				log.Info("snapshot channel closed, adjuster stopping")
				return
			}

			start := time.Now()
			p.mu.Lock()
			p.snapshotsProcessed++
			p.mu.Unlock()

			set, err := p.engine.ProposePricing(snapshot, basePrices)
			if err != nil {
				p.mu.Lock()
				p.errorsCount++
				p.mu.Unlock()
				log.WithError(err).WithFields(logger.Fields{
					"scan_id": snapshot.ScanID,
				}).Error("pricing proposal failed")
				continue
			}

			set.ProposalID = uuid.New().String()
			set.GeneratedAt = time.Now().UTC()

			projection := engine.ProjectRevenue(set, subscribers)

			entry := log.WithFields(logger.Fields{
				"proposal_id":            set.ProposalID,
				"scan_id":                set.ScanID,
				"high_risk":              snapshot.HighRisk,
				"total":                  snapshot.Total,
				"revenue_change":         projection.RevenueChange,
				"revenue_change_percent": projection.RevenueChangePercent,
				"avg_price_change_pct":   projection.AvgPriceChangePct,
			})

			if p.channels.SendProposals(p.ctx, set) {
				p.mu.Lock()
				p.proposalsEmitted++
				p.mu.Unlock()
				metrics.IncrementProposalSet()
				entry.Info("pricing proposal set emitted")
			} else {
				metrics.EmitDropMetric(p.log, metrics.DropMetricProposal, "", "", "adjuster_emit")
				entry.Warn("proposal channel is full, proposal set dropped")
			}

			logger.LogPerformanceEntry(log, "adjuster", "propose_pricing", time.Since(start), logger.Fields{
				"scan_id": snapshot.ScanID,
			})
		}
	}
}
