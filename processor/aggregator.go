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
	"churnflow/models"
)

// Aggregator folds assessment batches into a per-window risk summary. At the
// end of every scan window it stamps the merged tally with a fresh scan ID
// and hands it to the pricing adjuster. Windows that saw no customers are
// skipped; an empty snapshot says nothing about the population.
type Aggregator struct {
	config   *appconfig.Config
	channels *channel.Channels
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	// Current window tally, merged incrementally per batch.
	window models.RiskSummarySnapshot

	// Metrics
	batchesMerged     int64
	snapshotsEmitted  int64
	customersIncluded int64
}

func NewAggregator(cfg *appconfig.Config, channels *channel.Channels) *Aggregator {
	return &Aggregator{
		config:   cfg,
		channels: channels,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("aggregator already running")
	}
	a.running = true
	a.ctx = ctx
	a.mu.Unlock()

	log := a.log.WithComponent("aggregator").WithFields(logger.Fields{"operation": "start"})
	log.WithFields(logger.Fields{"scan_window": a.config.Scorer.ScanWindow.String()}).Info("starting aggregator")

	a.wg.Add(1)
	go a.run()

	go a.metricsReporter(ctx)

	log.Info("aggregator started successfully")
	return nil
}

func (a *Aggregator) Stop() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	a.log.WithComponent("aggregator").Info("stopping aggregator")

	// Emit whatever the current window holds so a shutdown never loses a
	// partially aggregated population.
	a.emitWindow()

	a.wg.Wait()
	a.log.WithComponent("aggregator").Info("aggregator stopped")
}

func (a *Aggregator) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.Scorer.ScanWindow)
	defer ticker.Stop()

	log := a.log.WithComponent("aggregator")

	for {
		select {
		case <-a.ctx.Done():
			log.Info("aggregator stopped due to context cancellation")
			return
		case batch, ok := <-a.channels.Assessments:
			if !ok {
				log.Info("assessment channel closed, aggregator stopping")
				return
			}
			a.mergeBatch(batch)
		case <-ticker.C:
			a.emitWindow()
		}
	}
}

func (a *Aggregator) mergeBatch(batch models.AssessmentBatch) {
	tally := engine.Aggregate(batch.Assessments)

	a.mu.Lock()
	a.window = engine.MergeSnapshots(a.window, tally)
	a.batchesMerged++
	a.customersIncluded += int64(tally.Total)
	windowTotal := a.window.Total
	a.mu.Unlock()

	a.log.WithComponent("aggregator").WithFields(logger.Fields{
		"batch_id":     batch.BatchID,
		"source":       batch.Source,
		"segment":      batch.Segment,
		"batch_total":  tally.Total,
		"window_total": windowTotal,
	}).Debug("assessment batch merged into window")
}

func (a *Aggregator) emitWindow() {
	a.mu.Lock()
	if a.window.Total == 0 {
		a.mu.Unlock()
		return
	}
	snapshot := a.window
	a.window = models.RiskSummarySnapshot{}
	a.mu.Unlock()

	snapshot.ScanID = uuid.New().String()
	snapshot.GeneratedAt = time.Now().UTC()

	log := a.log.WithComponent("aggregator").WithFields(logger.Fields{
		"scan_id":     snapshot.ScanID,
		"high_risk":   snapshot.HighRisk,
		"medium_risk": snapshot.MediumRisk,
		"low_risk":    snapshot.LowRisk,
		"total":       snapshot.Total,
		"operation":   "emit_window",
	})

	if a.channels.SendSnapshot(a.ctx, snapshot) {
		a.mu.Lock()
		a.snapshotsEmitted++
		a.mu.Unlock()
		log.Info("risk summary snapshot emitted")
		logger.LogDataFlowEntry(log, "aggregator", "snapshot_channel", snapshot.Total, "risk_snapshot")
		return
	}

	// The window was already reset; merge the tally back rather than lose it.
	a.mu.Lock()
	snapshot.ScanID = ""
	snapshot.GeneratedAt = time.Time{}
	a.window = engine.MergeSnapshots(a.window, snapshot)
	a.mu.Unlock()

	metrics.EmitDropMetric(a.log, metrics.DropMetricSnapshot, "", "", "aggregator_emit")
	log.Warn("snapshot channel is full, window retained for next tick")
}

func (a *Aggregator) metricsReporter(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.reportMetrics()
		}
	}
}

func (a *Aggregator) reportMetrics() {
	a.mu.RLock()
	stats := metrics.AggregatorStats{
		BatchesMerged:     a.batchesMerged,
		SnapshotsEmitted:  a.snapshotsEmitted,
		CustomersIncluded: a.customersIncluded,
		WindowHighRisk:    a.window.HighRisk,
		WindowMediumRisk:  a.window.MediumRisk,
		WindowLowRisk:     a.window.LowRisk,
	}
	a.mu.RUnlock()

	metrics.ReportAggregatorStats(a.log, stats)
}
