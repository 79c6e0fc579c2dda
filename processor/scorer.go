package processor

import (
	"context"
	"encoding/json"
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

// Scorer runs the churn evaluation worker pool. Workers pull raw sample
// messages from the readers, score every customer through the engine and
// batch the assessments per source/segment before handing them to the
// cohort aggregator.
type Scorer struct {
	config   *appconfig.Config
	engine   *engine.Engine
	channels *channel.Channels
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	// Batching
	batches   map[string]*models.AssessmentBatch
	lastFlush map[string]time.Time

	// Metrics
	messagesProcessed int64
	batchesProcessed  int64
	customersScored   int64
	warningsCount     int64
	errorsCount       int64
}

func NewScorer(cfg *appconfig.Config, eng *engine.Engine, channels *channel.Channels) *Scorer {
	return &Scorer{
		config:    cfg,
		engine:    eng,
		channels:  channels,
		wg:        &sync.WaitGroup{},
		log:       logger.GetLogger(),
		batches:   make(map[string]*models.AssessmentBatch),
		lastFlush: make(map[string]time.Time),
	}
}

func (s *Scorer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scorer already running")
	}
	s.running = true
	s.ctx = ctx
	s.mu.Unlock()

	log := s.log.WithComponent("scorer").WithFields(logger.Fields{"operation": "start"})
	log.Info("starting scorer")

	numWorkers := s.config.Scorer.MaxWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}

	log.WithFields(logger.Fields{
		"workers":        numWorkers,
		"engine_version": s.engine.ConfigVersion(),
	}).Info("starting scorer workers")

	for i := 0; i < numWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	// Start batch flusher
	s.wg.Add(1)
	go s.batchFlusher()

	// Start metrics reporter
	go s.metricsReporter(ctx)

	log.Info("scorer started successfully")
	return nil
}

func (s *Scorer) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.log.WithComponent("scorer").Info("stopping scorer")

	// Flush remaining batches
	s.flushAllBatches()

	s.wg.Wait()
	s.log.WithComponent("scorer").Info("scorer stopped")
}

func (s *Scorer) worker(workerID int) {
	defer s.wg.Done()

	log := s.log.WithComponent("scorer").WithFields(logger.Fields{
		"worker_id": workerID,
		"worker":    "scorer",
	})

	log.Info("starting scorer worker")

	for {
		select {
		case <-s.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case rawMsg, ok := <-s.channels.Samples:
			if !ok {
				log.Info("sample channel closed, worker stopping")
				return
			}

			start := time.Now()
			scored := s.handleMessage(rawMsg)
			duration := time.Since(start)

			s.mu.Lock()
			s.messagesProcessed++
			s.customersScored += int64(scored)
			s.mu.Unlock()
			logger.AddCustomersScored(scored)

			logger.LogPerformanceEntry(log, "scorer", "process_message", duration, logger.Fields{
				"worker_id":        workerID,
				"source":           rawMsg.Source,
				"segment":          rawMsg.Segment,
				"customers_scored": scored,
				"message_type":     rawMsg.MessageType,
			})
		}
	}
}

func (s *Scorer) handleMessage(rawMsg models.RawSampleMessage) int {
	log := s.log.WithComponent("scorer").WithFields(logger.Fields{
		"source":       rawMsg.Source,
		"segment":      rawMsg.Segment,
		"message_type": rawMsg.MessageType,
		"timestamp":    rawMsg.Timestamp,
		"operation":    "process_message",
	})

	switch rawMsg.MessageType {
	case models.MessageTypeScanPage:
		var page models.ScanPage
		if err := json.Unmarshal(rawMsg.Data, &page); err != nil {
			s.recordError()
			metrics.IncrementScanError(rawMsg.Source)
			log.WithError(err).Warn("failed to unmarshal scan page")
			return 0
		}
		if len(page.Samples) == 0 {
			log.Warn("scan page carries no samples")
			return 0
		}

		assessments := s.scoreSamples(rawMsg, page.Samples)
		s.addToBatch(rawMsg, assessments)

		log.WithFields(logger.Fields{
			"scan_id":       page.ScanID,
			"samples_count": len(page.Samples),
		}).Info("scan page scored")
		logger.LogDataFlowEntry(log, "sample_channel", "assessment_channel", len(assessments), "assessments")
		return len(assessments)

	case models.MessageTypeActivity:
		var event models.ActivityEvent
		if err := json.Unmarshal(rawMsg.Data, &event); err != nil {
			s.recordError()
			metrics.IncrementScanError(rawMsg.Source)
			log.WithError(err).Warn("failed to unmarshal activity event")
			return 0
		}
		if event.Customer.CustomerID == "" {
			log.Warn("activity event without customer id")
			return 0
		}

		assessments := s.scoreSamples(rawMsg, []models.RawFeatureSample{event.Customer})
		s.addToBatch(rawMsg, assessments)

		log.WithFields(logger.Fields{
			"event_type":  event.Type,
			"customer_id": event.Customer.CustomerID,
		}).Debug("activity event scored")
		return len(assessments)

	default:
		s.recordError()
		log.Warn("unknown message type")
		return 0
	}
}

func (s *Scorer) scoreSamples(rawMsg models.RawSampleMessage, samples []models.RawFeatureSample) []models.ChurnAssessment {
	assessments := make([]models.ChurnAssessment, 0, len(samples))

	for _, sample := range samples {
		assessment, warnings := s.engine.ScoreCustomer(sample)
		if len(warnings) > 0 {
			s.mu.Lock()
			s.warningsCount += int64(len(warnings))
			s.mu.Unlock()
			s.log.WithComponent("scorer").WithFields(logger.Fields{
				"customer_id": sample.CustomerID,
				"warnings":    warningStrings(warnings),
			}).Debug("input substitutions applied")
		}
		metrics.IncrementScored(rawMsg.Segment)
		assessments = append(assessments, assessment)
	}

	return assessments
}

func warningStrings(warnings []engine.Warning) []string {
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.String()
	}
	return out
}

func (s *Scorer) recordError() {
	s.mu.Lock()
	s.errorsCount++
	s.mu.Unlock()
}

func (s *Scorer) addToBatch(rawMsg models.RawSampleMessage, assessments []models.ChurnAssessment) {
	if len(assessments) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKey := fmt.Sprintf("%s_%s", rawMsg.Source, rawMsg.Segment)

	batch, exists := s.batches[batchKey]
	if !exists {
		batch = &models.AssessmentBatch{
			BatchID:     uuid.New().String(),
			Source:      rawMsg.Source,
			Segment:     rawMsg.Segment,
			Assessments: make([]models.ChurnAssessment, 0, s.config.Scorer.BatchSize),
			RecordCount: 0,
			Timestamp:   rawMsg.Timestamp,
			ProcessedAt: time.Now(),
		}
		s.batches[batchKey] = batch
		s.lastFlush[batchKey] = time.Now()
	}

	batch.Assessments = append(batch.Assessments, assessments...)
	batch.RecordCount = len(batch.Assessments)

	// Update batch timestamp to latest message
	if rawMsg.Timestamp.After(batch.Timestamp) {
		batch.Timestamp = rawMsg.Timestamp
	}

	if batch.RecordCount >= s.config.Scorer.BatchSize {
		s.flushBatch(batchKey)
	}
}

func (s *Scorer) batchFlusher() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.flushTimedOutBatches()
		}
	}
}

func (s *Scorer) flushTimedOutBatches() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for batchKey, lastFlush := range s.lastFlush {
		if now.Sub(lastFlush) >= s.config.Scorer.BatchTimeout {
			s.flushBatch(batchKey)
		}
	}
}

// flushBatch hands one batch to the aggregator. Callers must hold s.mu.
func (s *Scorer) flushBatch(batchKey string) {
	batch, exists := s.batches[batchKey]
	if !exists || batch.RecordCount == 0 {
		return
	}

	log := s.log.WithComponent("scorer").WithFields(logger.Fields{
		"batch_id":     batch.BatchID,
		"batch_key":    batchKey,
		"source":       batch.Source,
		"segment":      batch.Segment,
		"record_count": batch.RecordCount,
		"operation":    "flush_batch",
	})

	if s.channels.SendAssessments(s.ctx, *batch) {
		s.batchesProcessed++
		delete(s.batches, batchKey)
		delete(s.lastFlush, batchKey)

		log.Info("batch flushed successfully")
		logger.LogDataFlowEntry(log, "scorer", "assessment_channel", batch.RecordCount, "batch")
		return
	}

	metrics.EmitDropMetric(s.log, metrics.DropMetricAssessment, batch.Source, batch.Segment, "scorer_flush")
	log.Warn("assessment channel is full, batch not sent")
}

func (s *Scorer) flushAllBatches() {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.WithComponent("scorer").WithFields(logger.Fields{"operation": "flush_all_batches"})
	log.Info("flushing all remaining batches")

	for batchKey := range s.batches {
		s.flushBatch(batchKey)
	}

	log.WithFields(logger.Fields{"remaining_batches": len(s.batches)}).Info("all batches flushed")
}

func (s *Scorer) metricsReporter(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reportMetrics()
		}
	}
}

func (s *Scorer) reportMetrics() {
	s.mu.RLock()
	stats := metrics.ScorerStats{
		MessagesProcessed: s.messagesProcessed,
		BatchesProcessed:  s.batchesProcessed,
		CustomersScored:   s.customersScored,
		WarningsCount:     s.warningsCount,
		ErrorsCount:       s.errorsCount,
		ActiveBatches:     len(s.batches),
		SampleChannelLen:  len(s.channels.Samples),
		SampleChannelCap:  cap(s.channels.Samples),
		BatchChannelLen:   len(s.channels.Assessments),
		BatchChannelCap:   cap(s.channels.Assessments),
	}
	s.mu.RUnlock()

	metrics.ReportScorerStats(s.log, stats)
}
