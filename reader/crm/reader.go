// Package crm polls the CRM export API during scheduled population scans and
// feeds raw scan pages into the sample channel.
package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	appconfig "churnflow/config"
	"churnflow/internal/channel"
	"churnflow/internal/metrics"
	"churnflow/logger"
	"churnflow/models"
)

// Reader pages through the customer base segment by segment. Each segment
// gets its own worker aligned to the scan interval; pages are fetched under a
// shared rate limit so a wide scan never saturates the CRM API.
type Reader struct {
	config   *appconfig.Config
	client   *http.Client
	channels *channel.Channels
	limiter  *rate.Limiter
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
	segments []string
}

func NewReader(cfg *appconfig.Config, ch *channel.Channels) *Reader {
	log := logger.GetLogger()

	pool := cfg.Source.CRM.ConnectionPool
	transport := &http.Transport{
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxIdleConns,
		MaxConnsPerHost:     pool.MaxConnsPerHost,
		IdleConnTimeout:     pool.IdleConnTimeout,
		DisableCompression:  false,
	}

	rps := cfg.Reader.RateLimit.RequestsPerSecond
	if rps < 1 {
		rps = 1
	}
	burst := cfg.Reader.RateLimit.BurstSize
	if burst < 1 {
		burst = 1
	}

	reader := &Reader{
		config: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Reader.Timeout,
		},
		channels: ch,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		wg:       &sync.WaitGroup{},
		log:      log,
		segments: cfg.Source.CRM.Segments,
	}

	log.WithComponent("crm_scan_reader").WithFields(logger.Fields{
		"max_idle_conns":      pool.MaxIdleConns,
		"max_conns_per_host":  pool.MaxConnsPerHost,
		"timeout":             cfg.Reader.Timeout,
		"requests_per_second": rps,
	}).Info("crm reader initialized")

	return reader
}

// Start launches one scan worker per configured segment.
func (r *Reader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("crm reader already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	log := r.log.WithComponent("crm_scan_reader").WithFields(logger.Fields{"operation": "start"})

	crmCfg := r.config.Source.CRM
	if !crmCfg.Enabled {
		log.Warn("crm scan source is disabled")
		return fmt.Errorf("crm scan source is disabled")
	}
	if len(r.segments) == 0 {
		return fmt.Errorf("crm scan source has no segments configured")
	}

	log.WithFields(logger.Fields{
		"segments": r.segments,
		"interval": crmCfg.ScanIntervalMs,
	}).Info("starting crm reader")

	for _, segment := range r.segments {
		r.wg.Add(1)
		go r.scanWorker(segment, crmCfg)
	}

	log.Info("crm reader started successfully")
	return nil
}

// Stop signals all workers to stop and waits for completion.
func (r *Reader) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("crm_scan_reader").Info("stopping crm reader")
	r.wg.Wait()
	r.log.WithComponent("crm_scan_reader").Info("crm reader stopped")
}

func (r *Reader) scanWorker(segment string, crmCfg appconfig.CRMSourceConfig) {
	defer r.wg.Done()

	log := r.log.WithComponent("crm_scan_reader").WithFields(logger.Fields{
		"segment": segment,
		"worker":  "scan_fetcher",
	})

	log.Info("starting scan worker")

	interval := time.Duration(crmCfg.ScanIntervalMs) * time.Millisecond

	now := time.Now()
	nextTick := now.Truncate(interval).Add(interval)
	timer := time.NewTimer(nextTick.Sub(now))
	defer timer.Stop()

	for {
		select {
		case <-r.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case <-timer.C:
			start := time.Now()
			r.scanSegment(segment, crmCfg)
			duration := time.Since(start)

			if duration > interval {
				log.WithFields(logger.Fields{
					"duration": duration.Milliseconds(),
					"interval": crmCfg.ScanIntervalMs,
				}).Warn("scan took longer than interval")
			}

			nextTick = start.Truncate(interval).Add(interval)
			timer.Reset(time.Until(nextTick))
		}
	}
}

// scanSegment pages through one segment until a short page signals the end of
// the population.
func (r *Reader) scanSegment(segment string, crmCfg appconfig.CRMSourceConfig) {
	log := r.log.WithComponent("crm_scan_reader").WithFields(logger.Fields{
		"segment":   segment,
		"operation": "scan_segment",
	})

	start := time.Now()
	pages := 0
	customers := 0

	for page := 1; ; page++ {
		if err := r.limiter.Wait(r.ctx); err != nil {
			return
		}

		payload, sampleCount, err := r.fetchPage(segment, page, crmCfg)
		if err != nil {
			metrics.IncrementScanError("crm")
			log.WithError(err).WithFields(logger.Fields{"page": page}).Warn("failed to fetch scan page")
			return
		}

		rawData := models.RawSampleMessage{
			Source:      "crm",
			Segment:     segment,
			Data:        payload,
			Timestamp:   time.Now().UTC(),
			MessageType: models.MessageTypeScanPage,
		}

		if r.channels.SendSample(r.ctx, rawData) {
			logger.IncrementScanRead(len(payload))
			logger.LogDataFlowEntry(log, "crm_api", "sample_channel", sampleCount, "feature_samples")
		} else if r.ctx.Err() != nil {
			return
		} else {
			metrics.EmitDropMetric(r.log, metrics.DropMetricSampleRaw, "crm", segment, "scan_fetch")
			log.Warn("sample channel is full, dropping page")
		}

		pages++
		customers += sampleCount
		if sampleCount < crmCfg.PageSize {
			break
		}
	}

	logger.LogPerformanceEntry(log, "crm_scan_reader", "scan_segment", time.Since(start), logger.Fields{
		"pages":     pages,
		"customers": customers,
	})
}

// fetchPage requests one export page with retry and exponential backoff.
func (r *Reader) fetchPage(segment string, page int, crmCfg appconfig.CRMSourceConfig) ([]byte, int, error) {
	retryCfg := r.config.Reader.Retry
	attempts := retryCfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := retryCfg.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			logger.IncrementRetryCount()
			select {
			case <-time.After(delay):
			case <-r.ctx.Done():
				return nil, 0, r.ctx.Err()
			}
			delay *= time.Duration(retryCfg.BackoffMultiplier)
			if retryCfg.MaxDelay > 0 && delay > retryCfg.MaxDelay {
				delay = retryCfg.MaxDelay
			}
		}

		payload, sampleCount, err := r.doFetchPage(segment, page, crmCfg)
		if err == nil {
			return payload, sampleCount, nil
		}
		lastErr = err
	}

	return nil, 0, lastErr
}

func (r *Reader) doFetchPage(segment string, page int, crmCfg appconfig.CRMSourceConfig) ([]byte, int, error) {
	reqURL := fmt.Sprintf("%s?segment=%s&page=%d&page_size=%d", crmCfg.URL, segment, page, crmCfg.PageSize)
	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	logger.LogPerformanceEntry(r.log.WithComponent("crm_scan_reader"), "crm_scan_reader", "api_request", time.Since(start), logger.Fields{
		"segment": segment,
		"page":    page,
	})

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var pageBody models.ScanPage
	if err := json.NewDecoder(resp.Body).Decode(&pageBody); err != nil {
		return nil, 0, fmt.Errorf("decode page: %w", err)
	}
	if pageBody.Segment == "" {
		pageBody.Segment = segment
	}

	payload, err := json.Marshal(pageBody)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal page: %w", err)
	}

	return payload, len(pageBody.Samples), nil
}
