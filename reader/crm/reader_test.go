package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	appconfig "churnflow/config"
	"churnflow/internal/channel"
	"churnflow/models"
)

func testConfig(url string) *appconfig.Config {
	return &appconfig.Config{
		Reader: appconfig.ReaderConfig{
			Timeout: 5 * time.Second,
			RateLimit: appconfig.RateLimitConfig{
				RequestsPerSecond: 100,
				BurstSize:         10,
			},
			Retry: appconfig.RetryConfig{
				MaxAttempts:       3,
				BaseDelay:         time.Millisecond,
				MaxDelay:          10 * time.Millisecond,
				BackoffMultiplier: 2,
			},
		},
		Source: appconfig.SourceConfig{
			CRM: appconfig.CRMSourceConfig{
				Enabled:        true,
				URL:            url,
				Segments:       []string{"consumer"},
				PageSize:       2,
				ScanIntervalMs: 60000,
				ConnectionPool: appconfig.ConnectionPoolConfig{
					MaxIdleConns:    2,
					MaxConnsPerHost: 2,
					IdleConnTimeout: time.Second,
				},
			},
		},
	}
}

func samplePage(scanID, segment string, ids ...string) models.ScanPage {
	page := models.ScanPage{ScanID: scanID, Segment: segment}
	for _, id := range ids {
		page.Samples = append(page.Samples, models.RawFeatureSample{CustomerID: id})
	}
	return page
}

func TestScanSegmentPagesUntilShortPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		page, _ := strconv.Atoi(req.URL.Query().Get("page"))
		segment := req.URL.Query().Get("segment")
		var body models.ScanPage
		switch page {
		case 1:
			body = samplePage("scan-1", segment, "CUST-1", "CUST-2")
		case 2:
			body = samplePage("scan-1", segment, "CUST-3")
		default:
			t.Errorf("unexpected page request %d", page)
		}
		json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	ch := channel.NewChannels(10, 1, 1, 1)
	r := NewReader(cfg, ch)
	r.ctx = context.Background()

	r.scanSegment("consumer", cfg.Source.CRM)

	var messages []models.RawSampleMessage
	for {
		select {
		case msg := <-ch.Samples:
			messages = append(messages, msg)
			continue
		default:
		}
		break
	}

	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(messages))
	}
	for _, msg := range messages {
		if msg.Source != "crm" || msg.Segment != "consumer" || msg.MessageType != models.MessageTypeScanPage {
			t.Fatalf("message = %+v", msg)
		}
	}

	var first models.ScanPage
	if err := json.Unmarshal(messages[0].Data, &first); err != nil {
		t.Fatalf("unmarshal first page: %v", err)
	}
	if len(first.Samples) != 2 || first.Samples[0].CustomerID != "CUST-1" {
		t.Fatalf("first page = %+v", first)
	}
}

func TestFetchPageRetriesOnServerError(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(samplePage("scan-1", "consumer", "CUST-1"))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	r := NewReader(cfg, channel.NewChannels(1, 1, 1, 1))
	r.ctx = context.Background()

	payload, count, err := r.fetchPage("consumer", 1, cfg.Source.CRM)
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if count != 1 {
		t.Fatalf("sample count = %d, want 1", count)
	}
	if len(payload) == 0 {
		t.Fatal("expected payload")
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Fatalf("server calls = %d, want 2", got)
	}
}

func TestFetchPageGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	r := NewReader(cfg, channel.NewChannels(1, 1, 1, 1))
	r.ctx = context.Background()

	if _, _, err := r.fetchPage("consumer", 1, cfg.Source.CRM); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Fatalf("server calls = %d, want 3", got)
	}
}

func TestStartRequiresEnabledSource(t *testing.T) {
	cfg := testConfig("http://localhost:0")
	cfg.Source.CRM.Enabled = false
	r := NewReader(cfg, channel.NewChannels(1, 1, 1, 1))
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected error for disabled source")
	}
}
