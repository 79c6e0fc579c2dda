package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "churnflow/config"
	"churnflow/internal/metadata"
	"churnflow/internal/metrics"
	"churnflow/logger"
	"churnflow/models"
)

// ProposalRecord is the parquet row layout for pricing proposal reports. One
// row per plan tier per proposal set; the snapshot tallies repeat on every
// row so each file is self-describing.
type ProposalRecord struct {
	ProposalID    string  `parquet:"name=proposal_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ScanID        string  `parquet:"name=scan_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	PlanID        string  `parquet:"name=plan_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	BasePrice     float64 `parquet:"name=base_price, type=DOUBLE"`
	ProposedPrice float64 `parquet:"name=proposed_price, type=DOUBLE"`
	PercentChange float64 `parquet:"name=percent_change, type=DOUBLE"`
	Rationale     string  `parquet:"name=rationale, type=BYTE_ARRAY, convertedtype=UTF8"`
	HighRisk      int32   `parquet:"name=high_risk, type=INT32"`
	MediumRisk    int32   `parquet:"name=medium_risk, type=INT32"`
	LowRisk       int32   `parquet:"name=low_risk, type=INT32"`
	Total         int32   `parquet:"name=total, type=INT32"`
	GeneratedAt   int64   `parquet:"name=generated_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

// memoryFileWriter implements the ParquetFile interface for in-memory writing.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) { return mfw, nil }
func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error)   { return mfw, nil }
func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}
func (mfw *memoryFileWriter) Read(b []byte) (int, error)  { return mfw.buffer.Read(b) }
func (mfw *memoryFileWriter) Write(b []byte) (int, error) { return mfw.buffer.Write(b) }
func (mfw *memoryFileWriter) Close() error                { return nil }
func (mfw *memoryFileWriter) Bytes() []byte               { return mfw.buffer.Bytes() }

// ReportWriter buffers pricing proposal sets and periodically writes them to
// S3 as parquet report files. Every upload is registered with the table
// metadata generator so the reports remain queryable as a table.
type ReportWriter struct {
	config       *appconfig.Config
	proposalChan <-chan models.PricingProposalSet
	s3Client     *s3.Client
	ctx          context.Context
	wg           *sync.WaitGroup
	mu           sync.RWMutex
	running      bool
	log          *logger.Log
	buffer       []models.PricingProposalSet
	flushTicker  *time.Ticker
	metaGen      *metadata.Generator

	// Metrics
	batchesWritten int64
	filesWritten   int64
	bytesWritten   int64
	errorsCount    int64
}

func NewReportWriter(cfg *appconfig.Config, proposalChan <-chan models.PricingProposalSet) (*ReportWriter, error) {
	log := logger.GetLogger()

	ctx := context.Background()

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("s3_report_writer").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	metaDir, err := os.MkdirTemp("", "report-metadata")
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}

	rw := &ReportWriter{
		config:       cfg,
		proposalChan: proposalChan,
		s3Client:     s3Client,
		wg:           &sync.WaitGroup{},
		log:          log,
		metaGen:      metadata.NewGenerator(metaDir, "pricing_proposals"),
	}

	log.WithComponent("s3_report_writer").WithFields(logger.Fields{
		"bucket":     cfg.Storage.S3.Bucket,
		"region":     cfg.Storage.S3.Region,
		"endpoint":   cfg.Storage.S3.Endpoint,
		"path_style": cfg.Storage.S3.PathStyle,
	}).Info("report writer initialized")

	return rw, nil
}

func (w *ReportWriter) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("report writer already running")
	}
	w.running = true
	w.ctx = ctx
	w.buffer = nil
	w.mu.Unlock()

	log := w.log.WithComponent("s3_report_writer").WithFields(logger.Fields{"operation": "start"})
	log.Info("starting report writer")

	flushInterval := w.config.Writer.Buffer.ProposalFlushInterval
	if flushInterval <= 0 {
		flushInterval = time.Minute
	}
	w.flushTicker = time.NewTicker(flushInterval)

	w.wg.Add(1)
	go w.worker()

	w.wg.Add(1)
	go w.flushWorker()

	go w.metricsReporter(ctx)

	log.Info("report writer started successfully")
	return nil
}

func (w *ReportWriter) Stop() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	w.log.WithComponent("s3_report_writer").Info("stopping report writer")
	w.wg.Wait()
	w.flush("shutdown")
	w.log.WithComponent("s3_report_writer").Info("report writer stopped")
}

func (w *ReportWriter) worker() {
	defer w.wg.Done()

	log := w.log.WithComponent("s3_report_writer").WithFields(logger.Fields{"worker": "buffer"})

	for {
		select {
		case <-w.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case set, ok := <-w.proposalChan:
			if !ok {
				log.Info("proposal channel closed, worker stopping")
				return
			}
			w.addSet(set)
		}
	}
}

func (w *ReportWriter) addSet(set models.PricingProposalSet) {
	w.mu.Lock()
	w.buffer = append(w.buffer, set)
	size := len(w.buffer)
	w.mu.Unlock()

	maxSize := w.config.Writer.Buffer.MaxSize
	if maxSize > 0 && size >= maxSize {
		w.flush("buffer_full")
	}
}

func (w *ReportWriter) flushWorker() {
	defer w.wg.Done()

	log := w.log.WithComponent("s3_report_writer").WithFields(logger.Fields{"worker": "flush"})
	log.Info("starting flush worker")

	for {
		select {
		case <-w.ctx.Done():
			log.Info("flush worker stopped due to context cancellation")
			return
		case <-w.flushTicker.C:
			w.flush("interval")
		}
	}
}

func (w *ReportWriter) flush(reason string) {
	w.mu.Lock()
	sets := w.buffer
	w.buffer = nil
	w.mu.Unlock()

	if len(sets) == 0 {
		return
	}

	log := w.log.WithComponent("s3_report_writer").WithFields(logger.Fields{
		"proposal_sets": len(sets),
		"reason":        reason,
		"operation":     "flush",
	})
	log.Info("flushing proposal reports")

	records := make([]ProposalRecord, 0, len(sets)*3)
	for _, set := range sets {
		for _, p := range set.Proposals {
			records = append(records, ProposalRecord{
				ProposalID:    set.ProposalID,
				ScanID:        set.ScanID,
				PlanID:        p.PlanID,
				BasePrice:     p.BasePrice,
				ProposedPrice: p.ProposedPrice,
				PercentChange: p.PercentChange,
				Rationale:     p.Rationale,
				HighRisk:      int32(set.Snapshot.HighRisk),
				MediumRisk:    int32(set.Snapshot.MediumRisk),
				LowRisk:       int32(set.Snapshot.LowRisk),
				Total:         int32(set.Snapshot.Total),
				GeneratedAt:   set.GeneratedAt.UnixMilli(),
			})
		}
	}

	now := time.Now().UTC()
	data, fileSize, err := w.createParquetFile(records)
	if err != nil {
		w.mu.Lock()
		w.errorsCount++
		w.mu.Unlock()
		log.WithError(err).Error("failed to create parquet file")
		return
	}

	s3Key := w.generateS3Key(now)
	if err := w.uploadToS3(s3Key, data); err != nil {
		w.mu.Lock()
		w.errorsCount++
		w.mu.Unlock()
		log.WithError(err).
			WithFields(logger.Fields{"bucket": w.config.Storage.S3.Bucket, "s3_key": s3Key}).
			Error("failed to upload to S3")
		return
	}

	w.mu.Lock()
	w.batchesWritten += int64(len(sets))
	w.filesWritten++
	w.bytesWritten += fileSize
	w.mu.Unlock()

	logger.IncrementS3ReportWrite(fileSize)

	log.WithFields(logger.Fields{
		"s3_key":    s3Key,
		"file_size": fileSize,
		"records":   len(records),
	}).Info("proposal report uploaded")

	df := metadata.DataFile{
		Path:        fmt.Sprintf("s3://%s/%s", w.config.Storage.S3.Bucket, s3Key),
		FileSize:    fileSize,
		RecordCount: int64(len(records)),
		Partition: map[string]any{
			"date": now.Format("2006-01-02"),
		},
		Timestamp: now,
	}
	if err := w.metaGen.AddFile(df); err != nil {
		log.WithError(err).Warn("failed to update report metadata")
	}
}

// generateS3Key builds the partitioned object key for a report file.
func (w *ReportWriter) generateS3Key(timestamp time.Time) string {
	var parts []string
	for _, k := range w.config.Writer.Partitioning.AdditionalKeys {
		if k == "service" {
			parts = append(parts, fmt.Sprintf("service=%s", w.config.Churnflow.Name))
		}
	}

	timeFormat := w.config.Writer.Partitioning.TimeFormat
	if timeFormat == "" {
		timeFormat = "year={year}/month={month}/day={day}"
	}
	timePath := strings.ReplaceAll(timeFormat, "{year}", fmt.Sprintf("%04d", timestamp.Year()))
	timePath = strings.ReplaceAll(timePath, "{month}", fmt.Sprintf("%02d", timestamp.Month()))
	timePath = strings.ReplaceAll(timePath, "{day}", fmt.Sprintf("%02d", timestamp.Day()))
	timePath = strings.ReplaceAll(timePath, "{hour}", fmt.Sprintf("%02d", timestamp.Hour()))

	parts = append(parts, timePath)

	ts := timestamp.Format("20060102150405")
	filename := fmt.Sprintf("pricing_proposals_%s.parquet", ts)

	key := filepath.Join(append(parts, filename)...)
	return filepath.ToSlash(key)
}

func (w *ReportWriter) createParquetFile(records []ProposalRecord) ([]byte, int64, error) {
	log := w.log.WithComponent("s3_report_writer").WithFields(logger.Fields{
		"records":   len(records),
		"operation": "create_parquet_file",
	})
	log.Debug("creating parquet file")

	fw := newMemoryFileWriter()

	pw, err := writer.NewParquetWriter(fw, new(ProposalRecord), 4)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	switch w.config.Writer.Formats.Parquet.Compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	case "lzo":
		pw.CompressionType = parquet.CompressionCodec_LZO
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, record := range records {
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return nil, 0, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, 0, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}

	data := fw.Bytes()

	log.WithFields(logger.Fields{
		"file_size":   len(data),
		"compression": w.config.Writer.Formats.Parquet.Compression,
	}).Debug("parquet file created")

	return data, int64(len(data)), nil
}

func (w *ReportWriter) uploadToS3(key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.config.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":      "parquet",
			"compression":       w.config.Writer.Formats.Parquet.Compression,
			"churnflow-version": w.config.Churnflow.Version,
		},
	}

	ctx := context.WithoutCancel(w.ctx)
	_, err := w.s3Client.PutObject(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", w.config.Storage.S3.Bucket, err)
	}
	return nil
}

func (w *ReportWriter) metricsReporter(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reportMetrics()
		}
	}
}

func (w *ReportWriter) reportMetrics() {
	w.mu.RLock()
	stats := metrics.WriterStats{
		BatchesWritten:     w.batchesWritten,
		FilesWritten:       w.filesWritten,
		BytesWritten:       w.bytesWritten,
		ErrorsCount:        w.errorsCount,
		ProposalChannelLen: len(w.proposalChan),
		ProposalChannelCap: cap(w.proposalChan),
	}
	w.mu.RUnlock()

	metrics.ReportWriter(w.log, "s3_report_writer", stats)
}
