package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"churnflow/config"
	"churnflow/engine"
	"churnflow/internal/channel"
	"churnflow/internal/metrics"
	"churnflow/logger"
	"churnflow/models"
	"churnflow/processor"
	"churnflow/reader/crm"
	"churnflow/reader/stream"
	"churnflow/reader/synthetic"
	"churnflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	plansPath := flag.String("plans", "config/plans.yml", "Path to plan catalog file")

	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	catalog, err := config.LoadPlans(*plansPath)
	if err != nil {
		log.WithError(err).Error("Failed to load plan catalog")
		os.Exit(1)
	}

	eng, err := engine.New(cfg.Engine)
	if err != nil {
		log.WithError(err).Error("Failed to build scoring engine")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Churnflow.Name,
		"version": cfg.Churnflow.Version,
		"engine":  cfg.Engine.Version,
		"plans":   len(catalog.Plans),
	}).Info("starting churnflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	metrics.Configure(cfg.Metrics)
	if cfg.Metrics.Prometheus {
		metrics.Init()
	}
	if cfg.Storage.S3.Enabled {
		logger.InitCloudWatch(cfg.Storage.S3.Region, "ChurnFlow", cfg.Logging.DashboardName)
		metrics.InitCloudWatch(cfg.Storage.S3.Region, "ChurnFlow", cfg.Logging.DashboardName)
		if err := metrics.CreateDashboardFromTemplate(ctx); err != nil {
			log.WithError(err).Warn("failed to create metrics dashboard")
		}
	}

	channels := channel.NewChannels(
		cfg.Channels.SampleBuffer,
		cfg.Channels.AssessmentBuffer,
		cfg.Channels.SnapshotBuffer,
		cfg.Channels.ProposalBuffer,
	)
	defer channels.Close()

	if cfg.Metrics.ChannelSize {
		metrics.StartChannelSizeMetrics(ctx, channels, 30*time.Second)
	}

	scorer := processor.NewScorer(cfg, eng, channels)
	aggregator := processor.NewAggregator(cfg, channels)
	adjuster := processor.NewAdjuster(cfg, eng, catalog, channels)

	var crmReader *crm.Reader
	var streamReader *stream.Reader
	var syntheticGen *synthetic.Generator

	if cfg.Source.CRM.Enabled {
		crmReader = crm.NewReader(cfg, channels)
	}
	if cfg.Source.Stream.Enabled {
		streamReader = stream.NewReader(cfg, channels)
	}
	if cfg.Source.Synthetic.Enabled {
		syntheticGen = synthetic.NewGenerator(cfg, channels)
	}
	if crmReader == nil && streamReader == nil && syntheticGen == nil {
		log.Error("no customer data source enabled")
		os.Exit(1)
	}

	// Proposal sets fan out to every enabled sink.
	var sinks []chan<- models.PricingProposalSet

	var reportWriter *writer.ReportWriter
	var reportCh chan models.PricingProposalSet
	if cfg.Storage.S3.Enabled {
		reportCh = make(chan models.PricingProposalSet, cfg.Channels.ProposalBuffer)
		reportWriter, err = writer.NewReportWriter(cfg, reportCh)
		if err != nil {
			log.WithError(err).Error("failed to create report writer")
			os.Exit(1)
		}
		sinks = append(sinks, reportCh)
	} else {
		log.WithComponent("main").Info("S3 storage disabled; skipping report writer")
	}

	var kafkaWriter *writer.KafkaWriter
	var kafkaCh chan models.PricingProposalSet
	if cfg.Storage.Kafka.Enabled {
		kafkaCh = make(chan models.PricingProposalSet, cfg.Channels.ProposalBuffer)
		kafkaWriter, err = writer.NewKafkaWriter(cfg, kafkaCh)
		if err != nil {
			log.WithError(err).Error("failed to create kafka writer")
			os.Exit(1)
		}
		sinks = append(sinks, kafkaCh)
	} else {
		log.WithComponent("main").Info("Kafka storage disabled; skipping kafka writer")
	}

	if len(sinks) == 0 && config.IsProductionLike(config.AppEnvironment()) {
		log.Error("no proposal sink enabled in a production-like environment")
		os.Exit(1)
	}

	writer.FanOut(ctx, channels.Proposals, sinks...)

	var wg sync.WaitGroup

	if crmReader != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := crmReader.Start(ctx); err != nil {
				log.WithError(err).Warn("crm reader failed to start")
			}
		}()
	}

	if streamReader != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := streamReader.Start(ctx); err != nil {
				log.WithError(err).Warn("stream reader failed to start")
			}
		}()
	}

	if syntheticGen != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := syntheticGen.Start(ctx); err != nil {
				log.WithError(err).Warn("synthetic generator failed to start")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := scorer.Start(ctx); err != nil {
			log.WithError(err).Warn("scorer failed to start")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := aggregator.Start(ctx); err != nil {
			log.WithError(err).Warn("aggregator failed to start")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := adjuster.Start(ctx); err != nil {
			log.WithError(err).Warn("adjuster failed to start")
		}
	}()

	if reportWriter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := reportWriter.Start(ctx); err != nil {
				log.WithError(err).Warn("report writer failed to start")
			}
		}()
	}
	if kafkaWriter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := kafkaWriter.Start(ctx); err != nil {
				log.WithError(err).Warn("kafka writer failed to start")
			}
		}()
	}

	time.Sleep(2 * time.Second)
	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	if reportWriter != nil {
		log.Info("stopping report writer")
		reportWriter.Stop()
	}
	if kafkaWriter != nil {
		log.Info("stopping kafka writer")
		kafkaWriter.Stop()
	}

	log.Info("stopping adjuster")
	adjuster.Stop()

	log.Info("stopping aggregator")
	aggregator.Stop()

	log.Info("stopping scorer")
	scorer.Stop()

	if crmReader != nil {
		log.Info("stopping crm reader")
		crmReader.Stop()
	}
	if streamReader != nil {
		log.Info("stopping stream reader")
		streamReader.Stop()
	}
	if syntheticGen != nil {
		log.Info("stopping synthetic generator")
		syntheticGen.Stop()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("churnflow stopped")
}
