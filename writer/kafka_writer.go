package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	kafka "github.com/segmentio/kafka-go"

	appconfig "churnflow/config"
	"churnflow/logger"
	"churnflow/models"
)

// KafkaWriter publishes every pricing proposal set to a Kafka topic so the
// approval workflow and downstream consumers receive proposals as they are
// generated.
type KafkaWriter struct {
	config       *appconfig.Config
	proposalChan <-chan models.PricingProposalSet
	writer       *kafka.Writer
	ctx          context.Context
	wg           *sync.WaitGroup
	mu           sync.RWMutex
	running      bool
	log          *logger.Log
}

func NewKafkaWriter(cfg *appconfig.Config, proposalChan <-chan models.PricingProposalSet) (*KafkaWriter, error) {
	if len(cfg.Storage.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	kw := &KafkaWriter{
		config:       cfg,
		proposalChan: proposalChan,
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Storage.Kafka.Brokers...),
			Topic:    cfg.Storage.Kafka.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		wg:  &sync.WaitGroup{},
		log: logger.GetLogger(),
	}
	kw.log.WithComponent("kafka_writer").WithFields(logger.Fields{
		"brokers": cfg.Storage.Kafka.Brokers,
		"topic":   cfg.Storage.Kafka.Topic,
	}).Debug("kafka writer initialized")
	return kw, nil
}

func (kw *KafkaWriter) Start(ctx context.Context) error {
	kw.mu.Lock()
	if kw.running {
		kw.mu.Unlock()
		return fmt.Errorf("kafka writer already running")
	}
	kw.running = true
	kw.ctx = ctx
	kw.mu.Unlock()

	kw.log.WithComponent("kafka_writer").Debug("starting kafka writer")

	kw.wg.Add(1)
	go kw.run()

	return nil
}

func (kw *KafkaWriter) run() {
	defer kw.wg.Done()

	for {
		select {
		case <-kw.ctx.Done():
			return
		case set, ok := <-kw.proposalChan:
			if !ok {
				return
			}
			data, err := json.Marshal(set)
			if err != nil {
				kw.log.WithComponent("kafka_writer").WithError(err).Warn("failed to marshal proposal set")
				continue
			}
			msg := kafka.Message{
				Key:   []byte(set.ScanID),
				Value: data,
			}
			if err := kw.writer.WriteMessages(kw.ctx, msg); err != nil {
				kw.log.WithComponent("kafka_writer").WithError(err).Warn("failed to write message")
			} else {
				logger.IncrementKafkaPublish(len(data))
				kw.log.WithComponent("kafka_writer").WithFields(logger.Fields{
					"proposal_id": set.ProposalID,
					"scan_id":     set.ScanID,
					"proposals":   len(set.Proposals),
				}).Debug("proposal set published to kafka")
			}
		}
	}
}

func (kw *KafkaWriter) Stop() {
	kw.mu.Lock()
	kw.running = false
	kw.mu.Unlock()

	kw.log.WithComponent("kafka_writer").Debug("stopping kafka writer")
	kw.writer.Close()
	kw.wg.Wait()
	kw.log.WithComponent("kafka_writer").Debug("kafka writer stopped")
}
