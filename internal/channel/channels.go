package channel

import (
	"context"
	"sync"

	"churnflow/logger"
	"churnflow/models"
)

type ChannelStats struct {
	SamplesSent        int64
	SamplesDropped     int64
	AssessmentsSent    int64
	AssessmentsDropped int64
	SnapshotsSent      int64
	SnapshotsDropped   int64
	ProposalsSent      int64
	ProposalsDropped   int64
}

// Channels bundles the buffered pipeline stages: raw feature samples from the
// readers, scored assessment batches, merged risk snapshots and pricing
// proposal sets headed for the writers. Sends never block a producer; a full
// buffer drops the message and bumps the drop counter.
type Channels struct {
	Samples     chan models.RawSampleMessage
	Assessments chan models.AssessmentBatch
	Snapshots   chan models.RiskSummarySnapshot
	Proposals   chan models.PricingProposalSet

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(sampleBuffer, assessmentBuffer, snapshotBuffer, proposalBuffer int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Samples:     make(chan models.RawSampleMessage, sampleBuffer),
		Assessments: make(chan models.AssessmentBatch, assessmentBuffer),
		Snapshots:   make(chan models.RiskSummarySnapshot, snapshotBuffer),
		Proposals:   make(chan models.PricingProposalSet, proposalBuffer),
		log:         log,
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"sample_buffer":     sampleBuffer,
		"assessment_buffer": assessmentBuffer,
		"snapshot_buffer":   snapshotBuffer,
		"proposal_buffer":   proposalBuffer,
	}).Info("pipeline channels initialized")

	return c
}

func (c *Channels) Close() {
	close(c.Samples)
	close(c.Assessments)
	close(c.Snapshots)
	close(c.Proposals)
	c.log.WithComponent("channels").Info("pipeline channels closed")
}

func (c *Channels) SendSample(ctx context.Context, msg models.RawSampleMessage) bool {
	select {
	case c.Samples <- msg:
		c.bump(func(s *ChannelStats) { s.SamplesSent++ })
		return true
	case <-ctx.Done():
		return false
	default:
		c.bump(func(s *ChannelStats) { s.SamplesDropped++ })
		return false
	}
}

func (c *Channels) SendAssessments(ctx context.Context, batch models.AssessmentBatch) bool {
	select {
	case c.Assessments <- batch:
		c.bump(func(s *ChannelStats) { s.AssessmentsSent++ })
		return true
	case <-ctx.Done():
		return false
	default:
		c.bump(func(s *ChannelStats) { s.AssessmentsDropped++ })
		return false
	}
}

func (c *Channels) SendSnapshot(ctx context.Context, snapshot models.RiskSummarySnapshot) bool {
	select {
	case c.Snapshots <- snapshot:
		c.bump(func(s *ChannelStats) { s.SnapshotsSent++ })
		return true
	case <-ctx.Done():
		return false
	default:
		c.bump(func(s *ChannelStats) { s.SnapshotsDropped++ })
		return false
	}
}

func (c *Channels) SendProposals(ctx context.Context, set models.PricingProposalSet) bool {
	select {
	case c.Proposals <- set:
		c.bump(func(s *ChannelStats) { s.ProposalsSent++ })
		return true
	case <-ctx.Done():
		return false
	default:
		c.bump(func(s *ChannelStats) { s.ProposalsDropped++ })
		return false
	}
}

func (c *Channels) bump(update func(*ChannelStats)) {
	c.statsMutex.Lock()
	update(&c.stats)
	c.statsMutex.Unlock()
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}
