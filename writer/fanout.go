package writer

import (
	"context"

	"churnflow/logger"
	"churnflow/models"
)

// FanOut copies proposal sets from the pipeline channel to each sink
// channel. A slow sink never blocks the others: a full sink channel drops
// that copy with a warning while the rest still receive it.
func FanOut(ctx context.Context, in <-chan models.PricingProposalSet, sinks ...chan<- models.PricingProposalSet) {
	log := logger.GetLogger().WithComponent("proposal_fanout")

	go func() {
		defer func() {
			for _, sink := range sinks {
				close(sink)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case set, ok := <-in:
				if !ok {
					return
				}
				for _, sink := range sinks {
					select {
					case sink <- set:
					default:
						log.WithFields(logger.Fields{
							"proposal_id": set.ProposalID,
						}).Warn("sink channel is full, dropping proposal set copy")
					}
				}
			}
		}
	}()
}
