// Registers:
//
//	#churnflow_customers_scored_total
//	#churnflow_scan_errors_total
//	#churnflow_proposal_sets_total
//	#go_* and process_* system metrics
//
// Exposes them on :2112/metrics using Prometheus HTTP handler
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once           sync.Once
	customerScored *prometheus.CounterVec
	scanErrors     *prometheus.CounterVec
	proposalSets   prometheus.Counter
)

func Init() {
	once.Do(func() {
		customerScored = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "churnflow_customers_scored_total",
				Help: "Number of customers scored by the churn engine",
			},
			[]string{"segment"},
		)

		scanErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "churnflow_scan_errors_total",
				Help: "Number of failed fetch/decode/score attempts",
			},
			[]string{"source"},
		)

		proposalSets = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "churnflow_proposal_sets_total",
				Help: "Number of pricing proposal sets generated",
			},
		)

		_ = prometheus.Register(customerScored)
		_ = prometheus.Register(scanErrors)
		_ = prometheus.Register(proposalSets)
		_ = prometheus.Register(collectors.NewGoCollector())
		_ = prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe("0.0.0.0:2112", nil); err != nil {
				panic("metrics server failed: " + err.Error())
			}
		}()
	})
}

// IncrementScored increases the scored-customers counter for a segment.
func IncrementScored(segment string) {
	if customerScored != nil {
		customerScored.WithLabelValues(segment).Inc()
	}
}

// IncrementScanError increases the error counter for a given source.
func IncrementScanError(source string) {
	if scanErrors != nil {
		scanErrors.WithLabelValues(source).Inc()
	}
}

// IncrementProposalSet counts one generated pricing proposal set.
func IncrementProposalSet() {
	if proposalSets != nil {
		proposalSets.Inc()
	}
}
