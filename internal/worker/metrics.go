package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the search pool's Prometheus collectors
type Metrics struct {
	Candidates    prometheus.Counter
	Improvements  prometheus.Counter
	Discoveries   prometheus.Counter
	RacesLost     prometheus.Counter
	StoreErrors   *prometheus.CounterVec
	IdleCycles    prometheus.Counter
	ActiveTargets *prometheus.GaugeVec
	WorkerState   *prometheus.GaugeVec
	BestScore     *prometheus.GaugeVec
}

// NewMetrics registers the worker collectors with reg. A nil reg leaves them
// unregistered, which is what tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Candidates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "twin_miner",
			Name:      "candidates_total",
			Help:      "Keypairs generated and scored",
		}),
		Improvements: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "twin_miner",
			Name:      "improvements_total",
			Help:      "Successful conditional updates",
		}),
		Discoveries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "twin_miner",
			Name:      "discoveries_total",
			Help:      "Improvements at or above the discovery threshold",
		}),
		RacesLost: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "twin_miner",
			Name:      "races_lost_total",
			Help:      "Improvements rejected because the stored score was already as high",
		}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twin_miner",
			Name:      "store_errors_total",
			Help:      "Target store failures by operation",
		}, []string{"operation"}),
		IdleCycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "twin_miner",
			Name:      "idle_cycles_total",
			Help:      "Times a worker idled because it had nothing to search",
		}),
		ActiveTargets: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "twin_miner",
			Name:      "active_targets",
			Help:      "Targets in each worker's cache after the last refresh",
		}, []string{"worker"}),
		WorkerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "twin_miner",
			Name:      "worker_state",
			Help:      "Current state of each worker (0 searching, 1 refreshing, 2 idling)",
		}, []string{"worker"}),
		BestScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "twin_miner",
			Name:      "target_score",
			Help:      "Highest score this process has recorded per target",
		}, []string{"target"}),
	}
}
