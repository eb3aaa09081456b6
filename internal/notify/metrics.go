package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for the notifications counter
const (
	OutcomeSent    = "sent"
	OutcomeDropped = "dropped"
	OutcomeFailed  = "failed"
)

// Metrics holds the dispatcher's Prometheus collectors
type Metrics struct {
	Notifications *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
	SendLatency   prometheus.Histogram
}

// NewMetrics registers the dispatcher collectors with reg. A nil reg leaves
// them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twin_miner",
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Discovery notifications by outcome",
		}, []string{"outcome"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "twin_miner",
			Subsystem: "notify",
			Name:      "queue_depth",
			Help:      "Discoveries waiting to be sent",
		}),
		SendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "twin_miner",
			Subsystem: "notify",
			Name:      "send_latency_seconds",
			Help:      "Latency of discovery webhook requests",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}
}
