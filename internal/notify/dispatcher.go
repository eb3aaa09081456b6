package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/twin-miner/internal/circuitbreaker"
	"github.com/twin-miner/internal/logging"
	"github.com/twin-miner/internal/models"
)

// Sender delivers one discovery
type Sender interface {
	Send(ctx context.Context, d *models.Discovery) error
}

// DispatcherConfig configures a Dispatcher
type DispatcherConfig struct {
	QueueSize     int
	RatePerSecond float64
	Burst         int
	SendTimeout   time.Duration
}

// DispatcherStats counts discoveries by outcome
type DispatcherStats struct {
	Queued  uint64 `json:"queued"`
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

// Dispatcher decouples workers from the webhook. Notify never blocks: a full
// queue, an exhausted rate limit or an open circuit drops the discovery.
// Nothing is retried.
type Dispatcher struct {
	sender  Sender
	queue   chan *models.Discovery
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	metrics *Metrics
	logger  *logging.Logger

	queued  atomic.Uint64
	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	done chan struct{}
	once sync.Once
}

// NewDispatcher creates a dispatcher. Run must be started for anything to be sent.
func NewDispatcher(sender Sender, cfg DispatcherConfig, breaker *circuitbreaker.CircuitBreaker, metrics *Metrics, logger *logging.Logger) *Dispatcher {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	return &Dispatcher{
		sender:  sender,
		queue:   make(chan *models.Discovery, cfg.QueueSize),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker: breaker,
		timeout: cfg.SendTimeout,
		metrics: metrics,
		logger:  logger.WithComponent("notify"),
		done:    make(chan struct{}),
	}
}

// Notify enqueues a discovery without blocking. An EventID is assigned when
// the caller did not set one.
func (d *Dispatcher) Notify(ctx context.Context, disc *models.Discovery) {
	if disc.EventID == uuid.Nil {
		disc.EventID = uuid.New()
	}

	select {
	case d.queue <- disc:
		d.queued.Add(1)
		d.metrics.QueueDepth.Inc()
	default:
		d.drop(disc, "queue full")
	}
}

// Run sends queued discoveries until ctx is cancelled. Discoveries still
// queued at that point are dropped.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.once.Do(func() { close(d.done) })

	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case disc := <-d.queue:
			d.metrics.QueueDepth.Dec()
			if ctx.Err() != nil {
				d.drop(disc, "shutting down")
				d.drain()
				return
			}
			d.dispatch(ctx, disc)
		}
	}
}

// Done is closed once Run has returned
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) dispatch(ctx context.Context, disc *models.Discovery) {
	if !d.limiter.Allow() {
		d.drop(disc, "rate limited")
		return
	}

	start := time.Now()
	err := d.execute(ctx, disc)
	d.metrics.SendLatency.Observe(time.Since(start).Seconds())

	logger := d.logger.WithFields(map[string]interface{}{
		"targetId": disc.TargetID,
		"score":    disc.Score,
		"eventId":  disc.EventID.String(),
	})

	switch {
	case err == nil:
		d.sent.Add(1)
		d.metrics.Notifications.WithLabelValues(OutcomeSent).Inc()
		logger.Info("Discovery notification sent")
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		d.drop(disc, "circuit open")
	default:
		d.failed.Add(1)
		d.metrics.Notifications.WithLabelValues(OutcomeFailed).Inc()
		logger.WithError(err).Warn("Discovery notification failed")
	}
}

func (d *Dispatcher) execute(ctx context.Context, disc *models.Discovery) error {
	send := func() error {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		return d.sender.Send(sendCtx, disc)
	}
	if d.breaker == nil {
		return send()
	}
	return d.breaker.Execute(send)
}

func (d *Dispatcher) drain() {
	for {
		select {
		case disc := <-d.queue:
			d.metrics.QueueDepth.Dec()
			d.drop(disc, "shutting down")
		default:
			return
		}
	}
}

func (d *Dispatcher) drop(disc *models.Discovery, reason string) {
	d.dropped.Add(1)
	d.metrics.Notifications.WithLabelValues(OutcomeDropped).Inc()
	d.logger.WithFields(map[string]interface{}{
		"targetId": disc.TargetID,
		"score":    disc.Score,
		"reason":   reason,
	}).Warn("Discovery notification dropped")
}

// Stats returns the outcome counters
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Queued:  d.queued.Load(),
		Sent:    d.sent.Load(),
		Dropped: d.dropped.Load(),
		Failed:  d.failed.Load(),
	}
}
