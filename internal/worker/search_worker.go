// Package worker runs the keypair search: each SearchWorker generates
// candidates from its own slice of the keyspace and records improvements
// through the shared target store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/twin-miner/internal/errors"
	"github.com/twin-miner/internal/logging"
	"github.com/twin-miner/internal/miner"
	"github.com/twin-miner/internal/models"
	"github.com/twin-miner/internal/storage"
)

// checkInterval is how many candidates are generated between context checks
const checkInterval = 4096

// State is a worker's position in its search cycle
type State int32

const (
	// StateSearching generates and scores candidates
	StateSearching State = iota
	// StateRefreshing reloads the active targets
	StateRefreshing
	// StateIdling waits because there is nothing to search
	StateIdling
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateRefreshing:
		return "refreshing"
	case StateIdling:
		return "idling"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "searching":
		*s = StateSearching
	case "refreshing":
		*s = StateRefreshing
	case "idling":
		*s = StateIdling
	default:
		return fmt.Errorf("unknown worker state %q", text)
	}
	return nil
}

// SearchWorkerConfig holds configuration for a search worker
type SearchWorkerConfig struct {
	ID                 uint32
	Generator          *miner.Generator
	Scorer             *miner.Scorer
	Store              TargetStore
	Notifier           Notifier        // optional
	Improvements       ImprovementSink // optional
	Cursor             CursorStore     // optional, workers start at 0 without one
	BatchSize          uint64
	IdleInterval       time.Duration
	DiscoveryThreshold uint8
	StoreTimeout       time.Duration
	Metrics            *Metrics
	Logger             *logging.Logger
}

// SearchWorker is one search slot. It cycles Refreshing -> Searching ->
// Refreshing, dropping to Idling whenever there is nothing to search or the
// store fails, until its context is cancelled.
type SearchWorker struct {
	id           uint32
	generator    *miner.Generator
	scorer       *miner.Scorer
	store        TargetStore
	notifier     Notifier
	improvements ImprovementSink
	cursor       CursorStore
	batchSize    uint64
	idleInterval time.Duration
	threshold    uint8
	storeTimeout time.Duration
	metrics      *Metrics
	logger       *logging.Logger
	color        bool
	label        string

	cache *TargetCache
	next  uint64 // owned by the Run goroutine

	state         atomic.Int32
	sequence      atomic.Uint64
	candidates    atomic.Uint64
	improved      atomic.Uint64
	racesLost     atomic.Uint64
	activeTargets atomic.Int64
	lastRefresh   atomic.Int64
}

// NewSearchWorker creates a new search worker
func NewSearchWorker(cfg *SearchWorkerConfig) (*SearchWorker, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator cannot be nil")
	}
	if cfg.Scorer == nil {
		return nil, fmt.Errorf("scorer cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("target store cannot be nil")
	}
	if cfg.BatchSize == 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	if cfg.IdleInterval <= 0 {
		return nil, fmt.Errorf("idle interval must be positive")
	}

	w := &SearchWorker{
		id:           cfg.ID,
		generator:    cfg.Generator,
		scorer:       cfg.Scorer,
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		improvements: cfg.Improvements,
		cursor:       cfg.Cursor,
		batchSize:    cfg.BatchSize,
		idleInterval: cfg.IdleInterval,
		threshold:    cfg.DiscoveryThreshold,
		storeTimeout: cfg.StoreTimeout,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		label:        strconv.FormatUint(uint64(cfg.ID), 10),
	}

	if w.notifier == nil {
		w.notifier = nopNotifier{}
	}
	if w.improvements == nil {
		w.improvements = nopSink{}
	}
	if w.storeTimeout <= 0 {
		w.storeTimeout = 10 * time.Second
	}
	if w.metrics == nil {
		w.metrics = NewMetrics(nil)
	}
	if w.logger == nil {
		w.logger = logging.GetGlobalLogger()
	}
	w.logger = w.logger.WithComponent(fmt.Sprintf("worker:%d", cfg.ID))
	w.color = w.logger.TextFormat()
	w.cache = NewTargetCache(w.store, w.storeTimeout, w.logger)
	w.setState(StateRefreshing)

	return w, nil
}

// ID returns the worker id mixed into every seed
func (w *SearchWorker) ID() uint32 {
	return w.id
}

// Run drives the state machine until ctx is cancelled
func (w *SearchWorker) Run(ctx context.Context) {
	w.next = w.loadCursor(ctx)
	w.sequence.Store(w.next)
	w.logger.WithField("sequence", w.next).Info("Worker started")

	state := StateRefreshing
	for ctx.Err() == nil {
		state = w.step(ctx, state)
	}

	w.saveCursor(context.WithoutCancel(ctx))
	w.logger.WithField("sequence", w.next).Info("Worker stopped")
}

// step runs one state and returns the next one
func (w *SearchWorker) step(ctx context.Context, state State) State {
	w.setState(state)
	switch state {
	case StateSearching:
		return w.search(ctx)
	case StateIdling:
		return w.idle(ctx)
	default:
		return w.refresh(ctx)
	}
}

func (w *SearchWorker) refresh(ctx context.Context) State {
	targets, err := w.cache.Refresh(ctx)
	w.lastRefresh.Store(time.Now().UnixNano())
	if err != nil {
		if ctx.Err() != nil {
			return StateRefreshing
		}
		w.metrics.StoreErrors.WithLabelValues("list").Inc()
		w.logger.WithError(err).Error("Failed to fetch targets")
		w.setActiveTargets(0)
		return StateIdling
	}

	if int64(len(targets)) != w.activeTargets.Load() {
		w.logger.Infof("mining targets updated to %d targets", len(targets))
	}
	w.setActiveTargets(len(targets))

	if len(targets) == 0 {
		return StateIdling
	}
	return StateSearching
}

func (w *SearchWorker) idle(ctx context.Context) State {
	w.metrics.IdleCycles.Inc()
	w.logger.Infof("no targets below the active ceiling, idling for %s", w.idleInterval)

	timer := time.NewTimer(w.idleInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return StateRefreshing
}

func (w *SearchWorker) search(ctx context.Context) State {
	targets := w.cache.Targets()
	end := w.next + w.batchSize
	published := w.next

	for w.next < end {
		if w.next-published >= checkInterval {
			w.publish(w.next - published)
			published = w.next
			if ctx.Err() != nil {
				return StateRefreshing
			}
		}

		seq := w.next
		candidate := w.generator.Generate(w.id, seq)
		w.next++

		for i := range targets {
			score, err := w.scorer.Score(targets[i].Pattern, candidate.Address)
			if err != nil {
				continue
			}
			if score <= targets[i].Score {
				continue
			}
			if err := w.improve(ctx, i, candidate, seq, score); err != nil {
				// Abandon the batch; the refresh decides whether to idle.
				w.publish(w.next - published)
				if ctx.Err() == nil {
					w.saveCursor(ctx)
				}
				return StateRefreshing
			}
		}
	}

	w.publish(w.next - published)
	w.saveCursor(ctx)
	return StateRefreshing
}

func (w *SearchWorker) publish(generated uint64) {
	if generated == 0 {
		return
	}
	w.sequence.Store(w.next)
	w.candidates.Add(generated)
	w.metrics.Candidates.Add(float64(generated))
}

// improve runs the optimistic update for one target: re-read the stored row,
// give up if it already scores as high, otherwise let the conditional update
// decide. It returns an error only when the store failed; lost races and
// vanished targets are not errors.
func (w *SearchWorker) improve(ctx context.Context, i int, candidate miner.Candidate, seq uint64, score uint8) error {
	target := w.cache.Targets()[i]

	storeCtx, cancel := context.WithTimeout(ctx, w.storeTimeout)
	defer cancel()

	current, err := w.store.ReadTarget(storeCtx, target.ID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, storage.ErrTargetNotFound) {
			// Gone from the store. Stop proposing until the next refresh.
			w.cache.Raise(i, miner.MaxScore)
			return nil
		}
		storeErr := apperrors.NewStoreError("read target", err)
		w.metrics.StoreErrors.WithLabelValues("read").Inc()
		w.logger.WithError(storeErr).WithField("targetId", target.ID).Warn("Failed to read target")
		return storeErr
	}

	if current.Score >= score {
		w.cache.Raise(i, current.Score)
		w.lostRace()
		return nil
	}

	privateKey := candidate.PrivateKey()
	result, err := w.store.ConditionalUpdate(storeCtx, target.ID, score, candidate.Address, privateKey)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		storeErr := apperrors.NewStoreError("conditional update", err)
		w.metrics.StoreErrors.WithLabelValues("update").Inc()
		w.logger.WithError(storeErr).WithField("targetId", target.ID).Warn("Failed to update target")
		return storeErr
	}

	w.cache.Raise(i, score)
	if !result.Applied {
		w.lostRace()
		return nil
	}

	w.improved.Add(1)
	w.metrics.Improvements.Inc()
	w.metrics.BestScore.WithLabelValues(target.ID).Set(float64(score))
	w.logger.Infof("target[%s]: %s (score: %d)", target.ID, w.scorer.FormatMatch(candidate.Address, score, w.color), score)

	w.improvements.Record(&models.ImprovementEvent{
		EventID:       uuid.New(),
		TargetID:      target.ID,
		Score:         score,
		PreviousScore: result.PreviousScore,
		TwinAddress:   candidate.Address,
		WorkerID:      w.id,
		Sequence:      seq,
		Version:       w.generator.Version().String(),
		FoundAt:       time.Now().UTC(),
	})

	if score >= w.threshold {
		w.metrics.Discoveries.Inc()
		w.notifier.Notify(ctx, &models.Discovery{
			EventID:           uuid.New(),
			TargetID:          target.ID,
			Score:             score,
			TwinAddress:       candidate.Address,
			TwinPrivateKey:    privateKey,
			OldTwinAddress:    result.PreviousTwinAddress,
			OldTwinPrivateKey: result.PreviousTwinPrivateKey,
		})
	}
	return nil
}

func (w *SearchWorker) lostRace() {
	w.racesLost.Add(1)
	w.metrics.RacesLost.Inc()
}

func (w *SearchWorker) loadCursor(ctx context.Context) uint64 {
	if w.cursor == nil {
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, w.storeTimeout)
	defer cancel()

	next, err := w.cursor.Load(ctx, w.id)
	if err != nil {
		w.logger.WithError(err).Warn("Failed to load sequence cursor, starting at 0")
		return 0
	}
	return next
}

func (w *SearchWorker) saveCursor(ctx context.Context) {
	if w.cursor == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, w.storeTimeout)
	defer cancel()

	if err := w.cursor.Save(ctx, w.id, w.next); err != nil {
		w.logger.WithError(err).Warn("Failed to save sequence cursor")
	}
}

func (w *SearchWorker) setState(s State) {
	w.state.Store(int32(s))
	w.metrics.WorkerState.WithLabelValues(w.label).Set(float64(s))
}

func (w *SearchWorker) setActiveTargets(n int) {
	w.activeTargets.Store(int64(n))
	w.metrics.ActiveTargets.WithLabelValues(w.label).Set(float64(n))
}

// State returns the worker's current state
func (w *SearchWorker) State() State {
	return State(w.state.Load())
}

// SearchWorkerStatus is a point-in-time snapshot of a worker
type SearchWorkerStatus struct {
	ID            uint32    `json:"id"`
	State         State     `json:"state"`
	Sequence      uint64    `json:"sequence"`
	Candidates    uint64    `json:"candidates"`
	Improvements  uint64    `json:"improvements"`
	RacesLost     uint64    `json:"racesLost"`
	ActiveTargets int       `json:"activeTargets"`
	LastRefresh   time.Time `json:"lastRefresh"`
}

// Status returns a snapshot safe to call from any goroutine
func (w *SearchWorker) Status() SearchWorkerStatus {
	status := SearchWorkerStatus{
		ID:            w.id,
		State:         w.State(),
		Sequence:      w.sequence.Load(),
		Candidates:    w.candidates.Load(),
		Improvements:  w.improved.Load(),
		RacesLost:     w.racesLost.Load(),
		ActiveTargets: int(w.activeTargets.Load()),
	}
	if ns := w.lastRefresh.Load(); ns != 0 {
		status.LastRefresh = time.Unix(0, ns).UTC()
	}
	return status
}
