package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/twin-miner/internal/logging"
	"github.com/twin-miner/internal/miner"
	"github.com/twin-miner/internal/models"
	"github.com/twin-miner/internal/storage"
)

type capturingNotifier struct {
	mu          sync.Mutex
	discoveries []*models.Discovery
}

func (n *capturingNotifier) Notify(_ context.Context, d *models.Discovery) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.discoveries = append(n.discoveries, d)
}

func (n *capturingNotifier) all() []*models.Discovery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*models.Discovery(nil), n.discoveries...)
}

type capturingSink struct {
	mu     sync.Mutex
	events []*models.ImprovementEvent
}

func (s *capturingSink) Record(e *models.ImprovementEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *capturingSink) all() []*models.ImprovementEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.ImprovementEvent(nil), s.events...)
}

type memoryCursor struct {
	mu    sync.Mutex
	saved map[uint32]uint64
}

func newMemoryCursor() *memoryCursor {
	return &memoryCursor{saved: make(map[uint32]uint64)}
}

func (c *memoryCursor) Load(_ context.Context, id uint32) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saved[id], nil
}

func (c *memoryCursor) Save(_ context.Context, id uint32, next uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if next > c.saved[id] {
		c.saved[id] = next
	}
	return nil
}

func (c *memoryCursor) get(id uint32) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saved[id]
}

// failingStore fails every call
type failingStore struct{}

var errStoreDown = errors.New("connection refused")

func (failingStore) ListActiveTargets(context.Context) ([]*models.MiningTarget, error) {
	return nil, errStoreDown
}

func (failingStore) ReadScore(context.Context, string) (uint8, error) { return 0, errStoreDown }

func (failingStore) ReadTarget(context.Context, string) (*models.MiningTarget, error) {
	return nil, errStoreDown
}

func (failingStore) ConditionalUpdate(context.Context, string, uint8, string, string) (models.TwinUpdate, error) {
	return models.TwinUpdate{}, errStoreDown
}

// racingStore lets a rival write land between the read and the update
type racingStore struct {
	*storage.MemoryTargetStore
	rivalScore uint8
}

func (s *racingStore) ConditionalUpdate(ctx context.Context, id string, score uint8, address, privateKey string) (models.TwinUpdate, error) {
	if _, err := s.MemoryTargetStore.ConditionalUpdate(ctx, id, s.rivalScore, "rival", "rivalKey"); err != nil {
		return models.TwinUpdate{}, err
	}
	return s.MemoryTargetStore.ConditionalUpdate(ctx, id, score, address, privateKey)
}

// faultyStore serves reads and listings from memory but fails the write path
// with the configured errors.
type faultyStore struct {
	*storage.MemoryTargetStore
	readErr   error
	updateErr error

	mu      sync.Mutex
	reads   int
	updates int
}

func (s *faultyStore) ReadTarget(ctx context.Context, id string) (*models.MiningTarget, error) {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.MemoryTargetStore.ReadTarget(ctx, id)
}

func (s *faultyStore) ConditionalUpdate(ctx context.Context, id string, score uint8, address, privateKey string) (models.TwinUpdate, error) {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	if s.updateErr != nil {
		return models.TwinUpdate{}, s.updateErr
	}
	return s.MemoryTargetStore.ConditionalUpdate(ctx, id, score, address, privateKey)
}

func (s *faultyStore) calls() (reads, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.updates
}

const testVersion = "test-v1"

func quietLogger() *logging.Logger {
	logger := logging.NewLogger(logging.LevelError, logging.FormatJSON)
	logger.SetOutput(io.Discard)
	return logger
}

// patternFor builds a pattern that the candidate matches at every position
func patternFor(address string) string {
	return address[:4] + address[len(address)-4:]
}

func testWorkerConfig(store TargetStore) *SearchWorkerConfig {
	return &SearchWorkerConfig{
		ID:                 1,
		Generator:          miner.NewGenerator(miner.NewVersionHash(testVersion)),
		Scorer:             miner.NewScorer(miner.DefaultWeights),
		Store:              store,
		BatchSize:          16,
		IdleInterval:       10 * time.Millisecond,
		DiscoveryThreshold: miner.DefaultDiscoveryThreshold,
		StoreTimeout:       time.Second,
		Logger:             quietLogger(),
	}
}

func newTestWorker(t *testing.T, cfg *SearchWorkerConfig) *SearchWorker {
	t.Helper()
	w, err := NewSearchWorker(cfg)
	if err != nil {
		t.Fatalf("NewSearchWorker() error = %v", err)
	}
	return w
}
