package worker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PoolConfig holds configuration for a worker pool
type PoolConfig struct {
	Workers        int
	WorkerIDOffset uint32
	// Template is copied for every worker; its ID is overwritten.
	Template SearchWorkerConfig
}

// Pool launches one SearchWorker per slot. Workers share nothing but the
// target store.
type Pool struct {
	workers []*SearchWorker

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewPool creates a pool of cfg.Workers workers with consecutive ids starting
// at cfg.WorkerIDOffset. Processes sharing a store must use disjoint ids.
func NewPool(cfg *PoolConfig) (*Pool, error) {
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("pool needs at least one worker, got %d", cfg.Workers)
	}

	p := &Pool{workers: make([]*SearchWorker, 0, cfg.Workers)}
	for i := 0; i < cfg.Workers; i++ {
		workerCfg := cfg.Template
		workerCfg.ID = cfg.WorkerIDOffset + uint32(i) // #nosec G115 - worker count is small

		w, err := NewSearchWorker(&workerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create worker %d: %w", workerCfg.ID, err)
		}
		p.workers = append(p.workers, w)
	}

	return p, nil
}

// Run starts every worker and blocks until ctx is cancelled and all workers
// have stopped.
func (p *Pool) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("pool is already running")
	}
	p.running = true
	p.startedAt = time.Now().UTC()
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *SearchWorker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}
	wg.Wait()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// Workers returns the pool's workers
func (p *Pool) Workers() []*SearchWorker {
	return p.workers
}

// PoolStatus is a snapshot of the whole pool
type PoolStatus struct {
	Running      bool                 `json:"running"`
	StartedAt    time.Time            `json:"startedAt"`
	Candidates   uint64               `json:"candidates"`
	Improvements uint64               `json:"improvements"`
	RacesLost    uint64               `json:"racesLost"`
	Workers      []SearchWorkerStatus `json:"workers"`
}

// Status returns the current pool status
func (p *Pool) Status() PoolStatus {
	p.mu.RLock()
	status := PoolStatus{Running: p.running, StartedAt: p.startedAt}
	p.mu.RUnlock()

	status.Workers = make([]SearchWorkerStatus, 0, len(p.workers))
	for _, w := range p.workers {
		ws := w.Status()
		status.Candidates += ws.Candidates
		status.Improvements += ws.Improvements
		status.RacesLost += ws.RacesLost
		status.Workers = append(status.Workers, ws)
	}
	return status
}
