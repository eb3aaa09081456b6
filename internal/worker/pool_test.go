package worker

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twin-miner/internal/models"
	"github.com/twin-miner/internal/storage"
)

func TestNewPool_AssignsConsecutiveIDs(t *testing.T) {
	pool, err := NewPool(&PoolConfig{
		Workers:        3,
		WorkerIDOffset: 10,
		Template:       *testWorkerConfig(storage.NewMemoryTargetStore(255)),
	})
	require.NoError(t, err)

	var ids []uint32
	for _, w := range pool.Workers() {
		ids = append(ids, w.ID())
	}
	assert.Equal(t, []uint32{10, 11, 12}, ids)
}

func TestNewPool_RejectsZeroWorkers(t *testing.T) {
	_, err := NewPool(&PoolConfig{Template: *testWorkerConfig(storage.NewMemoryTargetStore(255))})
	assert.Error(t, err)
}

func TestPool_RunUntilCancelled(t *testing.T) {
	store := storage.NewMemoryTargetStore(255)
	store.Put(&models.MiningTarget{ID: "t1", Pattern: "abcd1234"})

	reg := prometheus.NewRegistry()
	template := *testWorkerConfig(store)
	template.Metrics = NewMetrics(reg)

	pool, err := NewPool(&PoolConfig{Workers: 2, Template: template})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	require.Eventually(t, func() bool { return pool.Status().Candidates >= 32 }, 10*time.Second, 10*time.Millisecond)
	status := pool.Status()
	assert.True(t, status.Running)
	assert.Len(t, status.Workers, 2)

	// a second Run while the first is active is refused
	assert.Error(t, pool.Run(ctx))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not stop")
	}

	assert.False(t, pool.Status().Running)
	assert.GreaterOrEqual(t, testutil.ToFloat64(template.Metrics.Candidates), float64(32))

	score, err := store.ReadScore(context.Background(), "t1")
	require.NoError(t, err)
	if status := pool.Status(); status.Improvements > 0 {
		assert.Greater(t, score, uint8(0))
	}
}
