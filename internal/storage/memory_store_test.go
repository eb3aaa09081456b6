package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twin-miner/internal/models"
	"github.com/twin-miner/internal/types"
)

func newSeededStore(t *testing.T, score uint8) *MemoryTargetStore {
	t.Helper()
	store := NewMemoryTargetStore(255)
	store.Put(&models.MiningTarget{ID: "t1", Address: "abcd1234", Pattern: "abcd1234", Score: score, Deployed: true})
	return store
}

func TestMemoryTargetStore_ConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t, 10)

	result, err := store.ConditionalUpdate(ctx, "t1", 50, "addr50", "key50")
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, uint8(10), result.PreviousScore)
	assert.Nil(t, result.PreviousTwinAddress)
	assert.Nil(t, result.PreviousTwinPrivateKey)

	target, err := store.ReadTarget(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, uint8(50), target.Score)
	assert.Equal(t, "addr50", *target.TwinAddress)
	assert.Equal(t, "key50", *target.TwinPrivateKey)
	assert.False(t, target.Deployed)

	// equal and lower scores are rejected
	for _, score := range []uint8{50, 49} {
		result, err = store.ConditionalUpdate(ctx, "t1", score, "other", "other")
		require.NoError(t, err)
		assert.False(t, result.Applied)
	}

	score, err := store.ReadScore(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, uint8(50), score)

	// the next accepted update hands back the pair it replaced
	result, err = store.ConditionalUpdate(ctx, "t1", 90, "addr90", "key90")
	require.NoError(t, err)
	require.True(t, result.Applied)
	assert.Equal(t, uint8(50), result.PreviousScore)
	assert.Equal(t, "addr50", *result.PreviousTwinAddress)
	assert.Equal(t, "key50", *result.PreviousTwinPrivateKey)
}

func TestMemoryTargetStore_UnknownTarget(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTargetStore(255)

	_, err := store.ReadTarget(ctx, "missing")
	assert.True(t, errors.Is(err, ErrTargetNotFound))

	_, err = store.ReadScore(ctx, "missing")
	assert.True(t, errors.Is(err, ErrTargetNotFound))

	result, err := store.ConditionalUpdate(ctx, "missing", 10, "a", "k")
	require.NoError(t, err)
	assert.False(t, result.Applied)
}

func TestMemoryTargetStore_ListActiveTargets(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTargetStore(200)
	store.Put(&models.MiningTarget{ID: "b", Pattern: "abcd1234", Score: 199})
	store.Put(&models.MiningTarget{ID: "a", Pattern: "abcd1234", Score: 0})
	store.Put(&models.MiningTarget{ID: "c", Pattern: "abcd1234", Score: 200})

	targets, err := store.ListActiveTargets(ctx)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "a", targets[0].ID)
	assert.Equal(t, "b", targets[1].ID)
	assert.Equal(t, types.KindWallet, targets[0].Kind)

	// returned rows are copies
	targets[0].Score = 250
	score, _ := store.ReadScore(ctx, "a")
	assert.Equal(t, uint8(0), score)
}

func TestMemoryTargetStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSeededStore(t, 0).ListActiveTargets(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryTargetStore_ConcurrentWritersKeepMax(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t, 0)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		replaced = make(map[uint8]uint8)
	)
	wins := make(chan uint8, 255)
	for s := 1; s <= 255; s++ {
		wg.Add(1)
		go func(score uint8) {
			defer wg.Done()
			result, err := store.ConditionalUpdate(ctx, "t1", score, fmt.Sprintf("addr%d", score), fmt.Sprintf("key%d", score))
			if err == nil && result.Applied {
				mu.Lock()
				replaced[score] = result.PreviousScore
				mu.Unlock()
				wins <- score
			}
		}(uint8(s))
	}
	wg.Wait()
	close(wins)
	assertReplacementChain(t, replaced, 0, 255)

	target, err := store.ReadTarget(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, uint8(255), target.Score)
	assert.Equal(t, "addr255", *target.TwinAddress)
	assert.Equal(t, "key255", *target.TwinPrivateKey)

	var won []uint8
	for s := range wins {
		won = append(won, s)
	}
	assert.Contains(t, won, uint8(255))
}

func TestMemoryTargetStorePropertyMonotonic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("score never decreases and ends at the max submitted", prop.ForAll(
		func(initial uint8, submitted []uint8) bool {
			ctx := context.Background()
			store := NewMemoryTargetStore(255)
			store.Put(&models.MiningTarget{ID: "t", Pattern: "abcd1234", Score: initial})

			var wg sync.WaitGroup
			for _, s := range submitted {
				wg.Add(1)
				go func(score uint8) {
					defer wg.Done()
					_, _ = store.ConditionalUpdate(ctx, "t", score, "a", "k")
				}(s)
			}
			wg.Wait()

			want := initial
			for _, s := range submitted {
				if s > want {
					want = s
				}
			}
			got, err := store.ReadScore(ctx, "t")
			return err == nil && got == want
		},
		gen.UInt8(),
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("an accepted update always carries its own pair", prop.ForAll(
		func(scores []uint8) bool {
			ctx := context.Background()
			store := NewMemoryTargetStore(255)
			store.Put(&models.MiningTarget{ID: "t", Pattern: "abcd1234"})

			for _, s := range scores {
				before, _ := store.ReadScore(ctx, "t")
				result, err := store.ConditionalUpdate(ctx, "t", s, fmt.Sprintf("a%d", s), fmt.Sprintf("k%d", s))
				ok := result.Applied
				if err != nil || ok != (s > before) {
					return false
				}
				if ok && result.PreviousScore != before {
					return false
				}
				target, _ := store.ReadTarget(ctx, "t")
				if target.Score < before {
					return false
				}
				if ok && (*target.TwinAddress != fmt.Sprintf("a%d", s) || *target.TwinPrivateKey != fmt.Sprintf("k%d", s)) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

func TestParseMemoryTargets(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{name: "empty", input: "", want: nil},
		{name: "single", input: "t1:abcd1234", want: []string{"t1"}},
		{name: "with kind and spaces", input: "t1:abcd1234:token, t2:wxyz9876", want: []string{"t1", "t2"}},
		{name: "missing pattern", input: "t1", wantErr: true},
		{name: "unknown kind", input: "t1:abcd1234:nft", wantErr: true},
		{name: "duplicate id", input: "t1:abcd1234,t1:wxyz9876", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targets, err := ParseMemoryTargets(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			var ids []string
			for _, target := range targets {
				ids = append(ids, target.ID)
				assert.Equal(t, target.Pattern, target.Address)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	targets, err := ParseMemoryTargets("t1:abcd1234:token")
	require.NoError(t, err)
	assert.Equal(t, types.KindToken, targets[0].Kind)
}
