package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twin-miner/internal/config"
)

func TestNewRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cache, err := NewRedisCache(context.Background(), &config.RedisConfig{
		Host:           mr.Host(),
		Port:           mr.Port(),
		MaxConnections: 2,
	})
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, cache.Close())
	}()

	assert.NoError(t, cache.Ping(testContext(t)))
	assert.NotNil(t, cache.Client())
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	_, err = NewRedisCache(context.Background(), &config.RedisConfig{Host: host, Port: port})
	assert.Error(t, err)
}
