package bootstrap

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/restaurant-concierge/internal/config"
	"github.com/wolfman30/restaurant-concierge/internal/voice"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

func TestBuildRedisClientDisabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), nil, nil, true))
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true))
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr()}

	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.New("error"), true))
}

func TestBuildDatabasesEmptyURL(t *testing.T) {
	logger := logging.New("error")
	assert.Nil(t, BuildPostgresPool(context.Background(), "", logger))
	assert.Nil(t, BuildSQLDB(" ", logger))
}

func TestBuildCallStore(t *testing.T) {
	cfg := &appconfig.Config{}
	assert.IsType(t, &voice.MemoryCallStore{}, BuildCallStore(cfg, nil))

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, false)
	t.Cleanup(func() { _ = client.Close() })
	assert.IsType(t, &voice.RedisCallStore{}, BuildCallStore(cfg, client))
}
