package submitissuereport

import (
	"context"
	goerrors "errors"
	"testing"
	"time"

	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedisGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	guard := NewRedisGuard(client, time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	release, err := guard.Acquire(ctx, "actor-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("support:inflight:actor-1"))

	_, err = guard.Acquire(ctx, "actor-1")
	assert.True(t, goerrors.Is(err, errors.ErrSubmissionInFlight))

	other, err := guard.Acquire(ctx, "actor-2")
	require.NoError(t, err)
	other()

	release()
	assert.False(t, mr.Exists("support:inflight:actor-1"))

	release, err = guard.Acquire(ctx, "actor-1")
	require.NoError(t, err)
	release()
}

func TestRedisGuard_ExpiresAfterTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	guard := NewRedisGuard(client, time.Second, logger.NewTestLogger(t))

	_, err := guard.Acquire(context.Background(), "actor-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	release, err := guard.Acquire(context.Background(), "actor-1")
	require.NoError(t, err)
	release()
}

func TestRedisGuard_StoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	_, err := NewRedisGuard(client, time.Second, logger.NewTestLogger(t)).Acquire(context.Background(), "actor-1")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeExternalServiceUnavailable, errors.FromError(err).Code)
}

func TestMemoryGuard(t *testing.T) {
	guard := NewMemoryGuard()
	ctx := context.Background()

	release, err := guard.Acquire(ctx, "actor-1")
	require.NoError(t, err)

	_, err = guard.Acquire(ctx, "actor-1")
	assert.True(t, goerrors.Is(err, errors.ErrSubmissionInFlight))

	release()
	release()

	release, err = guard.Acquire(ctx, "actor-1")
	require.NoError(t, err)
	release()
}

func TestRedisGuard_LogsFailedRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	core, logs := observer.New(zapcore.WarnLevel)
	guard := NewRedisGuard(client, time.Minute, logger.NewZapAdapter(zap.New(core)))

	release, err := guard.Acquire(context.Background(), "actor-1")
	require.NoError(t, err)

	mr.Close()
	release()

	entries := logs.FilterMessage("Failed to release submission guard").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "actor-1", entries[0].ContextMap()["actorId"])
}
