package submitissuereport

import (
	"context"
	"sync"
	"time"

	"birdwatch-support/internal/common/database"
	"birdwatch-support/internal/common/errors"
	"birdwatch-support/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// Guard rejects a second submission from an actor while one is in flight.
type Guard interface {
	// Acquire returns a release func, or a SubmissionInFlightError.
	Acquire(ctx context.Context, actorID string) (func(), error)
}

// RedisGuard holds a per-actor RedisLock for the duration of a submission.
// The TTL frees the slot if the process dies mid-submission.
type RedisGuard struct {
	client redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisGuard(client redis.Cmdable, ttl time.Duration, log logger.Logger) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl, logger: log}
}

func guardKey(actorID string) string {
	return "support:inflight:" + actorID
}

func (g *RedisGuard) Acquire(ctx context.Context, actorID string) (func(), error) {
	lock := database.NewRedisLock(g.client, guardKey(actorID), g.ttl)
	ok, err := lock.TryLock(ctx)
	if err != nil {
		return nil, errors.NewExternalServiceError("submission guard", err)
	}
	if !ok {
		return nil, errors.NewSubmissionInFlightError(actorID)
	}
	return func() {
		if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			g.logger.Warn("Failed to release submission guard", map[string]interface{}{
				"actorId": actorID,
				"ttl":     g.ttl.String(),
				"error":   err,
			})
		}
	}, nil
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{inFlight: make(map[string]struct{})}
}

func (g *MemoryGuard) Acquire(ctx context.Context, actorID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[actorID]; busy {
		return nil, errors.NewSubmissionInFlightError(actorID)
	}
	g.inFlight[actorID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, actorID)
			g.mu.Unlock()
		})
	}, nil
}
