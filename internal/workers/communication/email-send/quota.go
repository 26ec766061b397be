package emailsend

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const quotaKeyTTL = 48 * time.Hour

// QuotaCounter reserves sends against a per-day limit. Reserve must be atomic
// under concurrent callers.
type QuotaCounter interface {
	// Reserve takes one slot for day. ok is false when the limit is already
	// reached, in which case no slot is taken.
	Reserve(ctx context.Context, day string, limit int64) (used int64, ok bool, err error)
	// Usage reports the slots taken for day.
	Usage(ctx context.Context, day string) (int64, error)
}

// reserveScript increments the day counter, sets its expiry on first use and
// backs the increment out when it would exceed the limit.
var reserveScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
	redis.call("DECR", KEYS[1])
	return -1
end
return current
`)

// RedisQuotaCounter keeps one counter per UTC day under mail:quota:<day>.
type RedisQuotaCounter struct {
	client redis.Cmdable
}

func NewRedisQuotaCounter(client redis.Cmdable) *RedisQuotaCounter {
	return &RedisQuotaCounter{client: client}
}

func quotaKey(day string) string {
	return "mail:quota:" + day
}

// QuotaDay formats t as the UTC day used for quota keys.
func QuotaDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (q *RedisQuotaCounter) Reserve(ctx context.Context, day string, limit int64) (int64, bool, error) {
	n, err := reserveScript.Run(ctx, q.client, []string{quotaKey(day)}, limit, quotaKeyTTL.Milliseconds()).Int64()
	if err != nil {
		return 0, false, fmt.Errorf("reserve quota: %w", err)
	}
	if n < 0 {
		return limit, false, nil
	}
	return n, true, nil
}

func (q *RedisQuotaCounter) Usage(ctx context.Context, day string) (int64, error) {
	val, err := q.client.Get(ctx, quotaKey(day)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read quota: %w", err)
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quota %q: %w", val, err)
	}
	return n, nil
}
