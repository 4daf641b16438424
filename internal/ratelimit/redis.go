package ratelimit

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisWindowTTL keeps window members around slightly past the longest
// evaluated window.
const redisWindowTTL = 25 * time.Hour

// RedisCounter keeps a per-service sliding window of call timestamps in a
// Redis sorted set. It is a read-side summary of the ledger, not a second
// source of truth: after a restart the window warms up as calls are noted.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

// NewRedisCounter constructs a RedisCounter.
func NewRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	return &RedisCounter{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Note adds one call at the given time to the service's window and prunes
// members older than the longest evaluated window.
func (c *RedisCounter) Note(ctx context.Context, serviceName string, at time.Time) error {
	if c == nil || c.client == nil || serviceName == "" {
		return nil
	}
	key := c.buildKey(serviceName)
	member := strconv.FormatInt(at.UnixNano(), 10)
	pruneBefore := at.Add(-WindowDay - time.Minute).UnixNano()

	pipe := c.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixNano()), Member: member})
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(pruneBefore, 10))
	pipe.Expire(ctx, key, redisWindowTTL)
	_, errExec := pipe.Exec(ctx)
	return errExec
}

// CountSince counts window members at or after since. Entries noted for
// shorter windows stay in place for the longer ones, so no pruning happens
// on the read path.
func (c *RedisCounter) CountSince(ctx context.Context, serviceName string, since time.Time) (int64, error) {
	key := c.buildKey(serviceName)
	count, errCount := c.client.ZCount(ctx, key, strconv.FormatInt(since.UnixNano(), 10), "+inf").Result()
	if errCount != nil {
		return 0, errCount
	}
	return count, nil
}

func (c *RedisCounter) buildKey(serviceName string) string {
	if c.prefix == "" {
		return "rl:" + serviceName
	}
	return c.prefix + ":" + serviceName
}
