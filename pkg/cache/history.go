package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/banksys/balance-ledger/pkg"
	"github.com/redis/go-redis/v9"
)

// HistoryCache caches transaction-history query results per
// (accountId, startDate, endDate) range with a TTL. Mutations invalidate
// every cached range for the account at once, so a fresh read never sees a
// range computed before the mutation.
type HistoryCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// InvalidateAccount deletes all cached ranges for the account.
	InvalidateAccount(ctx context.Context, accountID string) error
}

// HistoryKey builds the cache key for one date range of one account.
func HistoryKey(accountID, startDate, endDate string) string {
	return fmt.Sprintf("%s%s:%s:%s", pkg.HistoryCachePrefix, accountID, startDate, endDate)
}

type RedisHistoryCache struct {
	client *redis.Client
}

func NewRedisHistoryCache(client *redis.Client) *RedisHistoryCache {
	return &RedisHistoryCache{client: client}
}

func (c *RedisHistoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisHistoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// InvalidateAccount walks the keyspace with SCAN MATCH on the account prefix
// and deletes every match. SCAN keeps the walk incremental instead of
// blocking Redis the way KEYS would.
func (c *RedisHistoryCache) InvalidateAccount(ctx context.Context, accountID string) error {
	pattern := fmt.Sprintf("%s%s:*", pkg.HistoryCachePrefix, accountID)
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

var _ HistoryCache = (*RedisHistoryCache)(nil)
