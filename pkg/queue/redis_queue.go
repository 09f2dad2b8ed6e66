package queue

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue on a Redis list (RPUSH producer side, LPOP
// consumer side), keeping queue state in the same store as the ledger.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Push(ctx context.Context, payload []byte) error {
	return q.client.RPush(ctx, q.key, payload).Err()
}

func (q *RedisQueue) PopBatch(ctx context.Context, max int) ([][]byte, error) {
	if max <= 0 {
		return nil, nil
	}
	vals, err := q.client.LPopCount(ctx, q.key, max).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	batch := make([][]byte, 0, len(vals))
	for _, v := range vals {
		batch = append(batch, []byte(v))
	}
	return batch, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

var _ Queue = (*RedisQueue)(nil)
