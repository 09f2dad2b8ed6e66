package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/banksys/balance-ledger/pkg"
	"github.com/redis/go-redis/v9"
)

// Sentinels returned by the mutation script. Real balances are never
// negative, so they cannot collide with a valid result.
const (
	scriptInsufficientFunds = -1
	scriptNotSeeded         = -2
)

// applyDeltaScript is the atomic mutation operation. Redis executes scripts
// serially per node, so the read, the bounds check, the balance write and
// the opId increment form one indivisible unit.
var applyDeltaScript = redis.NewScript(`
local balance = redis.call('HGET', KEYS[1], 'balance')
if not balance then
  return {-2, 0}
end
local new_balance = tonumber(balance) + tonumber(ARGV[1])
if new_balance < 0 then
  return {-1, 0}
end
local op_id = redis.call('HINCRBY', KEYS[1], 'op_id', 1)
redis.call('HSET', KEYS[1], 'balance', new_balance)
return {new_balance, op_id}
`)

// seedScript installs a durable snapshot only when the account is cold.
var seedScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'balance', ARGV[1], 'op_id', ARGV[2])
return 1
`)

// RedisStore implements Store on a Redis hash per account.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func ledgerKey(accountID string) string {
	return pkg.LedgerKeyPrefix + accountID
}

func (s *RedisStore) ApplyDelta(ctx context.Context, accountID string, delta int64) (Mutation, error) {
	res, err := applyDeltaScript.Run(ctx, s.client, []string{ledgerKey(accountID)}, delta).Int64Slice()
	if err != nil {
		return Mutation{}, err
	}
	if len(res) != 2 {
		return Mutation{}, fmt.Errorf("unexpected script reply of length %d", len(res))
	}
	switch res[0] {
	case scriptNotSeeded:
		return Mutation{}, ErrNotSeeded
	case scriptInsufficientFunds:
		return Mutation{}, pkg.ErrInsufficientFunds
	}
	return Mutation{Balance: res[0], OpID: res[1]}, nil
}

func (s *RedisStore) Seed(ctx context.Context, accountID string, balance, opID int64) error {
	return seedScript.Run(ctx, s.client, []string{ledgerKey(accountID)}, balance, opID).Err()
}

func (s *RedisStore) Balance(ctx context.Context, accountID string) (Mutation, bool, error) {
	vals, err := s.client.HMGet(ctx, ledgerKey(accountID), "balance", "op_id").Result()
	if err != nil {
		return Mutation{}, false, err
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return Mutation{}, false, nil
	}
	var m Mutation
	if m.Balance, err = strconv.ParseInt(vals[0].(string), 10, 64); err != nil {
		return Mutation{}, false, err
	}
	if m.OpID, err = strconv.ParseInt(vals[1].(string), 10, 64); err != nil {
		return Mutation{}, false, err
	}
	return m, true, nil
}

var _ Store = (*RedisStore)(nil)
