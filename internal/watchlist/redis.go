package watchlist

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

var _ Store = (*RedisStore)(nil)

// RedisStore keeps one Redis SET of coins per subscriber. SADD and SREM
// reply counts decide the outcome, so duplicate handling is atomic.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "coinsentinel"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Add(ctx context.Context, sub Subscriber, coin string) (Outcome, error) {
	coin, err := NormalizeCoin(coin)
	if err != nil {
		return 0, err
	}

	n, err := r.client.SAdd(ctx, r.key(sub), coin).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: sadd: %v", ErrStoreUnavailable, err)
	}
	if n == 0 {
		return AlreadyPresent, nil
	}
	return Added, nil
}

func (r *RedisStore) Remove(ctx context.Context, sub Subscriber, coin string) (Outcome, error) {
	coin, err := NormalizeCoin(coin)
	if err != nil {
		return 0, err
	}

	n, err := r.client.SRem(ctx, r.key(sub), coin).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: srem: %v", ErrStoreUnavailable, err)
	}
	if n == 0 {
		return NotPresent, nil
	}
	return Removed, nil
}

func (r *RedisStore) ListCoins(ctx context.Context, sub Subscriber) ([]string, error) {
	coins, err := r.client.SMembers(ctx, r.key(sub)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: smembers: %v", ErrStoreUnavailable, err)
	}
	if coins == nil {
		coins = []string{}
	}
	sort.Strings(coins)
	return coins, nil
}

// ListAll reads every subscriber set. Each set is read atomically; the
// snapshot as a whole is not.
func (r *RedisStore) ListAll(ctx context.Context) (Snapshot, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.key("*"), scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan: %v", ErrStoreUnavailable, err)
	}

	snap := make(Snapshot, len(keys))
	if len(keys) == 0 {
		return snap, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.SMembers(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: smembers pipeline: %v", ErrStoreUnavailable, err)
	}

	for i, key := range keys {
		coins := cmds[i].Val()
		if len(coins) == 0 {
			continue
		}
		sort.Strings(coins)
		snap[r.subscriber(key)] = coins
	}
	return snap, nil
}

func (r *RedisStore) key(sub Subscriber) string {
	return fmt.Sprintf("%s:watchlist:%s", r.prefix, sub)
}

func (r *RedisStore) subscriber(key string) Subscriber {
	return Subscriber(strings.TrimPrefix(key, r.prefix+":watchlist:"))
}
