package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/potooio/herald/internal/types"
)

// ackScript drops the first ARGV[1] entries of the list at KEYS[1] and removes
// ARGV[2] from the index set KEYS[2] once the list is empty.
var ackScript = redis.NewScript(`
local n = tonumber(ARGV[1])
if n > 0 then
	redis.call('LTRIM', KEYS[1], n, -1)
end
local left = redis.call('LLEN', KEYS[1])
if left == 0 then
	redis.call('SREM', KEYS[2], ARGV[2])
end
return left
`)

// RedisOptions configures the redis client.
type RedisOptions struct {
	Addrs    []string
	Password string
	DB       int
	// Prefix namespaces every key, e.g. "herald:".
	Prefix string
}

// NewRedisClient returns a cluster client for several addresses and a single-node
// client otherwise.
func NewRedisClient(opts RedisOptions) redis.UniversalClient {
	if len(opts.Addrs) > 1 {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    opts.Addrs,
			Password: opts.Password,
		})
	}
	addr := "localhost:6379"
	if len(opts.Addrs) == 1 {
		addr = opts.Addrs[0]
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// RedisDigestQueue keeps one list of JSON entries per user plus an index set of
// users with pending entries.
type RedisDigestQueue struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisDigestQueue creates a queue on an existing client.
func NewRedisDigestQueue(client redis.UniversalClient, prefix string) *RedisDigestQueue {
	return &RedisDigestQueue{client: client, prefix: prefix}
}

// The hash tag keeps list and index in one cluster slot for the ack script.
func (q *RedisDigestQueue) listKey(userID string) string {
	return q.prefix + "{digest}:pending:" + userID
}

func (q *RedisDigestQueue) indexKey() string {
	return q.prefix + "{digest}:users"
}

// Append implements types.DigestQueue.
func (q *RedisDigestQueue) Append(ctx context.Context, userID string, entry types.DigestEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode digest entry: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, q.listKey(userID), raw)
		p.SAdd(ctx, q.indexKey(), userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append digest entry for %s: %w", userID, err)
	}
	return nil
}

// Pending implements types.DigestQueue.
func (q *RedisDigestQueue) Pending(ctx context.Context, userID string) ([]types.DigestEntry, error) {
	raws, err := q.client.LRange(ctx, q.listKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read digest entries for %s: %w", userID, err)
	}
	if len(raws) == 0 {
		return nil, nil
	}
	out := make([]types.DigestEntry, 0, len(raws))
	for _, raw := range raws {
		var e types.DigestEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode digest entry for %s: %w", userID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Ack implements types.DigestQueue.
func (q *RedisDigestQueue) Ack(ctx context.Context, userID string, n int) error {
	if n <= 0 {
		return nil
	}
	keys := []string{q.listKey(userID), q.indexKey()}
	if err := ackScript.Run(ctx, q.client, keys, n, userID).Err(); err != nil {
		return fmt.Errorf("ack %d digest entries for %s: %w", n, userID, err)
	}
	return nil
}

// Users implements types.DigestQueue.
func (q *RedisDigestQueue) Users(ctx context.Context) ([]string, error) {
	users, err := q.client.SMembers(ctx, q.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list digest users: %w", err)
	}
	sort.Strings(users)
	return users, nil
}
