package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis adapts a Redis server to the Storage contract. INCRBY is Redis's
// native atomic counter, which satisfies the linearizable-increment
// invariant without any client-side locking.
type Redis struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to a Redis server given a URL of the form
// redis://[user:pass@]host:port/db and verifies the connection.
func OpenRedis(ctx context.Context, url, namespace string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, unavailable("redis ping", err)
	}
	return &Redis{client: client, prefix: namespace + ":"}, nil
}

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("redis get", err)
	}
	return raw, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0 // redis: 0 expiration means persist
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return unavailable("redis set", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return unavailable("redis del", err)
	}
	return nil
}

func (r *Redis) Incr(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	n, err := r.client.IncrBy(ctx, r.key(key), amount).Result()
	if err != nil {
		return 0, unavailable("redis incrby", err)
	}
	// Only the creating increment stamps the TTL; refreshing it on every
	// call would silently stretch the window.
	if n == amount && ttl > 0 {
		if err := r.client.Expire(ctx, r.key(key), ttl).Err(); err != nil {
			return 0, unavailable("redis expire", err)
		}
	}
	return n, nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, unavailable("redis exists", err)
	}
	return n > 0, nil
}

func (r *Redis) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return unavailable("redis del", err)
		}
	}
	if err := iter.Err(); err != nil {
		return unavailable("redis scan", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }
