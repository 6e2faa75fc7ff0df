package modestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	modeOn  = "1"
	modeOff = "0"
)

// RedisOptions configures the Redis-backed store.
type RedisOptions struct {
	// URL is a redis:// or rediss:// connection URL.
	URL string

	// KeyPrefix is prepended to every contact id.
	KeyPrefix string

	// TTL expires idle flags. Zero keeps them forever.
	TTL time.Duration
}

// Redis shares audio-mode flags between replicas through Redis.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	slog.Info("connected to redis mode store", "addr", redisOpts.Addr, "key_prefix", opts.KeyPrefix)
	return NewRedisWithClient(client, opts.KeyPrefix, opts.TTL), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(contactID string) string {
	return r.prefix + contactID
}

// AudioMode reads the contact's flag. A missing key is TEXT_MODE.
func (r *Redis) AudioMode(ctx context.Context, contactID string) (bool, error) {
	val, err := r.client.Get(ctx, r.key(contactID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading audio mode: %w", err)
	}
	return val == modeOn, nil
}

// SetAudioMode writes the contact's flag, refreshing the TTL when one is set.
func (r *Redis) SetAudioMode(ctx context.Context, contactID string, enabled bool) error {
	val := modeOff
	if enabled {
		val = modeOn
	}
	if err := r.client.Set(ctx, r.key(contactID), val, r.ttl).Err(); err != nil {
		return fmt.Errorf("writing audio mode: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
