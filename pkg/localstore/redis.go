package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pawmart/storefront/pkg/config"
	"github.com/pawmart/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const keyNamespace = "storefront"

type redisCmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// RedisStore backs the KV with a shared Redis instance. Used for kiosk and
// shared-terminal deployments where several storefront processes present
// the same cart.
type RedisStore struct {
	store redisCmdable
	raw   *redis.Client
	logg  *logger.Logger
}

// OpenRedis bootstraps a Redis-backed store and verifies connectivity.
func OpenRedis(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*RedisStore, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{store: raw, raw: raw, logg: logg}, nil
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

func redisKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s:%s", keyNamespace, namespace, key)
}

func (s *RedisStore) Get(ctx context.Context, namespace, key string, dest any) (bool, error) {
	payload, err := s.store.Get(ctx, redisKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s/%s: %w", namespace, key, err)
	}
	if !decode(payload, dest) {
		if s.logg != nil {
			ctx = s.logg.WithFields(ctx, map[string]any{"namespace": namespace, "key": key})
			s.logg.Warn(ctx, "localstore.corrupt_record")
		}
		return false, nil
	}
	return true, nil
}

func (s *RedisStore) Put(ctx context.Context, namespace, key string, value any) error {
	payload, err := encode(value)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", namespace, key, err)
	}
	if err := s.store.Set(ctx, redisKey(namespace, key), payload, 0).Err(); err != nil {
		return fmt.Errorf("writing %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, namespace, key string) error {
	if err := s.store.Del(ctx, redisKey(namespace, key)).Err(); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.raw == nil {
		return nil
	}
	return s.raw.Close()
}
