package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// WithLease выполняет функцию под короткой арендой ключа: SetNX выдаёт
// аренду одному владельцу, остальные получают отказ молча. Используется как
// однописательный замок на сдвиг чекпоинта. При ошибке fn аренда снимается,
// чтобы повтор не ждал истечения TTL.
func (c *RedisCache) WithLease(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	ok, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer func() { _ = c.client.Del(ctx, key).Err() }()
	return fn()
}

// Set задаёт значение с TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Get возвращает значение; redis.Nil прокидывается вызывающему.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.client.Get(ctx, key).Bytes()
}
