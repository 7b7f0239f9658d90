package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-wordcount-bot/internal/domain"
	"tg-wordcount-bot/internal/infra/metrics"
)

const keyPrefix = "wcb:"

// keyStore описывает команды Redis, которыми пользуется дедупликатор.
type keyStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisDeduper реализует domain.Deduper через Redis SETNX.
type RedisDeduper struct {
	client keyStore
}

// NewRedis создаёт дедупликатор.
func NewRedis(client keyStore) *RedisDeduper {
	return &RedisDeduper{client: client}
}

// Connect создаёт клиента Redis и проверяет соединение.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Once выполняет функцию, если ключ ещё не задан.
// При ошибке fn ключ снимается, чтобы повторная доставка апдейта обработалась.
func (c *RedisDeduper) Once(key string, ttl time.Duration, fn func() error) error {
	ctx := context.Background()
	start := time.Now()
	ok, err := c.client.SetNX(ctx, keyPrefix+key, "1", ttl).Result()
	metrics.ObserveNetworkRequest("redis", "setnx", start, err)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		_ = c.client.Del(ctx, keyPrefix+key).Err()
		return err
	}
	return nil
}

var _ domain.Deduper = (*RedisDeduper)(nil)
