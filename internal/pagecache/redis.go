package pagecache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

// Redis хранит страницы во внешнем redis, общем для нескольких процессов.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    logrus.FieldLogger
}

// NewRedis подключается к redis по URL вида redis://host:6379/0.
func NewRedis(url, prefix string, ttl time.Duration, log logrus.FieldLogger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Annotate(err, "parse redis url")
	}
	return &Redis{client: redis.NewClient(opts), prefix: prefix, ttl: ttl, log: log}, nil
}

// Ping проверяет соединение при старте.
func (c *Redis) Ping(ctx context.Context) error {
	return errors.Annotate(c.client.Ping(ctx).Err(), "ping redis")
}

// Get считает недоступность redis промахом, чтобы страница просто отрисовалась заново.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	body, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.WithError(err).Warn("page cache get failed")
		return nil, false
	}
	return body, true
}

func (c *Redis) Set(ctx context.Context, key string, body []byte) {
	if err := c.client.Set(ctx, c.prefix+key, body, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("page cache set failed")
	}
}

// Clear удаляет все ключи с префиксом кеша.
func (c *Redis) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Annotate(err, "scan page cache keys")
	}
	if len(keys) == 0 {
		return nil
	}
	return errors.Annotate(c.client.Del(ctx, keys...).Err(), "delete page cache keys")
}

// Close закрывает соединения.
func (c *Redis) Close() error {
	return c.client.Close()
}
