// Package pagecache кеширует целиком отрисованные страницы на фиксированное время.
//
// Записи не инвалидируются при изменении данных и истекают сами по TTL, поэтому
// новый пост появляется в закешированной ленте только после истечения записи.
package pagecache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache - хранилище отрисованных страниц. TTL задается при создании.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
	Clear(ctx context.Context) error
}

// Memory хранит страницы в памяти процесса.
type Memory struct {
	lru *lru.LRU[string, []byte]
}

// NewMemory создает кеш без ограничения размера, записи живут ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{lru: lru.NewLRU[string, []byte](0, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	return m.lru.Get(key)
}

func (m *Memory) Set(_ context.Context, key string, body []byte) {
	// Тело копируется: буфер ответа может переиспользоваться
	m.lru.Add(key, append([]byte(nil), body...))
}

func (m *Memory) Clear(context.Context) error {
	m.lru.Purge()
	return nil
}
