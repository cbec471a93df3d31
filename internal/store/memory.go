package store

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryBackend 进程内存储，生命周期等同于一次交互进程（相当于浏览器标签页）
// ttl 为 0 表示进程存活期间一直有效
type MemoryBackend struct {
	cache *cache.Cache
	key   string
	ttl   time.Duration
}

// NewMemoryBackend 创建内存后端
func NewMemoryBackend(key string, ttl time.Duration) *MemoryBackend {
	expiration := ttl
	if expiration <= 0 {
		expiration = cache.NoExpiration
	}
	return &MemoryBackend{
		cache: cache.New(expiration, 10*time.Minute),
		key:   key,
		ttl:   expiration,
	}
}

func (b *MemoryBackend) Load(ctx context.Context) ([]byte, error) {
	if x, found := b.cache.Get(b.key); found {
		data := x.([]byte)
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	return nil, nil
}

func (b *MemoryBackend) Save(ctx context.Context, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)
	b.cache.Set(b.key, stored, b.ttl)
	return nil
}

func (b *MemoryBackend) Close() error {
	b.cache.Flush()
	return nil
}
