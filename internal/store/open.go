package store

import (
	"context"
	"fmt"
	"time"
)

// 后端类型
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQL    = "sql"
)

// Options 后端选择与连接参数
type Options struct {
	Backend   string
	Key       string
	TTL       time.Duration
	Path      string
	SQLDriver string
	SQLDSN    string
	Redis     RedisOptions
}

// Open 按配置创建后端并包装为 Store
func Open(ctx context.Context, opts Options) (*Store, error) {
	key := opts.Key
	if key == "" {
		key = DefaultKey
	}

	var (
		backend Backend
		err     error
	)
	switch opts.Backend {
	case "", BackendMemory:
		backend = NewMemoryBackend(key, opts.TTL)
	case BackendFile:
		if opts.Path == "" {
			return nil, fmt.Errorf("file backend requires store.path")
		}
		backend, err = NewFileBackend(opts.Path)
	case BackendRedis:
		backend, err = NewRedisBackend(ctx, opts.Redis, key, opts.TTL)
	case BackendSQL:
		backend, err = NewSQLBackend(opts.SQLDriver, opts.SQLDSN, key)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return New(backend), nil
}
