package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend 把集合写入本地 JSON 文件，先写临时文件再 rename
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend 创建文件后端，目录不存在时自动创建
func NewFileBackend(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileBackend{path: path}, nil
}

func (b *FileBackend) Load(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func (b *FileBackend) Save(ctx context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tmpPath := b.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, b.path)
}

func (b *FileBackend) Close() error {
	return nil
}
