// Package store 会话存储
// 整个会话集合以 JSON 数组的形式保存在一个存储键下，每次修改都整体重写
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"datachat-cli/internal/apperr"
	"datachat-cli/internal/model"
)

// DefaultKey 会话集合的存储键
const DefaultKey = "chatbot_sessions"

// ErrNotFound 会话不存在
var ErrNotFound = errors.New("session not found")

// Backend 单键存储后端
// Load 在键不存在时返回 (nil, nil)
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Close() error
}

// Store 会话集合的读写
// 顺序即最近触达顺序：Put 的会话移动到最前面
type Store struct {
	mu      sync.Mutex
	backend Backend
}

// New 创建 Store
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// List 按最近触达顺序返回所有会话
func (s *Store) List(ctx context.Context) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Get 根据 ID 获取会话
func (s *Store) Get(ctx context.Context, id string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.loadLocked(ctx)
	if err != nil {
		return model.Session{}, err
	}
	for _, item := range sessions {
		if item.ID == id {
			return item, nil
		}
	}
	return model.Session{}, ErrNotFound
}

// Put 插入或替换会话，并移到最前
func (s *Store) Put(ctx context.Context, session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}

	updated := make([]model.Session, 0, len(sessions)+1)
	updated = append(updated, session)
	for _, item := range sessions {
		if item.ID != session.ID {
			updated = append(updated, item)
		}
	}
	return s.saveLocked(ctx, updated)
}

// Delete 删除会话，不存在时不做任何事
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}

	updated := make([]model.Session, 0, len(sessions))
	for _, item := range sessions {
		if item.ID != id {
			updated = append(updated, item)
		}
	}
	if len(updated) == len(sessions) {
		return nil
	}
	return s.saveLocked(ctx, updated)
}

// Close 关闭后端连接
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) loadLocked(ctx context.Context) ([]model.Session, error) {
	data, err := s.backend.Load(ctx)
	if err != nil {
		return nil, apperr.Storage("load", err)
	}
	if len(data) == 0 {
		return []model.Session{}, nil
	}

	var sessions []model.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, apperr.Storage("decode", err)
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	return sessions, nil
}

func (s *Store) saveLocked(ctx context.Context, sessions []model.Session) error {
	data, err := json.Marshal(sessions)
	if err != nil {
		return apperr.Storage("encode", err)
	}
	return apperr.Storage("save", s.backend.Save(ctx, data))
}
