// Package session 会话生命周期：创建、打开、删除以及写回存储
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"datachat-cli/internal/logger"
	"datachat-cli/internal/model"
	"datachat-cli/internal/store"
)

// ErrClosed 管理器已关闭
var ErrClosed = errors.New("session manager closed")

// Manager 管理会话的存储读写
// 写操作进入后台队列，失败不影响内存状态，通过 ErrorHandler 上报
type Manager struct {
	store     *store.Store
	log       *logger.Logger
	now       func() time.Time
	persister *persister
	onError   func(error)
}

// Option 管理器可选项
type Option func(*Manager)

// WithLogger 设置日志
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock 设置时间来源（测试用）
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithErrorHandler 后台写入失败时的回调
func WithErrorHandler(fn func(error)) Option {
	return func(m *Manager) {
		m.onError = fn
	}
}

// NewManager 创建会话管理器
func NewManager(st *store.Store, opts ...Option) *Manager {
	m := &Manager{
		store: st,
		log:   logger.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.persister = newPersister(st, m.reportError)
	return m
}

// Create 创建新会话：生成 ID，消息为空，title 为空时使用默认标题
func (m *Manager) Create(title string) (model.Session, error) {
	if title == "" {
		title = model.DefaultTitle
	}
	now := m.now()
	s := model.Session{
		ID:        newID(),
		Title:     title,
		Messages:  []model.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.log.Info("session", "session created", map[string]any{"session_id": s.ID})
	return s, m.Persist(s)
}

// Open 读取会话；历史为空时注入欢迎消息
// seeded 表示是否注入了欢迎消息（调用方应将其写回）
func (m *Manager) Open(ctx context.Context, id string) (s model.Session, seeded bool, err error) {
	if err := m.persister.flush(ctx); err != nil {
		return model.Session{}, false, err
	}
	s, err = m.store.Get(ctx, id)
	if err != nil {
		return model.Session{}, false, err
	}
	if len(s.Messages) == 0 {
		s.Messages = []model.Message{model.NewWelcomeMessage(m.now())}
		seeded = true
	}
	return s, seeded, nil
}

// UpdateMessages 替换会话消息：刷新 UpdatedAt、推导标题并写回
// 返回更新后的会话
func (m *Manager) UpdateMessages(s model.Session, messages []model.Message) (model.Session, error) {
	if s.SetMessages(messages, m.now()) {
		m.log.Debug("session", "title derived", map[string]any{"session_id": s.ID})
	}
	return s, m.Persist(s)
}

// Persist 异步写回会话
func (m *Manager) Persist(s model.Session) error {
	if !m.persister.enqueue(op{kind: opPut, id: s.ID, session: s.Clone()}) {
		return ErrClosed
	}
	return nil
}

// Delete 删除会话，不存在时不做任何事
func (m *Manager) Delete(id string) error {
	if !m.persister.enqueue(op{kind: opDelete, id: id}) {
		return ErrClosed
	}
	m.log.Info("session", "session deleted", map[string]any{"session_id": id})
	return nil
}

// List 按最近触达顺序列出会话（先等待未完成的写入）
func (m *Manager) List(ctx context.Context) ([]model.Session, error) {
	if err := m.persister.flush(ctx); err != nil {
		return nil, err
	}
	return m.store.List(ctx)
}

// Get 读取会话，不注入欢迎消息
func (m *Manager) Get(ctx context.Context, id string) (model.Session, error) {
	if err := m.persister.flush(ctx); err != nil {
		return model.Session{}, err
	}
	return m.store.Get(ctx, id)
}

// Flush 等待所有写入完成
func (m *Manager) Flush(ctx context.Context) error {
	return m.persister.flush(ctx)
}

// Close 写完剩余数据后停止后台写入，不关闭存储
func (m *Manager) Close(ctx context.Context) error {
	return m.persister.close(ctx)
}

func (m *Manager) reportError(err error) {
	m.log.Error("session", "persist failed", map[string]any{"error": err})
	if m.onError != nil {
		m.onError(err)
	}
}

// newID 时间有序的 UUIDv7，失败时退回随机 UUID
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
