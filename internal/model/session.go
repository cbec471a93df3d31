package model

import (
	"time"
	"unicode/utf8"
)

// DefaultTitle 新会话的默认标题
const DefaultTitle = "New Chat"

// 标题截断参数
const (
	TitleMaxLen   = 50
	TitleEllipsis = "..."
)

// Session 一次保存下来的对话
// ID 创建后不可变；标题自动推导只在仍为默认标题时发生一次
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone 深拷贝消息切片，避免调用方修改共享底层数组
func (s *Session) Clone() Session {
	out := *s
	out.Messages = CloneMessages(s.Messages)
	return out
}

// FirstUserMessage 第一条用户消息，没有则返回 nil
func (s *Session) FirstUserMessage() *Message {
	for i := range s.Messages {
		if s.Messages[i].IsUser() {
			return &s.Messages[i]
		}
	}
	return nil
}

// SetMessages 替换消息列表，刷新 UpdatedAt 并尝试推导标题
// 返回标题是否在本次调用中发生了变化
func (s *Session) SetMessages(messages []Message, now time.Time) bool {
	s.Messages = CloneMessages(messages)
	s.UpdatedAt = now
	return s.DeriveTitle()
}

// DeriveTitle 标题仍为默认值且存在用户消息时，用第一条用户消息生成标题
func (s *Session) DeriveTitle() bool {
	if s.Title != DefaultTitle {
		return false
	}
	first := s.FirstUserMessage()
	if first == nil {
		return false
	}
	s.Title = TruncateTitle(first.Content)
	return true
}

// TruncateTitle 截断到 TitleMaxLen 个字符，超长时追加省略号
// 按字符（rune）计数，避免切断多字节字符
func TruncateTitle(content string) string {
	if utf8.RuneCountInString(content) <= TitleMaxLen {
		return content
	}
	runes := []rune(content)
	return string(runes[:TitleMaxLen]) + TitleEllipsis
}

// CloneMessages 复制消息切片（nil 保持为 nil）
func CloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	copy(out, in)
	return out
}
