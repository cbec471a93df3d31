// Package model 定义会话与消息的数据结构
package model

import (
	"strings"
	"time"
)

// Role 消息角色
type Role string

// 消息角色常量
const (
	RoleUser Role = "user" // 用户提问
	RoleBot  Role = "bot"  // 助手回答（包括错误占位消息）
)

// ErrorPrefix 错误占位消息的内容前缀
const ErrorPrefix = "Error: "

// WelcomeMessageID 欢迎消息的固定 ID
const WelcomeMessageID int64 = 1

// WelcomeText 空会话中注入的欢迎语
const WelcomeText = `Hi! I'm your data analytics assistant. Ask me anything about your database - like "Show sales trends" or "What are the top products?"`

// Message 会话中的一条消息
// SQLQuery / Data / Visualization 只出现在成功查询之后的 bot 消息上
type Message struct {
	// ID 会话内唯一，毫秒时间戳；配对的回答为提问 ID + 1
	ID int64 `json:"id"`

	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	SQLQuery      *string  `json:"sqlQuery,omitempty"`
	Data          *Records `json:"data,omitempty"`
	Visualization *string  `json:"visualization,omitempty"`
	Heading       *string  `json:"heading,omitempty"`

	// 分页信息，来自 /ask 响应
	Page         int     `json:"page,omitempty"`
	TotalRows    int     `json:"totalRows,omitempty"`
	HasMore      bool    `json:"hasMore,omitempty"`
	Summary      *string `json:"summary,omitempty"`
	ExecutionSec float64 `json:"executionTime,omitempty"`
}

// IsUser 是否为用户消息
func (m *Message) IsUser() bool {
	return m.Role == RoleUser
}

// IsBot 是否为助手消息
func (m *Message) IsBot() bool {
	return m.Role == RoleBot
}

// IsError 是否为错误占位消息
func (m *Message) IsError() bool {
	return m.Role == RoleBot && strings.HasPrefix(m.Content, ErrorPrefix)
}

// HasResult 是否携带查询结果
func (m *Message) HasResult() bool {
	return m.SQLQuery != nil || m.Data != nil || m.Visualization != nil
}

// NewWelcomeMessage 构造欢迎消息
func NewWelcomeMessage(now time.Time) Message {
	return Message{
		ID:        WelcomeMessageID,
		Role:      RoleBot,
		Content:   WelcomeText,
		Timestamp: now,
	}
}
