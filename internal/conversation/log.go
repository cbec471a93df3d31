// Package conversation 维护当前会话的有序消息列表
// 消息只追加不重排，数组顺序即时间顺序（时间戳相同也不影响）
package conversation

import (
	"errors"
	"time"

	"datachat-cli/internal/model"
)

// FallbackReply 后端响应为空时的回复
const FallbackReply = "Sorry, I couldn't process that request."

// ConnectionTrouble 网络错误没有可读说明时的回复
const ConnectionTrouble = "I'm having trouble connecting to the server. Please try again later."

// ErrMessageNotFound 消息不存在
var ErrMessageNotFound = errors.New("message not found")

// Reply 一次成功查询的回答
type Reply struct {
	Content       string
	SQLQuery      *string
	Data          *model.Records
	Visualization *string
	Heading       *string
	Summary       *string
	Page          int
	TotalRows     int
	HasMore       bool
	ExecutionSec  float64
}

// Log 消息列表
// 不加锁，由持有应用状态的调用方串行访问
type Log struct {
	messages []model.Message
	lastID   int64
	now      func() time.Time
}

// New 创建空消息列表，now 为 nil 时使用 time.Now
func New(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{now: now}
}

// Load 替换为另一个会话的消息
func (l *Log) Load(messages []model.Message) {
	l.messages = model.CloneMessages(messages)
	l.lastID = 0
	for _, m := range l.messages {
		if m.ID > l.lastID {
			l.lastID = m.ID
		}
	}
}

// Messages 返回消息副本
func (l *Log) Messages() []model.Message {
	return model.CloneMessages(l.messages)
}

// Len 消息数
func (l *Log) Len() int {
	return len(l.messages)
}

// AppendUser 追加用户消息（在发出请求之前）
func (l *Log) AppendUser(text string) model.Message {
	msg := model.Message{
		ID:        l.nextID(),
		Role:      model.RoleUser,
		Content:   text,
		Timestamp: l.now(),
	}
	l.messages = append(l.messages, msg)
	return msg
}

// AppendBot 追加成功回答，ID 为提问 ID + 1
func (l *Log) AppendBot(userID int64, r Reply) model.Message {
	content := r.Content
	if content == "" {
		content = FallbackReply
	}
	msg := model.Message{
		ID:            l.replyID(userID),
		Role:          model.RoleBot,
		Content:       content,
		Timestamp:     l.now(),
		SQLQuery:      r.SQLQuery,
		Data:          r.Data,
		Visualization: r.Visualization,
		Heading:       r.Heading,
		Summary:       r.Summary,
		Page:          r.Page,
		TotalRows:     r.TotalRows,
		HasMore:       r.HasMore,
		ExecutionSec:  r.ExecutionSec,
	}
	l.messages = append(l.messages, msg)
	return msg
}

// AppendError 追加错误占位回答，不携带 SQL 和数据
func (l *Log) AppendError(userID int64, detail string) model.Message {
	if detail == "" {
		detail = ConnectionTrouble
	}
	msg := model.Message{
		ID:        l.replyID(userID),
		Role:      model.RoleBot,
		Content:   model.ErrorPrefix + detail,
		Timestamp: l.now(),
	}
	l.messages = append(l.messages, msg)
	return msg
}

// AppendRows 把下一页数据并入指定消息
func (l *Log) AppendRows(id int64, rows *model.Records, page int, hasMore bool) error {
	for i := range l.messages {
		if l.messages[i].ID != id {
			continue
		}
		m := &l.messages[i]
		if m.Data == nil {
			m.Data = &model.Records{}
		} else {
			copied := model.NewRecords(m.Data.Columns, m.Data.Rows)
			m.Data = copied
		}
		m.Data.Append(rows)
		m.Page = page
		m.HasMore = hasMore
		return nil
	}
	return ErrMessageNotFound
}

// Find 根据 ID 查找消息
func (l *Log) Find(id int64) (model.Message, bool) {
	for _, m := range l.messages {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

// LastUserPrompt 最后一条用户消息的内容
func (l *Log) LastUserPrompt() string {
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].IsUser() {
			return l.messages[i].Content
		}
	}
	return ""
}

// LastResult 最后一条带 SQL 的回答
func (l *Log) LastResult() (model.Message, bool) {
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].IsBot() && l.messages[i].SQLQuery != nil {
			return l.messages[i], true
		}
	}
	return model.Message{}, false
}

// nextID 毫秒时间戳，保证严格递增
func (l *Log) nextID() int64 {
	id := l.now().UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	l.lastID = id
	return id
}

// replyID 回答的 ID 为提问 ID + 1，已被占用时（例如提问来自另一个会话）顺延
func (l *Log) replyID(userID int64) int64 {
	id := userID + 1
	if _, taken := l.Find(id); taken || id <= 1 {
		return l.nextID()
	}
	if id > l.lastID {
		l.lastID = id
	}
	return id
}
