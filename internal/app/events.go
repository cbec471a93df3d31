package app

import (
	"datachat-cli/internal/api"
	"datachat-cli/internal/chart"
	"datachat-cli/internal/conversation"
	"datachat-cli/internal/model"
)

// effect 事件应用后需要执行的副作用
type effect int

const (
	effectNone effect = iota
	// effectPersist 消息列表发生变化，写回当前会话
	effectPersist
)

// event 状态变化
// apply 在 Controller.mu 持有期间调用，是唯一修改 state 的地方
type event interface {
	apply(s *state) effect
}

// sessionActivated 切换到某个会话：载入消息、模式回到 Idle、清空视图状态
type sessionActivated struct {
	session model.Session
}

func (e *sessionActivated) apply(s *state) effect {
	active := e.session.Clone()
	s.active = &active
	s.log.Load(active.Messages)
	s.mode.Reset()
	s.resetView()
	return effectNone
}

// sessionCreated 首次提问时创建会话，保留当前已显示的消息（欢迎语）
type sessionCreated struct {
	session model.Session
}

func (e *sessionCreated) apply(s *state) effect {
	active := e.session.Clone()
	s.active = &active
	return effectNone
}

// askStarted 乐观追加用户消息
type askStarted struct {
	text string

	// 输出
	message model.Message
}

func (e *askStarted) apply(s *state) effect {
	e.message = s.log.AppendUser(e.text)
	s.loading = true
	return effectPersist
}

// askFinished 追加回答或错误占位消息
// 回答追加到此刻的当前会话（即使提问后切换过会话）
type askFinished struct {
	userID int64
	result *api.AskResult
	err    error

	// 输出
	message model.Message
}

func (e *askFinished) apply(s *state) effect {
	s.loading = false
	if e.err != nil {
		// 只有后端给出的错误才展示原文，网络错误使用统一提示
		detail := ""
		if api.IsServerError(e.err) {
			detail = e.err.Error()
		}
		e.message = s.log.AppendError(e.userID, detail)
		return effectPersist
	}

	r := e.result
	reply := conversation.Reply{
		Content:       r.Response,
		SQLQuery:      nonEmpty(r.SQLQuery),
		Data:          r.Data,
		Visualization: nonEmpty(r.Visualization),
		Heading:       nonEmpty(r.Title),
		Summary:       nonEmpty(r.Summary),
	}
	if r.Page != nil {
		reply.Page = *r.Page
	}
	if r.TotalRows != nil {
		reply.TotalRows = *r.TotalRows
	}
	if r.HasMore != nil {
		reply.HasMore = *r.HasMore
	}
	if r.ExecutionTime != nil {
		reply.ExecutionSec = *r.ExecutionTime
	}
	e.message = s.log.AppendBot(e.userID, reply)

	s.heading = deref(r.Title)
	s.lastSQL = deref(r.SQLQuery)
	s.rawTable = r.Data
	return effectPersist
}

// moreDataLoaded 下一页数据并入已有回答
type moreDataLoaded struct {
	messageID int64
	result    *api.MoreDataResult

	// 输出
	err error
}

func (e *moreDataLoaded) apply(s *state) effect {
	e.err = s.log.AppendRows(e.messageID, e.result.Data, e.result.Page, e.result.HasMore)
	if e.err != nil {
		return effectNone
	}
	if last, ok := s.log.LastResult(); ok && last.ID == e.messageID {
		s.rawTable = last.Data
	}
	return effectPersist
}

// csvUploaded 上传成功
type csvUploaded struct {
	table string
}

func (e *csvUploaded) apply(s *state) effect {
	s.mode.CSVUploaded(e.table)
	return effectNone
}

// csvCleared 后端 CSV 数据已清除
type csvCleared struct{}

func (e *csvCleared) apply(s *state) effect {
	s.mode.ClearCSV()
	return effectNone
}

// dbConnected 数据库连接成功
type dbConnected struct {
	name string
}

func (e *dbConnected) apply(s *state) effect {
	s.mode.DBConnected(e.name)
	return effectNone
}

// dbDisconnected 本地断开（后端通知是尽力而为）
type dbDisconnected struct{}

func (e *dbDisconnected) apply(s *state) effect {
	s.mode.DisconnectDB()
	return effectNone
}

// statusSynced 启动时根据后端状态同步
type statusSynced struct {
	status *api.CSVStatus
	health *api.Health
}

func (e *statusSynced) apply(s *state) effect {
	if e.status != nil {
		s.mode.Resync(e.status.IsCSVMode)
	}
	if e.health != nil {
		s.health = e.health
	}
	return effectNone
}

// sqlToggled 切换 SQL 显示
type sqlToggled struct {
	messageID int64
	visible   bool
}

func (e *sqlToggled) apply(s *state) effect {
	e.visible = !s.view.ShowSQL[e.messageID]
	s.view.ShowSQL[e.messageID] = e.visible
	return effectNone
}

// chartToggled 切换图表显示
type chartToggled struct {
	messageID int64
	visible   bool
}

func (e *chartToggled) apply(s *state) effect {
	e.visible = !s.view.ShowChart[e.messageID]
	s.view.ShowChart[e.messageID] = e.visible
	return effectNone
}

// chartGenerated 缓存图表
type chartGenerated struct {
	messageID int64
	spec      *chart.Spec
}

func (e *chartGenerated) apply(s *state) effect {
	s.view.Charts[e.messageID] = e.spec
	return effectNone
}

// pageChanged 表格翻页
type pageChanged struct {
	messageID int64
	page      int
}

func (e *pageChanged) apply(s *state) effect {
	s.view.Pages[e.messageID] = e.page
	return effectNone
}

func nonEmpty(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	return p
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
