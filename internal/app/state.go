// Package app 持有整个客户端的应用状态
// Controller 是唯一的状态所有者：界面调用它的操作，所有修改都通过事件在锁内完成，
// 网络请求在锁外进行
package app

import (
	"datachat-cli/internal/api"
	"datachat-cli/internal/chart"
	"datachat-cli/internal/conversation"
	"datachat-cli/internal/mode"
	"datachat-cli/internal/model"
)

// DefaultRowsPerPage 表格每页行数
const DefaultRowsPerPage = 10

// Preferences 启动时加载一次的界面偏好
type Preferences struct {
	Color            bool
	RowsPerPage      int
	ConfirmModeReset bool
}

func (p Preferences) rowsPerPage() int {
	if p.RowsPerPage <= 0 {
		return DefaultRowsPerPage
	}
	return p.RowsPerPage
}

// ViewState 按消息 ID 记录的临时视图状态，切换会话时全部清空
type ViewState struct {
	ShowSQL   map[int64]bool
	ShowChart map[int64]bool
	Charts    map[int64]*chart.Spec
	Pages     map[int64]int // 从 0 开始的页码
}

func newViewState() ViewState {
	return ViewState{
		ShowSQL:   map[int64]bool{},
		ShowChart: map[int64]bool{},
		Charts:    map[int64]*chart.Spec{},
		Pages:     map[int64]int{},
	}
}

func (v ViewState) clone() ViewState {
	out := newViewState()
	for k, val := range v.ShowSQL {
		out.ShowSQL[k] = val
	}
	for k, val := range v.ShowChart {
		out.ShowChart[k] = val
	}
	for k, val := range v.Charts {
		out.Charts[k] = val
	}
	for k, val := range v.Pages {
		out.Pages[k] = val
	}
	return out
}

// State 应用状态快照
type State struct {
	// Session 当前会话，第一次提问之前为 nil
	Session  *model.Session
	Messages []model.Message

	Mode         mode.State
	DatabaseName string
	CSVTable     string

	IsLoading bool
	View      ViewState

	// 由最近一次成功查询得到
	LastSQL    string
	RawTable   *model.Records
	Heading    string
	LastPrompt string

	Preferences Preferences
	Health      *api.Health
}

// state 内部可变状态，只在 Controller.mu 持有期间访问
type state struct {
	active  *model.Session
	log     *conversation.Log
	mode    *mode.Coordinator
	view    ViewState
	loading bool

	lastSQL  string
	rawTable *model.Records
	heading  string

	prefs  Preferences
	health *api.Health
}

func (s *state) snapshot() State {
	out := State{
		Messages:     s.log.Messages(),
		Mode:         s.mode.State(),
		DatabaseName: s.mode.DatabaseName(),
		CSVTable:     s.mode.CSVTable(),
		IsLoading:    s.loading,
		View:         s.view.clone(),
		LastSQL:      s.lastSQL,
		RawTable:     s.rawTable,
		Heading:      s.heading,
		LastPrompt:   s.log.LastUserPrompt(),
		Preferences:  s.prefs,
		Health:       s.health,
	}
	if s.active != nil {
		active := s.active.Clone()
		out.Session = &active
	}
	return out
}

// resetView 清空所有临时视图状态与最近结果
func (s *state) resetView() {
	s.view = newViewState()
	s.lastSQL = ""
	s.rawTable = nil
	s.heading = ""
}

// Message 根据 ID 查找当前会话中的消息
func (st State) Message(id int64) (model.Message, bool) {
	for _, m := range st.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

// Page 消息表格的当前页码（从 0 开始）
func (st State) Page(id int64) int {
	return st.View.Pages[id]
}
