package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"datachat-cli/internal/api"
	"datachat-cli/internal/apperr"
	"datachat-cli/internal/conversation"
	"datachat-cli/internal/logger"
	"datachat-cli/internal/mode"
	"datachat-cli/internal/model"
	"datachat-cli/internal/session"
	"datachat-cli/internal/store"
)

// moreDataLimit 翻页请求的每页行数，与后端 /ask 的默认值一致
const moreDataLimit = 1000

// closeTimeout Close 等待写入完成的时间
const closeTimeout = 10 * time.Second

// Gateway 后端接口
type Gateway interface {
	Ask(ctx context.Context, query string) (*api.AskResult, error)
	GetMoreData(ctx context.Context, req *api.MoreDataRequest) (*api.MoreDataResult, error)
	UploadCSV(ctx context.Context, file *api.File) (*api.UploadResult, error)
	ClearCSV(ctx context.Context) (*api.MessageResult, error)
	CSVStatus(ctx context.Context) (*api.CSVStatus, error)
	ExportCSV(ctx context.Context, req *api.ExportRequest, w io.Writer) (int64, error)
	ConnectDB(ctx context.Context, creds *api.Credentials) (*api.MessageResult, error)
	DisconnectDB(ctx context.Context) (*api.MessageResult, error)
	Health(ctx context.Context) (*api.Health, error)
}

// Options Controller 依赖
type Options struct {
	Gateway     Gateway
	Store       *store.Store
	Logger      *logger.Logger
	Preferences Preferences
	Clock       func() time.Time
}

// Controller 应用状态的唯一所有者
type Controller struct {
	mu sync.Mutex
	st *state

	// lifecycleMu 串行化新建、切换、删除会话，保证清除 CSV 的请求在切换完成之前结束
	lifecycleMu sync.Mutex

	gw       Gateway
	sessions *session.Manager
	log      *logger.Logger
	notes    *notifier
	now      func() time.Time
}

// New 创建 Controller，初始状态为未创建会话、只显示欢迎语
func New(opts Options) (*Controller, error) {
	if opts.Gateway == nil {
		return nil, errors.New("app: gateway is required")
	}
	if opts.Store == nil {
		return nil, errors.New("app: store is required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	c := &Controller{
		gw:    opts.Gateway,
		log:   log,
		notes: newNotifier(),
		now:   now,
	}
	c.sessions = session.NewManager(opts.Store,
		session.WithLogger(log),
		session.WithClock(now),
		session.WithErrorHandler(c.notifyStorage),
	)

	prefs := opts.Preferences
	if prefs.RowsPerPage <= 0 {
		prefs.RowsPerPage = DefaultRowsPerPage
	}
	conv := conversation.New(now)
	conv.Load([]model.Message{model.NewWelcomeMessage(now())})
	c.st = &state{
		log:   conv,
		mode:  mode.New(),
		view:  newViewState(),
		prefs: prefs,
	}
	return c, nil
}

// Start 启动时并发查询 csv-status 与 health，同步模式状态
// 后端不可达不是错误，只产生通知
func (c *Controller) Start(ctx context.Context) error {
	var (
		status *api.CSVStatus
		health *api.Health
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := c.gw.CSVStatus(gctx)
		if err != nil {
			c.log.Warn("app", "csv status check failed", map[string]any{"error": err})
			return nil
		}
		status = s
		return nil
	})
	g.Go(func() error {
		h, err := c.gw.Health(gctx)
		if err != nil {
			c.log.Warn("app", "health check failed", map[string]any{"error": err})
			return nil
		}
		health = h
		return nil
	})
	_ = g.Wait()

	c.mu.Lock()
	c.dispatch(&statusSynced{status: status, health: health})
	c.mu.Unlock()

	switch {
	case status == nil && health == nil:
		c.notify(LevelWarning, "Backend Unreachable", "Could not reach the analytics backend. Questions will fail until it is available.")
	case status != nil && status.IsCSVMode:
		c.notify(LevelInfo, "CSV Mode", fmt.Sprintf("The backend is in CSV mode with %d table(s) loaded.", status.TablesCount))
	}
	return ctx.Err()
}

// Send 提交问题：先乐观追加用户消息，再请求后端，最后追加回答或错误占位消息
// 后端错误不作为返回值，而是成为一条 "Error: ..." 回答
func (c *Controller) Send(ctx context.Context, text string) (model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return model.Message{}, apperr.Validation("query", "question cannot be empty")
	}

	c.mu.Lock()
	if c.st.loading {
		c.mu.Unlock()
		return model.Message{}, apperr.Violation("waiting for an answer", "send a question", "a request is already in progress")
	}
	if c.st.active == nil {
		s, err := c.sessions.Create(model.DefaultTitle)
		if err != nil {
			c.notifyStorage(err)
		}
		c.dispatch(&sessionCreated{session: s})
	}
	started := &askStarted{text: text}
	c.dispatch(started)
	c.mu.Unlock()

	res, err := c.gw.Ask(ctx, text)
	if err != nil {
		c.log.Warn("app", "ask failed", map[string]any{"error": err})
	}

	c.mu.Lock()
	finished := &askFinished{userID: started.message.ID, result: res, err: err}
	c.dispatch(finished)
	c.mu.Unlock()

	return finished.message, nil
}

// NewSession 清除后端 CSV 数据后创建并切换到新会话
func (c *Controller) NewSession(ctx context.Context) (model.Session, error) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	return c.newSession(ctx), nil
}

// SwitchSession 清除后端 CSV 数据后切换到已有会话
func (c *Controller) SwitchSession(ctx context.Context, id string) (model.Session, error) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	s, seeded, err := c.sessions.Open(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Session{}, apperr.Validation("session", fmt.Sprintf("session %s not found", id))
		}
		c.notifyStorage(err)
		return model.Session{}, err
	}

	c.clearBackendCSV(ctx)

	c.mu.Lock()
	c.dispatch(&sessionActivated{session: s})
	c.mu.Unlock()

	c.log.Info("app", "session switched", map[string]any{"session_id": id, "seeded": seeded})
	return s, nil
}

// DeleteSession 删除会话；删除的是当前会话时创建一个新的默认会话
// 新会话准备好之后，删除与切换在同一次加锁内完成，期间不存在没有当前会话的状态
func (c *Controller) DeleteSession(ctx context.Context, id string) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.mu.Lock()
	wasActive := c.st.active != nil && c.st.active.ID == id
	c.mu.Unlock()

	if !wasActive {
		if err := c.sessions.Delete(id); err != nil {
			c.notifyStorage(err)
			return err
		}
		return nil
	}

	_, next := c.prepareSession(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.sessions.Delete(id); err != nil {
		c.notifyStorage(err)
		return err
	}
	c.dispatch(&sessionActivated{session: next})
	return nil
}

// UploadCSV 上传 CSV 并进入 CSV 模式
func (c *Controller) UploadCSV(ctx context.Context, file *api.File) (*api.UploadResult, error) {
	c.mu.Lock()
	err := c.st.mode.CheckCSVUpload(file)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	res, err := c.gw.UploadCSV(ctx, file)
	if err != nil {
		c.log.Warn("app", "csv upload failed", map[string]any{"file": file.Name, "error": err})
		c.notify(LevelError, "Upload Failed", "Failed to upload CSV file: "+err.Error())
		return nil, err
	}

	c.mu.Lock()
	c.dispatch(&csvUploaded{table: res.TableName})
	c.mu.Unlock()

	c.notify(LevelSuccess, "CSV Upload Successful!",
		fmt.Sprintf("Table %q uploaded with %d rows and %d columns.", res.TableName, res.Rows, len(res.Columns)))
	return res, nil
}

// ClearCSV 清除后端 CSV 数据，幂等
func (c *Controller) ClearCSV(ctx context.Context) error {
	if _, err := c.gw.ClearCSV(ctx); err != nil {
		c.log.Warn("app", "clear csv failed", map[string]any{"error": err})
		c.notify(LevelError, "Clear Failed", "Failed to clear CSV data: "+err.Error())
		return err
	}

	c.mu.Lock()
	c.dispatch(&csvCleared{})
	c.mu.Unlock()

	c.notify(LevelSuccess, "CSV Cleared", "CSV data cleared successfully. You can now connect to a database.")
	return nil
}

// ConnectDB 连接数据库；请求结束后（无论成功与否）清空凭证
func (c *Controller) ConnectDB(ctx context.Context, creds *api.Credentials) error {
	c.mu.Lock()
	err := c.st.mode.CheckDBConnect(creds)
	c.mu.Unlock()
	if err != nil {
		creds.Clear()
		return err
	}

	name := creds.DisplayName()
	_, err = c.gw.ConnectDB(ctx, creds)
	creds.Clear()
	if err != nil {
		c.log.Warn("app", "database connection failed", map[string]any{"database": name, "error": err})
		c.notify(LevelError, "Connection Failed", err.Error())
		return err
	}

	c.mu.Lock()
	c.dispatch(&dbConnected{name: name})
	c.mu.Unlock()

	c.log.Info("app", "database connected", map[string]any{"database": name})
	c.notify(LevelSuccess, "Database Connected", fmt.Sprintf("Connected to %s.", name))
	return nil
}

// DisconnectDB 通知后端断开（失败只记录），本地状态总是重置
func (c *Controller) DisconnectDB(ctx context.Context) error {
	if _, err := c.gw.DisconnectDB(ctx); err != nil {
		c.log.Warn("app", "failed to notify backend of disconnect", map[string]any{"error": err})
	}

	c.mu.Lock()
	c.dispatch(&dbDisconnected{})
	c.mu.Unlock()

	c.notify(LevelInfo, "Disconnected", "Disconnected from database.")
	return nil
}

// ExportCSV 导出查询结果写入 w；sqlQuery 为空时使用最近一次查询
func (c *Controller) ExportCSV(ctx context.Context, sqlQuery, filename string, w io.Writer) (int64, error) {
	if sqlQuery == "" {
		c.mu.Lock()
		sqlQuery = c.st.lastSQL
		c.mu.Unlock()
	}
	if sqlQuery == "" {
		return 0, apperr.Validation("sql_query", "no query to export")
	}
	if filename == "" {
		filename = DefaultExportFilename(c.now())
	}

	n, err := c.gw.ExportCSV(ctx, &api.ExportRequest{SQLQuery: sqlQuery, Filename: filename}, w)
	if err != nil {
		c.log.Warn("app", "export failed", map[string]any{"error": err})
		c.notify(LevelError, "Export Failed", "Failed to export CSV: "+err.Error())
		return n, err
	}

	c.notify(LevelSuccess, "Export Complete", "Query results exported successfully!")
	return n, nil
}

// MoreData 加载最近一次查询的下一页，并入原回答
func (c *Controller) MoreData(ctx context.Context) (model.Message, error) {
	c.mu.Lock()
	last, ok := c.st.log.LastResult()
	c.mu.Unlock()
	if !ok || !last.HasMore {
		return model.Message{}, apperr.Validation("data", "no more rows to load")
	}

	page := last.Page + 1
	if last.Page < 1 {
		page = 2
	}
	res, err := c.gw.GetMoreData(ctx, &api.MoreDataRequest{SQLQuery: *last.SQLQuery, Page: page, Limit: moreDataLimit})
	if err != nil {
		c.log.Warn("app", "load more data failed", map[string]any{"error": err})
		c.notify(LevelError, "Load Failed", "Failed to load more data: "+err.Error())
		return model.Message{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	loaded := &moreDataLoaded{messageID: last.ID, result: res}
	c.dispatch(loaded)
	if loaded.err != nil {
		return model.Message{}, loaded.err
	}
	msg, _ := c.st.log.Find(last.ID)
	return msg, nil
}

// Snapshot 当前状态的副本
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.snapshot()
}

// Sessions 按最近触达顺序列出所有会话
func (c *Controller) Sessions(ctx context.Context) ([]model.Session, error) {
	list, err := c.sessions.List(ctx)
	if err != nil {
		c.notifyStorage(err)
		return nil, err
	}
	return list, nil
}

// Notifications 通知通道
func (c *Controller) Notifications() <-chan Notification {
	return c.notes.ch
}

// Flush 等待所有会话写入完成
func (c *Controller) Flush(ctx context.Context) error {
	return c.sessions.Flush(ctx)
}

// Close 写完剩余数据并停止后台写入
func (c *Controller) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return c.sessions.Close(ctx)
}

// DefaultExportFilename 默认导出文件名
func DefaultExportFilename(now time.Time) string {
	return fmt.Sprintf("query_results_%s.csv", now.Format("2006-01-02"))
}

// newSession 调用方需持有 lifecycleMu
func (c *Controller) newSession(ctx context.Context) model.Session {
	s, shown := c.prepareSession(ctx)

	c.mu.Lock()
	c.dispatch(&sessionActivated{session: shown})
	c.mu.Unlock()
	return s
}

// prepareSession 清除后端 CSV 数据并创建新会话，同时返回带欢迎语的待激活副本
func (c *Controller) prepareSession(ctx context.Context) (model.Session, model.Session) {
	c.clearBackendCSV(ctx)

	s, err := c.sessions.Create(model.DefaultTitle)
	if err != nil {
		c.notifyStorage(err)
	}

	shown := s.Clone()
	shown.Messages = []model.Message{model.NewWelcomeMessage(c.now())}
	return s, shown
}

// clearBackendCSV 新建或切换会话前清除后端 CSV 数据，失败只提示
func (c *Controller) clearBackendCSV(ctx context.Context) {
	if _, err := c.gw.ClearCSV(ctx); err != nil {
		c.log.Warn("app", "failed to clear csv data", map[string]any{"error": err})
		c.notify(LevelWarning, "Clear Failed", "Failed to clear CSV data on the server: "+err.Error())
	}
}

// dispatch 应用事件并执行副作用，调用方需持有 mu
func (c *Controller) dispatch(ev event) {
	if ev.apply(c.st)&effectPersist != 0 {
		c.persistLocked()
	}
	c.log.Debug("app", "event applied", map[string]any{"event": fmt.Sprintf("%T", ev)})
}

// persistLocked 写回当前会话；只有欢迎语时不写
func (c *Controller) persistLocked() {
	if c.st.active == nil {
		return
	}
	messages := c.st.log.Messages()
	if len(messages) <= 1 {
		return
	}
	updated, err := c.sessions.UpdateMessages(*c.st.active, messages)
	c.st.active = &updated
	if err != nil {
		c.notifyStorage(err)
	}
}

func (c *Controller) notify(level Level, title, message string) {
	c.notes.push(Notification{Level: level, Title: title, Message: message, Time: c.now()})
}

func (c *Controller) notifyStorage(err error) {
	c.notify(LevelError, "Storage Error", err.Error())
}
