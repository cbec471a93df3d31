package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat-cli/internal/api"
	"datachat-cli/internal/apperr"
	"datachat-cli/internal/conversation"
	"datachat-cli/internal/mode"
	"datachat-cli/internal/model"
	"datachat-cli/internal/store"
	"datachat-cli/internal/stubserver"
)

// countingGateway 记录各接口的调用次数
type countingGateway struct {
	*api.Client

	mu      sync.Mutex
	clears  int
	connect int
}

func (g *countingGateway) ClearCSV(ctx context.Context) (*api.MessageResult, error) {
	g.mu.Lock()
	g.clears++
	g.mu.Unlock()
	return g.Client.ClearCSV(ctx)
}

func (g *countingGateway) ConnectDB(ctx context.Context, creds *api.Credentials) (*api.MessageResult, error) {
	g.mu.Lock()
	g.connect++
	g.mu.Unlock()
	return g.Client.ConnectDB(ctx, creds)
}

func (g *countingGateway) clearCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clears
}

func (g *countingGateway) connectCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connect
}

// blockingGateway Ask 阻塞直到 release 关闭
type blockingGateway struct {
	*api.Client
	release chan struct{}
}

func (g *blockingGateway) Ask(ctx context.Context, query string) (*api.AskResult, error) {
	<-g.release
	return g.Client.Ask(ctx, query)
}

// slowClearGateway ClearCSV 阻塞直到 release 关闭
type slowClearGateway struct {
	*api.Client
	entered chan struct{}
	release chan struct{}
}

func (g *slowClearGateway) ClearCSV(ctx context.Context) (*api.MessageResult, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.Client.ClearCSV(ctx)
}

type fixture struct {
	ctrl  *Controller
	gw    *countingGateway
	store *store.Store
}

func newFixture(t *testing.T, demo bool, prefs Preferences) *fixture {
	t.Helper()
	srv := httptest.NewServer(stubserver.New(stubserver.Options{DemoDatabase: demo}).Handler())
	t.Cleanup(srv.Close)

	gw := &countingGateway{Client: api.NewClient(srv.URL)}
	st := store.New(store.NewMemoryBackend(store.DefaultKey, 0))
	ctrl, err := New(Options{Gateway: gw, Store: st, Preferences: prefs})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctrl.Close() })

	return &fixture{ctrl: ctrl, gw: gw, store: st}
}

func csvFile(name string, lines ...string) *api.File {
	return &api.File{Name: name, ContentType: "text/csv", Content: []byte(strings.Join(lines, "\n") + "\n")}
}

func TestNew_StartsWithWelcomeOnly(t *testing.T) {
	f := newFixture(t, true, Preferences{})
	st := f.ctrl.Snapshot()

	assert.Nil(t, st.Session)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, model.WelcomeMessageID, st.Messages[0].ID)
	assert.Equal(t, mode.Idle, st.Mode)
	assert.Equal(t, DefaultRowsPerPage, st.Preferences.RowsPerPage)
}

func TestSend_FirstQuestionCreatesSession(t *testing.T) {
	f := newFixture(t, true, Preferences{})
	ctx := context.Background()

	reply, err := f.ctrl.Send(ctx, "Show sales trends")
	require.NoError(t, err)

	st := f.ctrl.Snapshot()
	require.NotNil(t, st.Session)
	assert.Equal(t, "Show sales trends", st.Session.Title)
	require.Len(t, st.Messages, 3)

	user := st.Messages[1]
	assert.True(t, user.IsUser())
	assert.Equal(t, user.ID+1, reply.ID)
	assert.Equal(t, "Query executed successfully on database. Returned 5 rows.", reply.Content)
	require.NotNil(t, reply.SQLQuery)
	assert.Equal(t, "SELECT * FROM sales", st.LastSQL)
	assert.Equal(t, "Overview of sales", st.Heading)
	assert.Equal(t, 5, st.RawTable.Len())
	assert.Equal(t, "Show sales trends", st.LastPrompt)
	assert.False(t, st.IsLoading)

	require.NoError(t, f.ctrl.Flush(ctx))
	stored, err := f.store.Get(ctx, st.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Show sales trends", stored.Title)
	assert.Len(t, stored.Messages, 3)
}

func TestSend_ServerErrorBecomesMessage(t *testing.T) {
	f := newFixture(t, false, Preferences{})

	reply, err := f.ctrl.Send(context.Background(), "Show sales trends")
	require.NoError(t, err)

	assert.True(t, reply.IsError())
	assert.Equal(t, "Error: Failed to process query: No database connection established", reply.Content)
	assert.Len(t, f.ctrl.Snapshot().Messages, 3)
}

func TestSend_TransportErrorBecomesMessage(t *testing.T) {
	st := store.New(store.NewMemoryBackend(store.DefaultKey, 0))
	ctrl, err := New(Options{Gateway: api.NewClient("http://127.0.0.1:1", api.WithTimeout(time.Second)), Store: st})
	require.NoError(t, err)
	defer ctrl.Close()

	reply, err := ctrl.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, reply.IsError())
	assert.Equal(t, model.ErrorPrefix+conversation.ConnectionTrouble, reply.Content)
}

func TestSend_RejectsBlankQuestion(t *testing.T) {
	f := newFixture(t, true, Preferences{})

	_, err := f.ctrl.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Len(t, f.ctrl.Snapshot().Messages, 1)
}

func TestSend_RejectsWhileLoading(t *testing.T) {
	srv := httptest.NewServer(stubserver.New(stubserver.Options{DemoDatabase: true}).Handler())
	defer srv.Close()

	gw := &blockingGateway{Client: api.NewClient(srv.URL), release: make(chan struct{})}
	ctrl, err := New(Options{Gateway: gw, Store: store.New(store.NewMemoryBackend(store.DefaultKey, 0))})
	require.NoError(t, err)
	defer ctrl.Close()

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Send(context.Background(), "first")
		done <- err
	}()
	require.Eventually(t, func() bool { return ctrl.Snapshot().IsLoading }, time.Second, 5*time.Millisecond)

	_, err = ctrl.Send(context.Background(), "second")
	assert.ErrorIs(t, err, apperr.ErrStateViolation)

	close(gw.release)
	require.NoError(t, <-done)

	st := ctrl.Snapshot()
	assert.False(t, st.IsLoading)
	require.Len(t, st.Messages, 3)
	assert.Equal(t, "first", st.Messages[1].Content)
}

func TestSend_PreservesOrder(t *testing.T) {
	f := newFixture(t, true, Preferences{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.ctrl.Send(ctx, fmt.Sprintf("question %d", i))
		require.NoError(t, err)
	}

	st := f.ctrl.Snapshot()
	require.Len(t, st.Messages, 7)
	for i := 1; i < len(st.Messages); i++ {
		assert.Greater(t, st.Messages[i].ID, st.Messages[i-1].ID)
	}
	assert.Equal(t, "question 0", st.Session.Title)
}

func TestUploadCSV_EntersCSVMode(t *testing.T) {
	f := newFixture(t, false, Preferences{})

	res, err := f.ctrl.UploadCSV(context.Background(), csvFile("sales data.csv", "a,b", "1,2"))
	require.NoError(t, err)
	assert.Equal(t, "sales_data", res.TableName)

	st := f.ctrl.Snapshot()
	assert.Equal(t, mode.CsvActive, st.Mode)
	assert.Equal(t, "sales_data", st.CSVTable)

	note := <-f.ctrl.Notifications()
	assert.Equal(t, LevelSuccess, note.Level)
	assert.Equal(t, `Table "sales_data" uploaded with 1 rows and 2 columns.`, note.Message)
}

func TestUploadCSV_RejectsNonCSV(t *testing.T) {
	f := newFixture(t, false, Preferences{})

	_, err := f.ctrl.UploadCSV(context.Background(), &api.File{Name: "notes.txt", ContentType: "text/plain", Content: []byte("x")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, mode.Idle, f.ctrl.Snapshot().Mode)
}

func TestConnectDB_RejectedInCSVMode(t *testing.T) {
	f := newFixture(t, false, Preferences{})
	ctx := context.Background()

	_, err := f.ctrl.UploadCSV(ctx, csvFile("orders.csv", "id,total", "1,9.5"))
	require.NoError(t, err)

	creds := &api.Credentials{Type: "mysql", URL: "localhost:3306", Name: "shop", Username: "root", Password: "secret"}
	err = f.ctrl.ConnectDB(ctx, creds)
	assert.ErrorIs(t, err, apperr.ErrStateViolation)
	assert.Equal(t, api.Credentials{}, *creds)
	assert.Equal(t, 0, f.gw.connectCount())
	assert.Equal(t, mode.CsvActive, f.ctrl.Snapshot().Mode)
}

func TestConnectDB_ClearsCredentials(t *testing.T) {
	f := newFixture(t, false, Preferences{})
	ctx := context.Background()

	creds := &api.Credentials{Type: "mysql", URL: "localhost:3306", Name: "warehouse", Username: "root", Password: "secret"}
	require.NoError(t, f.ctrl.ConnectDB(ctx, creds))
	assert.Equal(t, api.Credentials{}, *creds)

	st := f.ctrl.Snapshot()
	assert.Equal(t, mode.DbConnected, st.Mode)
	assert.Equal(t, "warehouse", st.DatabaseName)

	reply, err := f.ctrl.Send(ctx, "Show sales trends")
	require.NoError(t, err)
	assert.False(t, reply.IsError())

	_, err = f.ctrl.UploadCSV(ctx, csvFile("orders.csv", "id", "1"))
	assert.ErrorIs(t, err, apperr.ErrStateViolation)

	require.NoError(t, f.ctrl.DisconnectDB(ctx))
	assert.Equal(t, mode.Idle, f.ctrl.Snapshot().Mode)
}

func TestConnectDB_FailureKeepsIdle(t *testing.T) {
	f := newFixture(t, false, Preferences{})
	creds := &api.Credentials{Type: "oracle", URL: "db:1521", Name: "x", Password: "secret"}

	err := f.ctrl.ConnectDB(context.Background(), creds)
	require.Error(t, err)
	assert.Empty(t, creds.Password)
	assert.Equal(t, mode.Idle, f.ctrl.Snapshot().Mode)
}

func TestDisconnectDB_LocalResetWhenBackendFails(t *testing.T) {
	st := store.New(store.NewMemoryBackend(store.DefaultKey, 0))
	ctrl, err := New(Options{Gateway: api.NewClient("http://127.0.0.1:1", api.WithTimeout(time.Second)), Store: st})
	require.NoError(t, err)
	defer ctrl.Close()

	ctrl.mu.Lock()
	ctrl.dispatch(&dbConnected{name: "warehouse"})
	ctrl.mu.Unlock()

	require.NoError(t, ctrl.DisconnectDB(context.Background()))
	assert.Equal(t, mode.Idle, ctrl.Snapshot().Mode)
}

func TestClearCSV_IsIdempotent(t *testing.T) {
	f := newFixture(t, false, Preferences{})
	ctx := context.Background()

	_, err := f.ctrl.UploadCSV(ctx, csvFile("a.csv", "x", "1"))
	require.NoError(t, err)
	require.NoError(t, f.ctrl.ClearCSV(ctx))
	require.NoError(t, f.ctrl.ClearCSV(ctx))
	assert.Equal(t, mode.Idle, f.ctrl.Snapshot().Mode)
}

func TestSwitchSession_ClearsCSVExactlyOnce(t *testing.T) {
	f := newFixture(t, true, Preferences{})
	ctx := context.Background()

	_, err := f.ctrl.Send(ctx, "first question")
	require.NoError(t, err)
	first := f.ctrl.Snapshot().Session.ID

	_, err = f.ctrl.NewSession(ctx)
	require.NoError(t, err)
	_, err = f.ctrl.UploadCSV(ctx, csvFile("b.csv", "x", "1"))
	require.NoError(t, err)

	before := f.gw.clearCount()
	s, err := f.ctrl.SwitchSession(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, before+1, f.gw.clearCount())

	st := f.ctrl.Snapshot()
	assert.Equal(t, first, s.ID)
	assert.Equal(t, first, st.Session.ID)
	assert.Equal(t, mode.Idle, st.Mode)
	assert.Len(t, st.Messages, 3)
	assert.Empty(t, st.LastSQL)
}

func TestSwitchSession_UnknownID(t *testing.T) {
	f := newFixture(t, true, Preferences{})

	_, err := f.ctrl.SwitchSession(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 0, f.gw.clearCount())
}

func TestSwitchSession_EmptySessionShowsWelcome(t *testing.T) {
	f := newFixture(t, true, Preferences{})
	ctx := context.Background()

	created, err := f.ctrl.NewSession(ctx)
	require.NoError(t, err)
	_, err = f.ctrl.Send(ctx, "hello")
	require.NoError(t, err)
	_, err = f.ctrl.NewSession(ctx)
	require.NoError(t, err)
	empty := f.ctrl.Snapshot().Session.ID

	_, err = f.ctrl.SwitchSession(ctx, created.ID)
	require.NoError(t, err)
	_, err = f.ctrl.SwitchSession(ctx, empty)
	require.NoError(t, err)

	st := f.ctrl.Snapshot()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, model.WelcomeMessageID, st.Messages[0].ID)
}

func TestDeleteSession_ActiveCreatesNewDefault(t *testing.T) {
	f := newFixture(t, true, Preferences{})
	ctx := context.Background()

	_, err := f.ctrl.Send(ctx, "Show sales trends")
	require.NoError(t, err)
	deleted := f.ctrl.Snapshot().Session.ID

	require.NoError(t, f.ctrl.DeleteSession(ctx, deleted))

	st := f.ctrl.Snapshot()
	require.NotNil(t, st.Session)
	assert.NotEqual(t, deleted, st.Session.ID)
	assert.Equal(t, model.DefaultTitle, st.Session.Title)
	assert.Len(t, st.Messages, 1)

	list, err := f.ctrl.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, st.Session.ID, list[0].ID)
}

func TestDeleteSession_InactiveKeepsCurrent(t *testing.T) {
	f := newFixture(t, true, Preferences{})
	ctx := context.Background()

	_, err := f.ctrl.Send(ctx, "first")
	require.NoError(t, err)
	first := f.ctrl.Snapshot().Session.ID
	_, err = f.ctrl.NewSession(ctx)
	require.NoError(t, err)
	current := f.ctrl.Snapshot().Session.ID

	require.NoError(t, f.ctrl.DeleteSession(ctx, first))
	assert.Equal(t, current, f.ctrl.Snapshot().Session.ID)

	list, err := f.ctrl.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, current, list[0].ID)
}

func TestDeleteSession_ActiveStaysSetWhileClearing(t *testing.T) {
	srv := httptest.NewServer(stubserver.New(stubserver.Options{DemoDatabase: true}).Handler())
	defer srv.Close()

	gw := &slowClearGateway{Client: api.NewClient(srv.URL), entered: make(chan struct{}, 1), release: make(chan struct{})}
	ctrl, err := New(Options{Gateway: gw, Store: store.New(store.NewMemoryBackend(store.DefaultKey, 0))})
	require.NoError(t, err)
	defer ctrl.Close()
	ctx := context.Background()

	_, err = ctrl.Send(ctx, "first")
	require.NoError(t, err)
	deleted := ctrl.Snapshot().Session.ID

	done := make(chan error, 1)
	go func() { done <- ctrl.DeleteSession(ctx, deleted) }()
	<-gw.entered

	st := ctrl.Snapshot()
	require.NotNil(t, st.Session)
	assert.Equal(t, deleted, st.Session.ID)

	// 清除期间发送的问题仍落在旧会话上，随旧会话一起删除
	_, err = ctrl.Send(ctx, "late")
	require.NoError(t, err)

	close(gw.release)
	require.NoError(t, <-done)

	st = ctrl.Snapshot()
	require.NotNil(t, st.Session)
	assert.NotEqual(t, deleted, st.Session.ID)
	assert.Len(t, st.Messages, 1)

	list, err := ctrl.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, st.Session.ID, list[0].ID)
}

func TestSessions_MostRecentFirst(t *testing.T) {
	f := newFixture(t, true, Preferences{})
	ctx := context.Background()

	_, err := f.ctrl.Send(ctx, "older")
	require.NoError(t, err)
	older := f.ctrl.Snapshot().Session.ID
	_, err = f.ctrl.NewSession(ctx)
	require.NoError(t, err)
	_, err = f.ctrl.Send(ctx, "newer")
	require.NoError(t, err)
	newer := f.ctrl.Snapshot().Session.ID

	list, err := f.ctrl.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{newer, older}, []string{list[0].ID, list[1].ID})
	assert.Equal(t, "newer", list[0].Title)
}

func TestExportCSV_UsesLastQuery(t *testing.T) {
	f := newFixture(t, true, Preferences{})
	ctx := context.Background()

	_, err := f.ctrl.Send(ctx, "Show sales trends")
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := f.ctrl.ExportCSV(ctx, "", "", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.True(t, strings.HasPrefix(buf.String(), "region,total_sales,orders\n"))
}

func TestExportCSV_NoQuery(t *testing.T) {
	f := newFixture(t, true, Preferences{})

	_, err := f.ctrl.ExportCSV(context.Background(), "", "", &bytes.Buffer{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDefaultExportFilename(t *testing.T) {
	at := time.Date(2024, 3, 7, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "query_results_2024-03-07.csv", DefaultExportFilename(at))
}

func TestMoreData_AppendsNextPage(t *testing.T) {
	f := newFixture(t, false, Preferences{})
	ctx := context.Background()

	lines := []string{"n"}
	for i := 0; i < 1001; i++ {
		lines = append(lines, fmt.Sprint(i))
	}
	_, err := f.ctrl.UploadCSV(ctx, csvFile("numbers.csv", lines...))
	require.NoError(t, err)

	reply, err := f.ctrl.Send(ctx, "list all numbers")
	require.NoError(t, err)
	assert.Equal(t, "Query executed successfully on CSV data. Showing 1000 rows from page 1 of 1001 total rows.", reply.Content)
	assert.True(t, reply.HasMore)

	msg, err := f.ctrl.MoreData(ctx)
	require.NoError(t, err)
	assert.Equal(t, reply.ID, msg.ID)
	assert.Equal(t, 1001, msg.Data.Len())
	assert.Equal(t, 2, msg.Page)
	assert.False(t, msg.HasMore)
	assert.Equal(t, 1001, f.ctrl.Snapshot().RawTable.Len())

	_, err = f.ctrl.MoreData(ctx)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestStart_SyncsBackendMode(t *testing.T) {
	f := newFixture(t, false, Preferences{})
	ctx := context.Background()

	_, err := f.gw.Client.UploadCSV(ctx, csvFile("left over.csv", "x", "1"))
	require.NoError(t, err)

	require.NoError(t, f.ctrl.Start(ctx))
	st := f.ctrl.Snapshot()
	assert.Equal(t, mode.CsvActive, st.Mode)
	require.NotNil(t, st.Health)
	assert.Equal(t, "healthy", st.Health.Status)
}

func TestStart_UnreachableBackendNotifies(t *testing.T) {
	st := store.New(store.NewMemoryBackend(store.DefaultKey, 0))
	ctrl, err := New(Options{Gateway: api.NewClient("http://127.0.0.1:1", api.WithTimeout(time.Second)), Store: st})
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.Start(context.Background()))
	note := <-ctrl.Notifications()
	assert.Equal(t, LevelWarning, note.Level)
	assert.Equal(t, mode.Idle, ctrl.Snapshot().Mode)
}
