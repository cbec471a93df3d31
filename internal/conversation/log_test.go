package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat-cli/internal/model"
)

// frozenClock 固定时间，用于验证时间戳相同时顺序不变
func frozenClock() func() time.Time {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestLog_AppendOrderIsCallOrder(t *testing.T) {
	l := New(frozenClock())

	var want []string
	for _, q := range []string{"first", "second", "third"} {
		u := l.AppendUser(q)
		l.AppendBot(u.ID, Reply{Content: "answer to " + q})
		want = append(want, q, "answer to "+q)
	}

	msgs := l.Messages()
	require.Len(t, msgs, 6)
	var got []string
	for i, m := range msgs {
		got = append(got, m.Content)
		if i > 0 {
			assert.Greater(t, m.ID, msgs[i-1].ID, "ids strictly increase")
		}
	}
	assert.Equal(t, want, got)
}

func TestLog_BotIDIsUserIDPlusOne(t *testing.T) {
	l := New(nil)
	u := l.AppendUser("Show sales trends")
	b := l.AppendBot(u.ID, Reply{Content: "ok"})
	assert.Equal(t, u.ID+1, b.ID)
	assert.Equal(t, model.RoleBot, b.Role)
}

func TestLog_EmptyReplyFallsBack(t *testing.T) {
	l := New(nil)
	u := l.AppendUser("?")
	b := l.AppendBot(u.ID, Reply{})
	assert.Equal(t, FallbackReply, b.Content)
}

func TestLog_ErrorPlaceholderHasNoResult(t *testing.T) {
	l := New(nil)
	u := l.AppendUser("Show sales trends")
	b := l.AppendError(u.ID, "Failed to process query: boom")

	assert.Equal(t, "Error: Failed to process query: boom", b.Content)
	assert.True(t, b.IsError())
	assert.False(t, b.HasResult())

	b = l.AppendError(u.ID, "")
	assert.Equal(t, "Error: "+ConnectionTrouble, b.Content)
	assert.NotEqual(t, u.ID+1, b.ID, "taken reply id is not reused")
}

func TestLog_LoadContinuesAfterHighestID(t *testing.T) {
	l := New(frozenClock())
	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	l.Load([]model.Message{model.NewWelcomeMessage(time.Now()), {ID: future, Role: model.RoleUser, Content: "x"}})

	u := l.AppendUser("next")
	assert.Equal(t, future+1, u.ID)
}

func TestLog_AppendRowsCopiesOnWrite(t *testing.T) {
	l := New(nil)
	u := l.AppendUser("q")
	sql := "SELECT * FROM sales"
	first := model.NewRecords([]string{"region"}, []map[string]any{{"region": "EU"}})
	b := l.AppendBot(u.ID, Reply{Content: "ok", SQLQuery: &sql, Data: first, HasMore: true, Page: 1})

	snapshot := l.Messages()
	require.NoError(t, l.AppendRows(b.ID, model.NewRecords([]string{"region"}, []map[string]any{{"region": "US"}}), 2, false))

	got, ok := l.Find(b.ID)
	require.True(t, ok)
	assert.Equal(t, 2, got.Data.Len())
	assert.Equal(t, 2, got.Page)
	assert.False(t, got.HasMore)
	assert.Equal(t, 1, snapshot[1].Data.Len(), "earlier snapshot unchanged")

	assert.ErrorIs(t, l.AppendRows(999, nil, 1, false), ErrMessageNotFound)
}

func TestLog_ComputedValues(t *testing.T) {
	l := New(nil)
	assert.Empty(t, l.LastUserPrompt())
	_, ok := l.LastResult()
	assert.False(t, ok)

	sql := "SELECT 1"
	u := l.AppendUser("first")
	l.AppendBot(u.ID, Reply{Content: "ok", SQLQuery: &sql})
	u = l.AppendUser("second")
	l.AppendError(u.ID, "nope")

	assert.Equal(t, "second", l.LastUserPrompt())
	res, ok := l.LastResult()
	require.True(t, ok)
	assert.Equal(t, "SELECT 1", *res.SQLQuery)
}
