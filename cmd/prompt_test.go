package cmd

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat-cli/internal/api"
	"datachat-cli/internal/app"
	"datachat-cli/internal/mode"
	"datachat-cli/internal/store"
	"datachat-cli/internal/stubserver"
)

func TestLoadCSVFile_InfersType(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "Sales Data.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("a,b\n1,2\n"), 0o600))

	f, err := loadCSVFile(csvPath, "")
	require.NoError(t, err)
	assert.Equal(t, "Sales Data.csv", f.Name)
	assert.True(t, mode.IsCSVType(f.ContentType), f.ContentType)

	f, err = loadCSVFile(csvPath, "application/json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", f.ContentType)

	_, err = loadCSVFile(filepath.Join(dir, "missing.csv"), "")
	assert.Error(t, err)
}

func TestResolveSession(t *testing.T) {
	srv := httptest.NewServer(stubserver.New(stubserver.Options{DemoDatabase: true}).Handler())
	defer srv.Close()

	ctrl, err := app.New(app.Options{
		Gateway: api.NewClient(srv.URL),
		Store:   store.New(store.NewMemoryBackend(store.DefaultKey, 0)),
	})
	require.NoError(t, err)
	defer ctrl.Close()

	ctx := context.Background()
	first, err := ctrl.NewSession(ctx)
	require.NoError(t, err)
	second, err := ctrl.NewSession(ctx)
	require.NoError(t, err)

	got, err := resolveSession(ctx, ctrl, "1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	got, err = resolveSession(ctx, ctrl, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = resolveSession(ctx, ctrl, "no-such-session")
	assert.Error(t, err)

	_, err = resolveSession(ctx, ctrl, "")
	assert.Error(t, err)
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{float64(42), "42"},
		{12.345, "12.35"},
		{"EU", "EU"},
		{true, "true"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatCell(tt.in))
	}
}
