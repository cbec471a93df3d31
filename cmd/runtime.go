package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"

	"datachat-cli/internal/api"
	"datachat-cli/internal/app"
	"datachat-cli/internal/config"
	"datachat-cli/internal/logger"
	"datachat-cli/internal/store"
)

// runtime 一次命令运行所需的全部组件
type runtime struct {
	cfg    *config.Config
	log    *logger.Logger
	store  *store.Store
	client *api.Client
	ctrl   *app.Controller
}

// openRuntime 按配置依次创建日志、存储、API 客户端和 Controller
func openRuntime(ctx context.Context) (*runtime, error) {
	cfg := config.Get()
	color.NoColor = color.NoColor || !cfg.UI.Color

	log, err := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: cfg.Log.Console,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	st, err := store.Open(ctx, store.Options{
		Backend:   cfg.Store.Backend,
		Key:       cfg.Store.Key,
		TTL:       cfg.Store.TTL,
		Path:      cfg.Store.Path,
		SQLDriver: cfg.Store.SQLDriver,
		SQLDSN:    cfg.Store.SQLDSN,
		Redis: store.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
	})
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("打开会话存储失败: %w", err)
	}

	opts := []api.Option{api.WithLogger(log)}
	if cfg.Server.Timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.Server.Timeout))
	}
	client := api.NewClient(cfg.Server.URL, opts...)

	ctrl, err := app.New(app.Options{
		Gateway: client,
		Store:   st,
		Logger:  log,
		Preferences: app.Preferences{
			Color:            cfg.UI.Color,
			RowsPerPage:      cfg.UI.RowsPerPage,
			ConfirmModeReset: cfg.UI.ConfirmModeReset,
		},
	})
	if err != nil {
		_ = st.Close()
		_ = log.Sync()
		return nil, err
	}

	log.Info("cmd", "runtime ready", map[string]any{
		"server": client.BaseURL(),
		"store":  cfg.Store.Backend,
	})
	return &runtime{cfg: cfg, log: log, store: st, client: client, ctrl: ctrl}, nil
}

// start 同步后端状态并打印启动通知
func (r *runtime) start(ctx context.Context) {
	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = r.ctrl.Start(startCtx)
	printNotifications(r.ctrl)
}

// close 写完会话后关闭存储
func (r *runtime) close() {
	if err := r.ctrl.Close(); err != nil {
		r.log.Warn("cmd", "failed to flush sessions", map[string]any{"error": err})
	}
	printNotifications(r.ctrl)
	if err := r.store.Close(); err != nil {
		r.log.Warn("cmd", "failed to close store", map[string]any{"error": err})
	}
	_ = r.log.Sync()
}
