package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"datachat-cli/internal/config"
	"datachat-cli/internal/logger"
	"datachat-cli/internal/stubserver"
)

var stubServerCmd = &cobra.Command{
	Use:   "stub-server",
	Short: "启动本地模拟后端",
	Long: `启动一个实现完整 HTTP 接口的本地模拟后端，用于开发和演示。

上传的 CSV 会被真实解析；提问总是返回当前数据源的整表数据。
使用 --demo 时启动即处于已连接数据库状态（内置 sales 表）。`,
	Args: cobra.NoArgs,
	RunE: runStubServer,
}

func init() {
	stubServerCmd.Flags().String("addr", "", "监听地址 (默认: stub.addr)")
	stubServerCmd.Flags().Bool("demo", false, "启动时连接内置示例数据库")
	rootCmd.AddCommand(stubServerCmd)
}

func runStubServer(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Stub.Addr
	}
	demo, _ := cmd.Flags().GetBool("demo")

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Console: true})
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🚀 模拟后端监听 %s\n", addr)
	if demo {
		fmt.Println("   已连接内置示例数据库 (sales)")
	}
	fmt.Println("   (按 Ctrl+C 退出)")

	srv := stubserver.New(stubserver.Options{Logger: log, DemoDatabase: demo})
	if err := srv.Run(ctx, addr); err != nil && ctx.Err() == nil {
		return err
	}
	fmt.Println("✅ 模拟后端已停止")
	return nil
}
