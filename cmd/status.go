package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"datachat-cli/internal/api"
	"datachat-cli/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "显示后端和本地状态",
	Long: `显示后端健康状态、CSV 模式和本地配置。

包括：
- 后端地址与版本
- 数据库连接 / CSV 模式
- 已上传的 CSV 表
- 会话存储配置`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	client := api.NewClient(cfg.Server.URL, api.WithTimeout(5*time.Second))

	var (
		health    *api.Health
		csvStatus *api.CSVStatus
		healthErr error
	)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		health, healthErr = client.Health(ctx)
		return nil
	})
	g.Go(func() error {
		// 后端不可达时由 health 报告
		csvStatus, _ = client.CSVStatus(ctx)
		return nil
	})
	_ = g.Wait()

	fmt.Println("╔════════════════════════════════════════════════╗")
	fmt.Println("║             DataChat 状态信息                   ║")
	fmt.Println("╠════════════════════════════════════════════════╣")
	fmt.Printf("║  后端: %s\n", client.BaseURL())

	if healthErr != nil {
		fmt.Println("║  后端状态: ✗ 不可达")
		fmt.Printf("║  原因: %v\n", healthErr)
	} else {
		fmt.Printf("║  后端状态: ✓ %s (v%s)\n", health.Status, health.Version)
		if health.DatabaseConnected {
			fmt.Println("║  数据库: ✓ 已连接")
		} else {
			fmt.Println("║  数据库: ✗ 未连接")
		}
	}

	if csvStatus != nil {
		if csvStatus.IsCSVMode {
			fmt.Printf("║  CSV 模式: ✓ %d 张表\n", csvStatus.TablesCount)
			for _, t := range csvStatus.Tables {
				fmt.Printf("║    - %s (%d 行: %s)\n", t.Name, t.Rows, strings.Join(t.Columns, ", "))
			}
		} else {
			fmt.Println("║  CSV 模式: ✗")
		}
	}

	fmt.Println("╠════════════════════════════════════════════════╣")
	fmt.Printf("║  配置文件: %s\n", config.Path())
	fmt.Printf("║  会话存储: %s\n", cfg.Store.Backend)
	fmt.Printf("║  日志文件: %s\n", cfg.Log.File)
	fmt.Println("╚════════════════════════════════════════════════╝")
	return nil
}
