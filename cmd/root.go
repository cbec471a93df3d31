// Package cmd 实现 CLI 命令
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"datachat-cli/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "datachat",
	Short: "DataChat - 用自然语言分析数据",
	Long: `DataChat 命令行客户端

用自然语言向数据分析后端提问，后端生成 SQL、返回表格和图表。
可以连接数据库，也可以上传 CSV 文件后直接提问。

直接运行进入交互模式，输入 /help 查看可用命令。`,
	SilenceUsage: true,
	RunE:         runInteractive,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// 全局参数
	rootCmd.PersistentFlags().StringP("server", "s", "", "后端地址 (默认: "+config.DefaultServerURL+")")
	rootCmd.PersistentFlags().String("config", "", "配置文件路径 (默认: ~/.datachat/config.yaml)")
	rootCmd.PersistentFlags().String("store", "", "会话存储后端: memory / file / redis / sql")
}

func initConfig() {
	configFile, _ := rootCmd.PersistentFlags().GetString("config")
	if err := config.Init(configFile); err != nil {
		fmt.Fprintf(os.Stderr, "初始化配置失败: %v\n", err)
		os.Exit(1)
	}

	// 命令行参数优先于配置文件
	if server, _ := rootCmd.PersistentFlags().GetString("server"); server != "" {
		config.SetServerURL(server)
	}
	if backend, _ := rootCmd.PersistentFlags().GetString("store"); backend != "" {
		config.SetStoreBackend(backend)
	}
}

func printBanner() {
	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════╗")
	fmt.Println("║            📊 DataChat 命令行客户端             ║")
	fmt.Println("║                                                ║")
	fmt.Println("║     用自然语言提问，得到 SQL、表格和图表         ║")
	fmt.Println("╚════════════════════════════════════════════════╝")
	fmt.Println()
}
