package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"datachat-cli/internal/app"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "把查询结果导出为 CSV",
	Long: `让后端重新执行 SQL 并把完整结果导出为 CSV 文件。

SQL 可以用 --sql 直接给出，也可以用 --session 取该会话最近一次查询的 SQL。`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("sql", "", "要导出的 SQL")
	exportCmd.Flags().String("session", "", "使用该会话最近一次查询的 SQL（序号或 ID）")
	exportCmd.Flags().StringP("output", "o", "", "输出文件 (默认: query_results_YYYY-MM-DD.csv)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sql, _ := cmd.Flags().GetString("sql")
	ref, _ := cmd.Flags().GetString("session")
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = app.DefaultExportFilename(time.Now())
	}

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	if sql == "" && ref != "" {
		target, err := resolveSession(ctx, rt.ctrl, ref)
		if err != nil {
			return err
		}
		for i := len(target.Messages) - 1; i >= 0; i-- {
			if q := target.Messages[i].SQLQuery; q != nil && *q != "" {
				sql = *q
				break
			}
		}
	}
	if sql == "" {
		return errors.New("请用 --sql 或 --session 指定要导出的查询")
	}

	n, err := exportToFile(ctx, rt.ctrl, sql, output)
	printNotifications(rt.ctrl)
	if err != nil {
		return err
	}
	fmt.Printf("💾 已导出到 %s（%d 字节）\n", output, n)
	return nil
}

// exportToFile 导出到本地文件，失败时删除不完整的文件
func exportToFile(ctx context.Context, ctrl *app.Controller, sql, path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("创建文件失败: %w", err)
	}

	n, err := ctrl.ExportCSV(ctx, sql, path, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}
