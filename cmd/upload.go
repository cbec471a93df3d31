package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <文件>",
	Short: "上传 CSV 文件并进入 CSV 模式",
	Long: `上传 CSV 文件，后端会把它作为一张表，之后的问题都针对这张表。

已连接数据库时不能上传，请先断开。`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

var clearCSVCmd = &cobra.Command{
	Use:   "clear-csv",
	Short: "清除已上传的 CSV 数据",
	Args:  cobra.NoArgs,
	RunE:  runClearCSV,
}

func init() {
	uploadCmd.Flags().String("type", "", "声明的文件类型 (默认按扩展名推断)")
	rootCmd.AddCommand(uploadCmd, clearCSVCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	contentType, _ := cmd.Flags().GetString("type")
	file, err := loadCSVFile(args[0], contentType)
	if err != nil {
		return err
	}

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	rt.start(ctx)

	res, err := rt.ctrl.UploadCSV(ctx, file)
	printNotifications(rt.ctrl)
	if err != nil {
		return err
	}

	fmt.Printf("  📄 表名: %s\n", res.TableName)
	fmt.Printf("  📏 %d 行 × %d 列\n", res.Rows, len(res.Columns))
	if res.SampleData.Len() > 0 {
		fmt.Println("  样例数据:")
		printTable(res.SampleData, 0, res.SampleData.Len())
	}
	return nil
}

func runClearCSV(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	err = rt.ctrl.ClearCSV(ctx)
	printNotifications(rt.ctrl)
	return err
}
