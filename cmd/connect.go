package cmd

import (
	"bufio"
	"os"

	"github.com/spf13/cobra"

	"datachat-cli/internal/api"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "连接数据库",
	Long: `让后端连接 MySQL 或 PostgreSQL 数据库，之后的问题都针对该数据库。

未通过参数给出的信息会交互式询问，密码输入不会回显。
处于 CSV 模式时不能连接，请先运行 'datachat clear-csv'。`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "断开数据库",
	Args:  cobra.NoArgs,
	RunE:  runDisconnect,
}

func init() {
	connectCmd.Flags().String("type", "", "数据库类型: mysql / postgresql")
	connectCmd.Flags().String("url", "", "主机地址 (host:port)")
	connectCmd.Flags().String("name", "", "数据库名")
	connectCmd.Flags().StringP("username", "u", "", "用户名")
	rootCmd.AddCommand(connectCmd, disconnectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	creds := &api.Credentials{}
	defer creds.Clear()
	creds.Type, _ = cmd.Flags().GetString("type")
	creds.URL, _ = cmd.Flags().GetString("url")
	creds.Name, _ = cmd.Flags().GetString("name")
	creds.Username, _ = cmd.Flags().GetString("username")

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	rt.start(ctx)

	if err := promptCredentials(bufio.NewReader(os.Stdin), creds); err != nil {
		return err
	}

	dimColor.Println("🔌 正在连接数据库...")
	err = rt.ctrl.ConnectDB(ctx, creds)
	printNotifications(rt.ctrl)
	return err
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	err = rt.ctrl.DisconnectDB(ctx)
	printNotifications(rt.ctrl)
	return err
}
