package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <问题>",
	Short: "提一个问题并打印回答",
	Long: `向后端提一个问题并打印回答，然后退出。

默认在新会话中提问；指定 --session 时追加到已有会话
（切换会话会清除后端已上传的 CSV 数据）。`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().String("session", "", "追加到已有会话（序号或 ID）")
	askCmd.Flags().Bool("sql", false, "同时打印生成的 SQL")
	askCmd.Flags().Bool("chart", false, "同时打印图表")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	rt.start(ctx)

	if ref, _ := cmd.Flags().GetString("session"); ref != "" {
		target, err := resolveSession(ctx, rt.ctrl, ref)
		if err != nil {
			return err
		}
		if _, err := rt.ctrl.SwitchSession(ctx, target.ID); err != nil {
			return err
		}
	}

	msg, err := rt.ctrl.Send(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	if showSQL, _ := cmd.Flags().GetBool("sql"); showSQL && msg.SQLQuery != nil {
		if _, err := rt.ctrl.ToggleSQL(msg.ID); err != nil {
			return err
		}
	}
	if showChart, _ := cmd.Flags().GetBool("chart"); showChart && msg.Data.Len() > 0 {
		if _, err := rt.ctrl.ToggleChart(msg.ID); err != nil {
			printError(err)
		}
	}

	st := rt.ctrl.Snapshot()
	printMessage(st, msg)
	printNotifications(rt.ctrl)
	if st.Session != nil {
		dimColor.Printf("会话: %s\n", st.Session.ID)
	}
	if msg.IsError() {
		return errors.New("查询失败")
	}
	return nil
}
