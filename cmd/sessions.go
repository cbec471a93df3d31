package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session"},
	Short:   "管理已保存的会话",
	Long: `列出、查看或删除已保存的会话。

会话保存在 store.backend 指定的存储中；memory 存储只在进程存活期间有效，
需要跨进程查看会话时请使用 file / redis / sql。`,
}

var sessionsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "列出所有会话（最近使用的在前）",
	Args:    cobra.NoArgs,
	RunE:    runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <序号|ID>",
	Short: "显示会话的全部消息",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:     "delete <序号|ID>",
	Aliases: []string{"rm"},
	Short:   "删除会话",
	Args:    cobra.ExactArgs(1),
	RunE:    runSessionsDelete,
}

func init() {
	sessionsDeleteCmd.Flags().BoolP("yes", "y", false, "不确认直接删除")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	sessions, err := rt.ctrl.Sessions(cmd.Context())
	if err != nil {
		return err
	}
	printSessions(sessions, "")
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	target, err := resolveSession(ctx, rt.ctrl, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("💬 %s\n", target.Title)
	dimColor.Printf("   ID: %s  创建于 %s\n", target.ID, target.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Println("─────────────────────────────────")
	// 只读展示，不切换会话（切换会清除后端 CSV 数据）
	st := rt.ctrl.Snapshot()
	for _, msg := range target.Messages {
		printMessage(st, msg)
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	target, err := resolveSession(ctx, rt.ctrl, args[0])
	if err != nil {
		return err
	}
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		if !askYesNo(bufio.NewReader(os.Stdin), fmt.Sprintf("确认删除会话 %q？", target.Title)) {
			fmt.Println("已取消")
			return nil
		}
	}
	if err := rt.ctrl.DeleteSession(ctx, target.ID); err != nil {
		return err
	}
	if err := rt.ctrl.Flush(ctx); err != nil {
		return err
	}
	fmt.Println("✓ 会话已删除")
	return nil
}
