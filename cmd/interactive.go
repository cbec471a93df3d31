package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"datachat-cli/internal/api"
	"datachat-cli/internal/app"
	"datachat-cli/internal/mode"
)

// repl 交互模式
type repl struct {
	rt *runtime
	in *bufio.Reader

	// cancel 正在进行的请求，Ctrl+C 时取消它而不是退出
	mu     sync.Mutex
	cancel context.CancelFunc
}

// runInteractive 交互式主流程
func runInteractive(cmd *cobra.Command, args []string) error {
	printBanner()

	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	fmt.Println("🌐 正在连接后端...")
	fmt.Println("─────────────────────────────────")
	fmt.Printf("  📡 后端: %s\n", rt.client.BaseURL())
	fmt.Printf("  💾 会话存储: %s\n", rt.cfg.Store.Backend)
	fmt.Println()

	rt.start(ctx)

	st := rt.ctrl.Snapshot()
	if st.Health != nil {
		fmt.Printf("  ✅ 后端版本 %s，%s\n", st.Health.Version, st.Mode)
	}
	fmt.Println()
	for _, msg := range st.Messages {
		printMessage(st, msg)
	}
	fmt.Println()
	dimColor.Println("输入问题直接提问，/help 查看命令，/quit 退出")
	fmt.Println()

	r := &repl{rt: rt, in: bufio.NewReader(os.Stdin)}
	stop := r.watchSignals()
	defer stop()

	return r.loop(ctx)
}

func (r *repl) loop(ctx context.Context) error {
	for {
		line, err := readLine(r.in, r.prompt())
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println()
				fmt.Println("👋 再见！")
				return nil
			}
			return err
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := r.command(ctx, line); quit {
				fmt.Println("👋 再见！")
				return nil
			}
		} else {
			r.ask(ctx, line)
		}
		printNotifications(r.rt.ctrl)
		fmt.Println()
	}
}

// prompt 提示符带上当前模式
func (r *repl) prompt() string {
	st := r.rt.ctrl.Snapshot()
	switch st.Mode {
	case mode.CsvActive:
		return infoColor.Sprintf("[CSV: %s] ", st.CSVTable) + "› "
	case mode.DbConnected:
		return successColor.Sprintf("[DB: %s] ", st.DatabaseName) + "› "
	default:
		return "› "
	}
}

// watchSignals Ctrl+C 取消正在进行的请求；空闲时退出
func (r *repl) watchSignals() func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range sigChan {
			r.mu.Lock()
			cancel := r.cancel
			r.mu.Unlock()
			if cancel != nil {
				cancel()
				continue
			}
			fmt.Println()
			fmt.Println("正在保存会话...")
			r.rt.close()
			fmt.Println("👋 再见！")
			os.Exit(0)
		}
	}()
	return func() {
		signal.Stop(sigChan)
		close(sigChan)
	}
}

// request 为一次网络操作创建可被 Ctrl+C 取消的 context
func (r *repl) request(ctx context.Context) (context.Context, func()) {
	reqCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	return reqCtx, func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}
}

func (r *repl) ask(ctx context.Context, text string) {
	reqCtx, done := r.request(ctx)
	defer done()

	dimColor.Println("🤔 思考中...")
	msg, err := r.rt.ctrl.Send(reqCtx, text)
	if err != nil {
		printError(err)
		return
	}
	printMessage(r.rt.ctrl.Snapshot(), msg)
}

// command 执行斜杠命令，返回 true 表示退出
func (r *repl) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]
	arg := strings.Join(args, " ")

	reqCtx, done := r.request(ctx)
	defer done()

	var err error
	switch name {
	case "/quit", "/exit", "/q":
		return true
	case "/help", "/h":
		printHelp()
	case "/new":
		err = r.newSession(reqCtx)
	case "/sessions", "/ls":
		err = r.listSessions(reqCtx)
	case "/switch":
		err = r.switchSession(reqCtx, arg)
	case "/delete", "/rm":
		err = r.deleteSession(reqCtx, arg)
	case "/history":
		r.printHistory()
	case "/upload":
		err = r.upload(reqCtx, arg)
	case "/clear-csv":
		err = r.rt.ctrl.ClearCSV(reqCtx)
	case "/connect":
		err = r.connect(reqCtx)
	case "/disconnect":
		err = r.rt.ctrl.DisconnectDB(reqCtx)
	case "/export":
		err = r.export(reqCtx, arg)
	case "/more":
		err = r.more(reqCtx)
	case "/sql", "/chart", "/next", "/prev":
		err = r.view(name, arg)
	case "/status":
		r.status()
	default:
		err = fmt.Errorf("未知命令 %s，输入 /help 查看可用命令", name)
	}
	if err != nil {
		printError(err)
	}
	return false
}

func printHelp() {
	fmt.Println("可用命令:")
	fmt.Println("  /new                 新建会话")
	fmt.Println("  /sessions            列出所有会话")
	fmt.Println("  /switch <序号|ID>     切换会话")
	fmt.Println("  /delete <序号|ID>     删除会话")
	fmt.Println("  /history             显示当前会话的全部消息")
	fmt.Println("  /upload <文件>        上传 CSV 文件")
	fmt.Println("  /clear-csv           清除已上传的 CSV 数据")
	fmt.Println("  /connect             连接数据库")
	fmt.Println("  /disconnect          断开数据库")
	fmt.Println("  /export [文件名]      导出最近一次查询结果为 CSV")
	fmt.Println("  /more                加载最近一次查询的更多数据")
	fmt.Println("  /sql [消息ID]         显示/隐藏 SQL")
	fmt.Println("  /chart [消息ID]       显示/隐藏图表")
	fmt.Println("  /next, /prev [消息ID] 表格翻页")
	fmt.Println("  /status              当前状态")
	fmt.Println("  /quit                退出")
}

// confirmReset CSV 模式下新建/切换会话会清除已上传的数据，先确认
func (r *repl) confirmReset() bool {
	st := r.rt.ctrl.Snapshot()
	if st.Mode != mode.CsvActive || !st.Preferences.ConfirmModeReset {
		return true
	}
	return askYesNo(r.in, fmt.Sprintf("当前处于 CSV 模式（表 %s），继续将清除已上传的 CSV 数据，是否继续？", st.CSVTable))
}

func (r *repl) newSession(ctx context.Context) error {
	if !r.confirmReset() {
		fmt.Println("已取消")
		return nil
	}
	if _, err := r.rt.ctrl.NewSession(ctx); err != nil {
		return err
	}
	fmt.Println("🆕 已创建新会话")
	r.printHistory()
	return nil
}

func (r *repl) listSessions(ctx context.Context) error {
	sessions, err := r.rt.ctrl.Sessions(ctx)
	if err != nil {
		return err
	}
	active := ""
	if s := r.rt.ctrl.Snapshot().Session; s != nil {
		active = s.ID
	}
	printSessions(sessions, active)
	return nil
}

func (r *repl) switchSession(ctx context.Context, ref string) error {
	target, err := resolveSession(ctx, r.rt.ctrl, ref)
	if err != nil {
		return err
	}
	if !r.confirmReset() {
		fmt.Println("已取消")
		return nil
	}
	if _, err := r.rt.ctrl.SwitchSession(ctx, target.ID); err != nil {
		return err
	}
	fmt.Printf("🔀 已切换到会话: %s\n", target.Title)
	r.printHistory()
	return nil
}

func (r *repl) deleteSession(ctx context.Context, ref string) error {
	target, err := resolveSession(ctx, r.rt.ctrl, ref)
	if err != nil {
		return err
	}
	if !askYesNo(r.in, fmt.Sprintf("确认删除会话 %q？", target.Title)) {
		fmt.Println("已取消")
		return nil
	}
	if err := r.rt.ctrl.DeleteSession(ctx, target.ID); err != nil {
		return err
	}
	fmt.Println("🗑️  会话已删除")
	return nil
}

func (r *repl) printHistory() {
	st := r.rt.ctrl.Snapshot()
	fmt.Println("─────────────────────────────────")
	for _, msg := range st.Messages {
		printMessage(st, msg)
	}
}

func (r *repl) upload(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("用法: /upload <文件>")
	}
	file, err := loadCSVFile(path, "")
	if err != nil {
		return err
	}
	dimColor.Printf("📤 正在上传 %s...\n", file.Name)
	_, err = r.rt.ctrl.UploadCSV(ctx, file)
	return err
}

func (r *repl) connect(ctx context.Context) error {
	creds := &api.Credentials{}
	defer creds.Clear()
	if err := promptCredentials(r.in, creds); err != nil {
		return err
	}
	dimColor.Println("🔌 正在连接数据库...")
	return r.rt.ctrl.ConnectDB(ctx, creds)
}

func (r *repl) export(ctx context.Context, filename string) error {
	if filename == "" {
		filename = app.DefaultExportFilename(time.Now())
	}
	n, err := exportToFile(ctx, r.rt.ctrl, "", filename)
	if err != nil {
		return err
	}
	fmt.Printf("💾 已导出到 %s（%d 字节）\n", filename, n)
	return nil
}

func (r *repl) more(ctx context.Context) error {
	dimColor.Println("⏬ 正在加载更多数据...")
	msg, err := r.rt.ctrl.MoreData(ctx)
	if err != nil {
		return err
	}
	printMessage(r.rt.ctrl.Snapshot(), msg)
	return nil
}

// view 视图操作，不指定消息 ID 时作用于最近一条带结果的回答
func (r *repl) view(name, arg string) error {
	id, err := r.targetMessage(arg)
	if err != nil {
		return err
	}

	ctrl := r.rt.ctrl
	switch name {
	case "/sql":
		_, err = ctrl.ToggleSQL(id)
	case "/chart":
		_, err = ctrl.ToggleChart(id)
	case "/next":
		_, err = ctrl.NextPage(id)
	case "/prev":
		_, err = ctrl.PrevPage(id)
	}
	if err != nil {
		return err
	}

	st := ctrl.Snapshot()
	if msg, ok := st.Message(id); ok {
		printMessage(st, msg)
	}
	return nil
}

func (r *repl) targetMessage(arg string) (int64, error) {
	if arg != "" {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("无效的消息 ID: %s", arg)
		}
		return id, nil
	}
	st := r.rt.ctrl.Snapshot()
	for i := len(st.Messages) - 1; i >= 0; i-- {
		if st.Messages[i].HasResult() {
			return st.Messages[i].ID, nil
		}
	}
	return 0, errors.New("当前会话还没有查询结果")
}

func (r *repl) status() {
	st := r.rt.ctrl.Snapshot()
	fmt.Printf("  📡 后端: %s\n", r.rt.client.BaseURL())
	fmt.Printf("  🔀 模式: %s\n", st.Mode)
	if st.DatabaseName != "" {
		fmt.Printf("  🗄️  数据库: %s\n", st.DatabaseName)
	}
	if st.CSVTable != "" {
		fmt.Printf("  📄 CSV 表: %s\n", st.CSVTable)
	}
	if st.Session != nil {
		fmt.Printf("  💬 会话: %s (%s)，%d 条消息\n", st.Session.Title, st.Session.ID, len(st.Messages))
	} else {
		fmt.Println("  💬 会话: 尚未开始（第一次提问时创建）")
	}
	if st.LastSQL != "" {
		fmt.Printf("  🧾 最近 SQL: %s\n", st.LastSQL)
	}
}
