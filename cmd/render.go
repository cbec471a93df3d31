package cmd

import (
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"datachat-cli/internal/app"
	"datachat-cli/internal/chart"
	"datachat-cli/internal/model"
)

var (
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	headingColor = color.New(color.Bold)
	sqlColor     = color.New(color.FgMagenta)
	dimColor     = color.New(color.Faint)
)

// chartWidth 文本柱状图的最大宽度
const chartWidth = 40

// chartMaxBars 文本柱状图最多显示的条数
const chartMaxBars = 20

// printNotifications 打印所有待处理的通知，不阻塞
func printNotifications(ctrl *app.Controller) {
	for {
		select {
		case note := <-ctrl.Notifications():
			printNotification(note)
		default:
			return
		}
	}
}

func printNotification(note app.Notification) {
	switch note.Level {
	case app.LevelSuccess:
		successColor.Printf("✓ %s", note.Title)
	case app.LevelWarning:
		warnColor.Printf("⚠️  %s", note.Title)
	case app.LevelError:
		errorColor.Printf("✗ %s", note.Title)
	default:
		infoColor.Printf("ℹ %s", note.Title)
	}
	if note.Message != "" {
		fmt.Printf(": %s", note.Message)
	}
	fmt.Println()
}

// printError 打印操作错误
func printError(err error) {
	errorColor.Fprintf(os.Stderr, "✗ %v\n", err)
}

// printMessage 打印一条消息，回答会附带表格、SQL 和图表（按视图状态）
func printMessage(st app.State, msg model.Message) {
	if msg.IsUser() {
		infoColor.Print("🙋 ")
		fmt.Println(msg.Content)
		return
	}

	if msg.IsError() {
		errorColor.Print("🤖 ")
		errorColor.Println(msg.Content)
		return
	}
	fmt.Print("🤖 ")
	fmt.Println(msg.Content)

	if msg.Heading != nil && *msg.Heading != "" {
		headingColor.Printf("   %s\n", *msg.Heading)
	}
	if msg.Summary != nil && *msg.Summary != "" {
		fmt.Printf("   %s\n", *msg.Summary)
	}
	if msg.Data.Len() > 0 {
		printTable(msg.Data, st.Page(msg.ID), st.Preferences.RowsPerPage)
		hint := fmt.Sprintf("   [消息 %d]", msg.ID)
		if msg.HasMore {
			hint += fmt.Sprintf(" 已加载 %d / %d 行，/more 加载更多", msg.Data.Len(), msg.TotalRows)
		}
		dimColor.Println(hint)
	}
	if msg.SQLQuery != nil && st.View.ShowSQL[msg.ID] {
		printSQL(*msg.SQLQuery)
	}
	if st.View.ShowChart[msg.ID] {
		if spec := st.View.Charts[msg.ID]; spec != nil {
			printChart(spec)
		}
	}
}

// printTable 分页打印表格
func printTable(records *model.Records, page, perPage int) {
	if perPage <= 0 {
		perPage = app.DefaultRowsPerPage
	}
	pages := app.PageCount(records.Len(), perPage)
	start := page * perPage
	rows := records.Slice(start, start+perPage)

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "   %s\n", strings.Join(records.Columns, "\t"))
	for _, row := range rows {
		cells := make([]string, len(records.Columns))
		for i, col := range records.Columns {
			cells[i] = formatCell(row[col])
		}
		fmt.Fprintf(w, "   %s\n", strings.Join(cells, "\t"))
	}
	_ = w.Flush()
	dimColor.Printf("   第 %d/%d 页，共 %d 行\n", page+1, pages, records.Len())
}

func printSQL(sql string) {
	fmt.Println()
	sqlColor.Println("   SQL:")
	for _, line := range strings.Split(sql, "\n") {
		sqlColor.Printf("     %s\n", line)
	}
}

// printChart 用文本柱状图展示图表，数值列取 y 轴
func printChart(spec *chart.Spec) {
	x, y := spec.Encoding.X.Field, spec.Encoding.Y.Field
	fmt.Println()
	headingColor.Printf("   📈 %s (%s / %s)\n", spec.Mark, x, y)

	values := spec.Data.Values
	if len(values) > chartMaxBars {
		values = values[:chartMaxBars]
	}
	maxVal := 0.0
	labelWidth := 0
	for _, row := range values {
		if v, ok := toFloat(row[y]); ok {
			maxVal = math.Max(maxVal, math.Abs(v))
		}
		labelWidth = max(labelWidth, len([]rune(formatCell(row[x]))))
	}
	if maxVal == 0 {
		dimColor.Println("   （没有可绘制的数值）")
		return
	}

	for _, row := range values {
		label := formatCell(row[x])
		v, ok := toFloat(row[y])
		if !ok {
			continue
		}
		n := int(math.Round(math.Abs(v) / maxVal * chartWidth))
		pad := strings.Repeat(" ", labelWidth-len([]rune(label)))
		fmt.Printf("   %s%s │%s %s\n", label, pad, successColor.Sprint(strings.Repeat("█", n)), formatCell(row[y]))
	}
	if len(spec.Data.Values) > chartMaxBars {
		dimColor.Printf("   … 仅显示前 %d 项\n", chartMaxBars)
	}
}

// printSessions 打印会话列表，active 为当前会话 ID
func printSessions(sessions []model.Session, active string) {
	if len(sessions) == 0 {
		fmt.Println("暂无会话")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  #\tID\t标题\t消息数\t更新时间")
	for i, s := range sessions {
		marker := " "
		if s.ID == active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %d\t%s\t%s\t%d\t%s\n",
			marker, i+1, s.ID, s.Title, len(s.Messages), s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return fmt.Sprintf("%.0f", x)
		}
		return fmt.Sprintf("%.2f", x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
