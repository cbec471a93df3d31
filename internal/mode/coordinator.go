// Package mode 协调 CSV 模式与数据库连接模式的互斥
// Coordinator 不加锁，由持有应用状态的调用方串行访问
package mode

import (
	"mime"
	"strings"

	"datachat-cli/internal/api"
	"datachat-cli/internal/apperr"
)

// CSVMediaType 上传文件必须声明的类型
const CSVMediaType = "text/csv"

// State 应用模式
type State int

// 三种互斥的模式
const (
	Idle State = iota
	CsvActive
	DbConnected
)

func (s State) String() string {
	switch s {
	case CsvActive:
		return "csv mode"
	case DbConnected:
		return "database connected"
	default:
		return "idle"
	}
}

// Coordinator 模式状态机
type Coordinator struct {
	state    State
	dbName   string
	csvTable string
}

// New 创建处于 Idle 的协调器
func New() *Coordinator {
	return &Coordinator{state: Idle}
}

// State 当前模式
func (c *Coordinator) State() State {
	return c.state
}

// IsCSV 是否处于 CSV 模式
func (c *Coordinator) IsCSV() bool {
	return c.state == CsvActive
}

// IsDBConnected 是否已连接数据库
func (c *Coordinator) IsDBConnected() bool {
	return c.state == DbConnected
}

// DatabaseName 已连接数据库的展示名
func (c *Coordinator) DatabaseName() string {
	return c.dbName
}

// CSVTable 最近上传的表名，启动时从后端同步的状态可能为空
func (c *Coordinator) CSVTable() string {
	return c.csvTable
}

// CheckCSVUpload 校验是否允许上传，不修改状态
// 声明类型不是 text/csv 返回 ValidationError，已连接数据库返回 StateViolation
func (c *Coordinator) CheckCSVUpload(file *api.File) error {
	if file == nil || (len(file.Content) == 0 && file.Name == "") {
		return apperr.Validation("file", "no file selected")
	}
	if !IsCSVType(file.ContentType) {
		return apperr.Validation("file", "please select a valid CSV file")
	}
	if c.state == DbConnected {
		return apperr.Violation(c.state.String(), "upload CSV", "disconnect the database first")
	}
	return nil
}

// CSVUploaded 上传成功：进入 CSV 模式并清除数据库连接标记
func (c *Coordinator) CSVUploaded(table string) {
	c.state = CsvActive
	c.csvTable = table
	c.dbName = ""
}

// CheckDBConnect 校验是否允许连接数据库，不修改状态
func (c *Coordinator) CheckDBConnect(creds *api.Credentials) error {
	if creds == nil {
		return apperr.Validation("credentials", "missing database credentials")
	}
	if c.state == CsvActive {
		return apperr.Violation(c.state.String(), "connect database", "clear the CSV data first")
	}
	return nil
}

// DBConnected 连接成功：进入数据库模式
func (c *Coordinator) DBConnected(name string) {
	c.state = DbConnected
	c.dbName = name
	c.csvTable = ""
}

// ClearCSV 退出 CSV 模式，幂等
// 返回状态是否发生变化
func (c *Coordinator) ClearCSV() bool {
	if c.state != CsvActive {
		return false
	}
	c.state = Idle
	c.csvTable = ""
	return true
}

// DisconnectDB 断开数据库，本地状态总是重置
func (c *Coordinator) DisconnectDB() bool {
	if c.state != DbConnected {
		c.dbName = ""
		return false
	}
	c.state = Idle
	c.dbName = ""
	return true
}

// Reset 回到 Idle（新建或切换会话）
func (c *Coordinator) Reset() {
	c.state = Idle
	c.dbName = ""
	c.csvTable = ""
}

// Resync 根据后端 csv-status 同步 CSV 标记
// 后端报告 CSV 模式时进入 CsvActive；否则只退出 CsvActive，不影响数据库连接
func (c *Coordinator) Resync(isCSVMode bool) {
	if isCSVMode {
		if c.state != CsvActive {
			c.state = CsvActive
			c.dbName = ""
		}
		return
	}
	c.ClearCSV()
}

// IsCSVType 判断声明的 MIME 类型是否为 text/csv（忽略参数）
func IsCSVType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.EqualFold(mediaType, CSVMediaType)
}
