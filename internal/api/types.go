package api

import "datachat-cli/internal/model"

// AskRequest 自然语言提问
type AskRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	Page  int    `json:"page,omitempty"`
}

// AskResult /ask 的响应
// 除 Response 外都是可选字段
type AskResult struct {
	Response      string         `json:"response"`
	SQLQuery      *string        `json:"sql_query"`
	ExecutionTime *float64       `json:"execution_time"`
	Visualization *string        `json:"visualization"`
	Data          *model.Records `json:"data"`
	Summary       *string        `json:"summary"`
	Title         *string        `json:"title"`
	TotalRows     *int           `json:"total_rows"`
	ReturnedRows  *int           `json:"returned_rows"`
	Page          *int           `json:"page"`
	HasMore       *bool          `json:"has_more"`
}

// MoreDataRequest 获取已执行查询的下一页
type MoreDataRequest struct {
	SQLQuery string `json:"sql_query"`
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
}

// MoreDataResult /get-more-data 的响应
type MoreDataResult struct {
	Data         *model.Records `json:"data"`
	TotalRows    int            `json:"total_rows"`
	ReturnedRows int            `json:"returned_rows"`
	Page         int            `json:"page"`
	HasMore      bool           `json:"has_more"`
	Message      string         `json:"message"`
}

// UploadResult /upload-csv 的响应
type UploadResult struct {
	Message    string         `json:"message"`
	TableName  string         `json:"table_name"`
	Rows       int            `json:"rows"`
	Columns    []string       `json:"columns"`
	SampleData *model.Records `json:"sample_data,omitempty"`
	IsCSVMode  bool           `json:"is_csv_mode"`
}

// CSVTable 已上传的一张表
type CSVTable struct {
	Name    string   `json:"name"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// CSVStatus /csv-status 的响应
type CSVStatus struct {
	IsCSVMode    bool       `json:"is_csv_mode"`
	TablesCount  int        `json:"tables_count"`
	SchemaPrompt string     `json:"schema_prompt,omitempty"`
	Tables       []CSVTable `json:"tables"`
}

// MessageResult 只带提示信息的响应（clear-csv / connect-db / disconnect-db）
type MessageResult struct {
	Message   string `json:"message"`
	IsCSVMode *bool  `json:"is_csv_mode,omitempty"`
}

// ExportRequest 导出查询结果
type ExportRequest struct {
	SQLQuery string `json:"sql_query"`
	Filename string `json:"filename"`
}

// Health /health 的响应
type Health struct {
	Status            string  `json:"status"`
	Timestamp         float64 `json:"timestamp"`
	DatabaseConnected bool    `json:"database_connected"`
	SchemaLoaded      bool    `json:"schema_loaded"`
	CSVMode           bool    `json:"csv_mode"`
	Version           string  `json:"version"`
}

// Credentials 数据库连接凭证
// 连接请求结束后（无论成功与否）调用方应立即 Clear
type Credentials struct {
	Type     string `json:"type"` // mysql / postgresql
	URL      string `json:"url"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// DisplayName 连接成功后展示的数据库名
func (c *Credentials) DisplayName() string {
	if c == nil || c.Name == "" {
		return "Database"
	}
	return c.Name
}

// Clear 清空所有字段
func (c *Credentials) Clear() {
	if c == nil {
		return
	}
	*c = Credentials{}
}

// File 待上传的文件
// ContentType 是声明的 MIME 类型，由调用方根据文件扩展名或用户输入给出
type File struct {
	Name        string
	ContentType string
	Content     []byte
}
