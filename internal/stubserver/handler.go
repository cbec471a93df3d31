package stubserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"datachat-cli/internal/chart"
)

type askRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
	Page  int    `json:"page"`
}

type moreDataRequest struct {
	SQLQuery string `json:"sql_query"`
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
}

type exportRequest struct {
	SQLQuery string `json:"sql_query"`
	Filename string `json:"filename"`
}

type credentials struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":      "Data Analytics Chatbot API is running!",
		"version":      Version,
		"status":       "operational",
		"health_check": "/health",
	})
}

func (s *Server) health(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"timestamp":          float64(time.Now().UnixNano()) / 1e9,
		"database_connected": s.db != nil,
		"schema_loaded":      s.db != nil || len(s.csvTables) > 0,
		"csv_mode":           s.csvMode,
		"database_name":      s.dbName,
		"version":            Version,
	})
}

// ask 对当前数据源执行整表查询
func (s *Server) ask(c *gin.Context) {
	start := time.Now()

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		internalError(c, "Failed to process query", errors.New("Query cannot be empty"))
		return
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	s.mu.Lock()
	source, err := s.currentSourceLocked()
	if err != nil {
		s.mu.Unlock()
		internalError(c, "Failed to process query", err)
		return
	}
	sql := fmt.Sprintf("SELECT * FROM %s", source.name)
	s.queries[sql] = source
	isCSV := s.csvMode
	s.mu.Unlock()

	rows, hasMore := source.page(page, limit)
	total := len(source.rows)

	var visualization *string
	if spec := chart.Auto(rows); spec != nil {
		if raw, err := spec.Marshal(); err == nil {
			visualization = &raw
		}
	}

	title := fmt.Sprintf("Overview of %s", source.name)
	summary := fmt.Sprintf("The %s table has %d rows across %d columns.", source.name, total, len(source.columns))

	c.JSON(http.StatusOK, gin.H{
		"response":       responseMessage(total, rows.Len(), page, limit, isCSV),
		"sql_query":      sql,
		"execution_time": time.Since(start).Seconds(),
		"visualization":  visualization,
		"data":           rows,
		"summary":        summary,
		"title":          title,
		"total_rows":     total,
		"returned_rows":  rows.Len(),
		"page":           page,
		"has_more":       hasMore,
	})
}

func (s *Server) getMoreData(c *gin.Context) {
	var req moreDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	if req.SQLQuery == "" {
		internalError(c, "Failed to retrieve data", errors.New("SQL query is required"))
		return
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	s.mu.Lock()
	source, ok := s.queries[req.SQLQuery]
	s.mu.Unlock()
	if !ok {
		internalError(c, "Failed to retrieve data", errors.New("Invalid SQL query"))
		return
	}

	rows, hasMore := source.page(page, limit)
	c.JSON(http.StatusOK, gin.H{
		"data":          rows,
		"total_rows":    len(source.rows),
		"returned_rows": rows.Len(),
		"page":          page,
		"has_more":      hasMore,
		"message":       fmt.Sprintf("Retrieved %d rows from page %d", rows.Len(), page),
	})
}

// uploadCSV 解析上传文件并进入 CSV 模式
func (s *Server) uploadCSV(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusUnprocessableEntity, "Field required: file")
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		internalError(c, "Failed to upload CSV", errors.New("Only CSV files are supported"))
		return
	}

	file, err := header.Open()
	if err != nil {
		internalError(c, "Failed to upload CSV", err)
		return
	}
	defer file.Close()

	name := sanitizeTableName(header.Filename)
	t, err := parseCSV(name, file)
	if err != nil {
		internalError(c, "Failed to upload CSV", err)
		return
	}

	s.mu.Lock()
	replaced := false
	for i, existing := range s.csvTables {
		if existing.name == name {
			s.csvTables[i] = t
			replaced = true
		}
	}
	if !replaced {
		s.csvTables = append(s.csvTables, t)
	}
	s.csvMode = true
	s.mu.Unlock()

	s.log.Info("stub", "csv uploaded", map[string]any{"table": name, "rows": len(t.rows), "columns": len(t.columns)})

	sample, _ := t.page(1, 5)
	c.JSON(http.StatusOK, gin.H{
		"message":     fmt.Sprintf("CSV file uploaded successfully as table '%s'", name),
		"table_name":  name,
		"rows":        len(t.rows),
		"columns":     t.columns,
		"sample_data": sample,
		"is_csv_mode": true,
	})
}

// exportCSV 把已执行查询的全部结果以 CSV 返回
func (s *Server) exportCSV(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	if req.SQLQuery == "" {
		internalError(c, "Failed to export CSV", errors.New("No SQL query provided for export"))
		return
	}
	filename := req.Filename
	if filename == "" {
		filename = "query_results.csv"
	}

	s.mu.Lock()
	source, ok := s.queries[req.SQLQuery]
	available := s.csvMode || s.db != nil
	s.mu.Unlock()

	if !available {
		internalError(c, "Failed to export CSV", errors.New("No database connection available"))
		return
	}
	if !ok {
		internalError(c, "Failed to export CSV", fmt.Errorf("unknown query: %s", req.SQLQuery))
		return
	}
	if len(source.rows) == 0 {
		internalError(c, "Failed to export CSV", errors.New("Query returned no results to export"))
		return
	}

	content, err := writeCSV(source.records())
	if err != nil {
		internalError(c, "Failed to export CSV", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv", content)
}

func (s *Server) csvStatus(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := make([]gin.H, 0, len(s.csvTables))
	for _, t := range s.csvTables {
		tables = append(tables, gin.H{
			"name":    t.name,
			"rows":    len(t.rows),
			"columns": t.columns,
		})
	}

	prompt := ""
	if len(s.csvTables) > 0 {
		prompt = schemaPrompt(s.csvTables)
	}

	c.JSON(http.StatusOK, gin.H{
		"is_csv_mode":   s.csvMode,
		"tables_count":  len(s.csvTables),
		"schema_prompt": prompt,
		"tables":        tables,
	})
}

func (s *Server) clearCSV(c *gin.Context) {
	s.mu.Lock()
	for sql, t := range s.queries {
		for _, csvTable := range s.csvTables {
			if t == csvTable {
				delete(s.queries, sql)
			}
		}
	}
	s.csvTables = nil
	s.csvMode = false
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"message":     "CSV data cleared successfully",
		"is_csv_mode": false,
	})
}

func (s *Server) connectDB(c *gin.Context) {
	var creds credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		fail(c, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	switch strings.ToLower(creds.Type) {
	case "mysql", "postgresql":
	default:
		internalError(c, "Failed to connect to database", fmt.Errorf("Unsupported database type: %s", creds.Type))
		return
	}
	if creds.URL == "" || creds.Name == "" {
		internalError(c, "Failed to connect to database", errors.New("host and database name are required"))
		return
	}

	s.mu.Lock()
	s.db = demoSales()
	s.dbName = creds.Name
	s.mu.Unlock()

	s.log.Info("stub", "database connected", map[string]any{"type": creds.Type, "name": creds.Name})
	c.JSON(http.StatusOK, gin.H{"message": "Connected to database and schema loaded successfully."})
}

func (s *Server) disconnectDB(c *gin.Context) {
	s.mu.Lock()
	s.db = nil
	s.dbName = ""
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"message": "Disconnected from database successfully."})
}

// currentSourceLocked 当前模式下的数据源，CSV 模式取最近上传的表
func (s *Server) currentSourceLocked() (*table, error) {
	if s.csvMode {
		if len(s.csvTables) == 0 {
			return nil, errors.New("No CSV data uploaded")
		}
		return s.csvTables[len(s.csvTables)-1], nil
	}
	if s.db == nil {
		return nil, errors.New("No database connection established")
	}
	return s.db, nil
}

func responseMessage(total, returned, page, limit int, isCSV bool) string {
	source := "database"
	if isCSV {
		source = "CSV data"
	}
	if total > limit {
		return fmt.Sprintf("Query executed successfully on %s. Showing %d rows from page %d of %d total rows.", source, returned, page, total)
	}
	return fmt.Sprintf("Query executed successfully on %s. Returned %d rows.", source, returned)
}
