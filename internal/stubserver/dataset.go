package stubserver

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"datachat-cli/internal/model"
)

// table 一张内存表
type table struct {
	name    string
	columns []string
	rows    []map[string]any
}

func (t *table) records() *model.Records {
	return model.NewRecords(t.columns, t.rows)
}

// page 返回第 page 页（从 1 开始）的记录与是否还有更多
func (t *table) page(page, limit int) (*model.Records, bool) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := (page - 1) * limit
	all := t.records()
	rows := all.Slice(offset, offset+limit)
	return model.NewRecords(t.columns, rows), offset+len(rows) < len(t.rows)
}

var tableNameCleaner = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// sanitizeTableName 文件名转为合法的表名
func sanitizeTableName(filename string) string {
	name := strings.ReplaceAll(filename, ".csv", "")
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ToLower(name)
	return tableNameCleaner.ReplaceAllString(name, "_")
}

// parseCSV 解析上传的 CSV，第一行为表头
// 能解析为数字的单元格转为 float64，空单元格为 nil
func parseCSV(name string, r io.Reader) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("No columns to parse from file")
	}
	if err != nil {
		return nil, err
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := &table{name: name, columns: columns}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i >= len(record) {
				row[col] = nil
				continue
			}
			row[col] = parseCell(record[i])
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func parseCell(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// writeCSV 把表格写成 CSV
func writeCSV(records *model.Records) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(records.Columns); err != nil {
		return nil, err
	}
	for _, row := range records.Rows {
		line := make([]string, len(records.Columns))
		for i, col := range records.Columns {
			line[i] = formatCell(row[col])
		}
		if err := w.Write(line); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// schemaPrompt 生成 CSV 表结构描述
func schemaPrompt(tables []*table) string {
	var b strings.Builder
	b.WriteString("CSV tables available:")
	for _, t := range tables {
		fmt.Fprintf(&b, "\nTable %q (%d rows):", t.name, len(t.rows))
		for _, col := range t.columns {
			fmt.Fprintf(&b, "\n    `%s`", col)
		}
	}
	return b.String()
}

// demoSales 演示数据库中的销售表
func demoSales() *table {
	columns := []string{"region", "total_sales", "orders"}
	data := []struct {
		region string
		sales  float64
		orders float64
	}{
		{"North", 125000.5, 310},
		{"South", 98000.25, 250},
		{"East", 143500, 402},
		{"West", 87000.75, 198},
		{"Central", 65000, 150},
	}
	rows := make([]map[string]any, 0, len(data))
	for _, d := range data {
		rows = append(rows, map[string]any{"region": d.region, "total_sales": d.sales, "orders": d.orders})
	}
	return &table{name: "sales", columns: columns, rows: rows}
}
