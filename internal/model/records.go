package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Records 表格结果：一组同构记录（列名 → 标量）
// JSON 形式是对象数组；Columns 记录第一次出现的列顺序，保证序列化往返后列顺序不变
type Records struct {
	Columns []string
	Rows    []map[string]any
}

// NewRecords 从列顺序与行构造 Records
func NewRecords(columns []string, rows []map[string]any) *Records {
	r := &Records{Columns: append([]string(nil), columns...)}
	for _, row := range rows {
		r.add(row)
	}
	return r
}

// Len 行数
func (r *Records) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Slice 返回 [start, end) 区间的行，越界自动截断
func (r *Records) Slice(start, end int) []map[string]any {
	if r == nil {
		return nil
	}
	if start < 0 {
		start = 0
	}
	if end > len(r.Rows) {
		end = len(r.Rows)
	}
	if start >= end {
		return nil
	}
	return r.Rows[start:end]
}

// Append 追加另一批记录（用于加载更多数据）
func (r *Records) Append(other *Records) {
	if other == nil {
		return
	}
	for _, col := range other.Columns {
		r.addColumn(col)
	}
	for _, row := range other.Rows {
		r.add(row)
	}
}

func (r *Records) add(row map[string]any) {
	if row == nil {
		row = map[string]any{}
	}
	for k := range row {
		r.addColumn(k)
	}
	r.Rows = append(r.Rows, row)
}

func (r *Records) addColumn(col string) {
	for _, c := range r.Columns {
		if c == col {
			return
		}
	}
	r.Columns = append(r.Columns, col)
}

// MarshalJSON 按 Columns 顺序输出每行的键
func (r Records) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range r.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		n := 0
		for _, col := range r.Columns {
			v, ok := row[col]
			if !ok {
				continue
			}
			if n > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
			n++
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON 逐 token 解析对象数组，保留键出现的顺序
func (r *Records) UnmarshalJSON(data []byte) error {
	r.Columns = nil
	r.Rows = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '['); err != nil {
		return err
	}
	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return err
		}
		row := make(map[string]any)
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key, ok := tok.(string)
			if !ok {
				return fmt.Errorf("records: expected object key, got %v", tok)
			}
			var val any
			if err := dec.Decode(&val); err != nil {
				return fmt.Errorf("records: column %q: %w", key, err)
			}
			row[key] = val
			r.addColumn(key)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return err
		}
		r.Rows = append(r.Rows, row)
	}
	return expectDelim(dec, ']')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("records: expected %q, got %v", want, tok)
	}
	return nil
}
