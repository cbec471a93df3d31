// Package chart 根据表格结果推断一个简单的图表描述
// 输出是 vega-lite 风格的 JSON：mark + encoding + data.values
package chart

import (
	"encoding/json"
	"fmt"
	"sort"

	"datachat-cli/internal/model"
)

// 图表类型
const (
	MarkBar   = "bar"
	MarkLine  = "line"
	MarkPoint = "point"
)

// 字段类型
const (
	TypeNominal      = "nominal"
	TypeQuantitative = "quantitative"
	TypeTemporal     = "temporal"
)

// Field 坐标轴编码
type Field struct {
	Field string `json:"field"`
	Type  string `json:"type"`
}

// Encoding x / y 编码
type Encoding struct {
	X Field `json:"x"`
	Y Field `json:"y"`
}

// Data 内联数据
type Data struct {
	Values []map[string]any `json:"values"`
}

// Spec 图表描述
type Spec struct {
	Mark     string   `json:"mark"`
	Encoding Encoding `json:"encoding"`
	Data     Data     `json:"data"`
}

// Auto 按列的类型推断图表
//   - 单列：按取值计数的柱状图
//   - 含 date / time 列：折线图
//   - 同时有文本列和数值列：柱状图
//   - 其他：前两列的散点图
func Auto(records *model.Records) *Spec {
	if records.Len() == 0 || len(records.Columns) == 0 {
		return nil
	}
	cols := records.Columns

	if len(cols) == 1 {
		return countSpec(records, cols[0])
	}

	for _, timeCol := range []string{"date", "time"} {
		if contains(cols, timeCol) {
			y := firstOther(cols, timeCol)
			return &Spec{
				Mark:     MarkLine,
				Encoding: Encoding{X: Field{timeCol, TypeTemporal}, Y: Field{y, TypeQuantitative}},
				Data:     Data{Values: records.Rows},
			}
		}
	}

	cat, num := "", ""
	for _, col := range cols {
		switch columnKind(records, col) {
		case TypeNominal:
			if cat == "" {
				cat = col
			}
		case TypeQuantitative:
			if num == "" {
				num = col
			}
		}
	}
	if cat != "" && num != "" {
		return &Spec{
			Mark:     MarkBar,
			Encoding: Encoding{X: Field{cat, TypeNominal}, Y: Field{num, TypeQuantitative}},
			Data:     Data{Values: records.Rows},
		}
	}

	return &Spec{
		Mark:     MarkPoint,
		Encoding: Encoding{X: Field{cols[0], TypeQuantitative}, Y: Field{cols[1], TypeQuantitative}},
		Data:     Data{Values: records.Rows},
	}
}

// Bar 用前两列构造柱状图，第一列为类别，第二列为数值
func Bar(records *model.Records) *Spec {
	if records.Len() == 0 || len(records.Columns) < 2 {
		return nil
	}
	return &Spec{
		Mark: MarkBar,
		Encoding: Encoding{
			X: Field{records.Columns[0], TypeNominal},
			Y: Field{records.Columns[1], TypeQuantitative},
		},
		Data: Data{Values: records.Rows},
	}
}

// Marshal 序列化为 JSON 字符串
func (s *Spec) Marshal() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Parse 解析后端返回的图表 JSON
func Parse(raw string) (*Spec, error) {
	var spec Spec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return nil, fmt.Errorf("invalid visualization: %w", err)
	}
	return &spec, nil
}

func countSpec(records *model.Records, col string) *Spec {
	counts := map[string]int{}
	var order []string
	for _, row := range records.Rows {
		key := fmt.Sprint(row[col])
		if _, ok := counts[key]; !ok {
			order = append(order, key)
		}
		counts[key]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	values := make([]map[string]any, 0, len(order))
	for _, key := range order {
		values = append(values, map[string]any{col: key, "count": float64(counts[key])})
	}
	return &Spec{
		Mark:     MarkBar,
		Encoding: Encoding{X: Field{col, TypeNominal}, Y: Field{"count", TypeQuantitative}},
		Data:     Data{Values: values},
	}
}

// columnKind 以第一个非空值判断列类型
func columnKind(records *model.Records, col string) string {
	for _, row := range records.Rows {
		switch row[col].(type) {
		case nil:
			continue
		case float64, float32, int, int64, int32:
			return TypeQuantitative
		case string:
			return TypeNominal
		default:
			return ""
		}
	}
	return ""
}

func contains(cols []string, want string) bool {
	for _, c := range cols {
		if c == want {
			return true
		}
	}
	return false
}

func firstOther(cols []string, skip string) string {
	for _, c := range cols {
		if c != skip {
			return c
		}
	}
	return skip
}
