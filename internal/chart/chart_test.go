package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat-cli/internal/model"
)

func TestAuto(t *testing.T) {
	tests := []struct {
		name    string
		records *model.Records
		mark    string
		x, y    string
	}{
		{
			name:    "category and number",
			records: model.NewRecords([]string{"region", "total"}, []map[string]any{{"region": "EU", "total": 3.0}}),
			mark:    MarkBar,
			x:       "region",
			y:       "total",
		},
		{
			name:    "date column",
			records: model.NewRecords([]string{"date", "sales"}, []map[string]any{{"date": "2024-01-01", "sales": 1.0}}),
			mark:    MarkLine,
			x:       "date",
			y:       "sales",
		},
		{
			name:    "single column counts",
			records: model.NewRecords([]string{"status"}, []map[string]any{{"status": "open"}, {"status": "open"}, {"status": "closed"}}),
			mark:    MarkBar,
			x:       "status",
			y:       "count",
		},
		{
			name:    "two numbers",
			records: model.NewRecords([]string{"price", "qty"}, []map[string]any{{"price": 2.0, "qty": 4.0}}),
			mark:    MarkPoint,
			x:       "price",
			y:       "qty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := Auto(tt.records)
			require.NotNil(t, spec)
			assert.Equal(t, tt.mark, spec.Mark)
			assert.Equal(t, tt.x, spec.Encoding.X.Field)
			assert.Equal(t, tt.y, spec.Encoding.Y.Field)
		})
	}
}

func TestAuto_CountsSortedByFrequency(t *testing.T) {
	records := model.NewRecords([]string{"status"}, []map[string]any{{"status": "closed"}, {"status": "open"}, {"status": "open"}})
	spec := Auto(records)
	require.Len(t, spec.Data.Values, 2)
	assert.Equal(t, "open", spec.Data.Values[0]["status"])
	assert.Equal(t, 2.0, spec.Data.Values[0]["count"])
}

func TestAuto_EmptyIsNil(t *testing.T) {
	assert.Nil(t, Auto(nil))
	assert.Nil(t, Auto(model.NewRecords([]string{"a"}, nil)))
	assert.Nil(t, Bar(model.NewRecords([]string{"a"}, []map[string]any{{"a": 1.0}})))
}

func TestParse(t *testing.T) {
	spec := Bar(model.NewRecords([]string{"region", "total"}, []map[string]any{{"region": "EU", "total": 3.0}}))
	raw, err := spec.Marshal()
	require.NoError(t, err)

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, spec.Encoding, parsed.Encoding)

	_, err = Parse("not json")
	assert.Error(t, err)
}
