package stubserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = "region,amount\nEU,10.5\nUS,7\nAPAC,\n"

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func upload(t *testing.T, h http.Handler, filename, content string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-csv", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestAsk_WithoutDataSource(t *testing.T) {
	h := New(Options{}).Handler()
	rec, out := doJSON(t, h, http.MethodPost, "/ask", map[string]any{"query": "Show sales trends"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to process query: No database connection established", out["detail"])
}

func TestAsk_DemoDatabase(t *testing.T) {
	h := New(Options{DemoDatabase: true}).Handler()
	rec, out := doJSON(t, h, http.MethodPost, "/ask", map[string]any{"query": "Show sales trends"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SELECT * FROM sales", out["sql_query"])
	assert.Equal(t, "Query executed successfully on database. Returned 5 rows.", out["response"])
	assert.Equal(t, "Overview of sales", out["title"])
	assert.Len(t, out["data"], 5)
	assert.NotEmpty(t, out["visualization"])
	assert.Equal(t, false, out["has_more"])
}

func TestUploadCSV_EntersCSVMode(t *testing.T) {
	h := New(Options{}).Handler()
	rec, out := upload(t, h, "Q1 Sales-Report.csv", salesCSV)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "q1_sales_report", out["table_name"])
	assert.Equal(t, 3.0, out["rows"])
	assert.Equal(t, []any{"region", "amount"}, out["columns"])
	assert.Equal(t, true, out["is_csv_mode"])

	_, status := doJSON(t, h, http.MethodGet, "/csv-status", nil)
	assert.Equal(t, true, status["is_csv_mode"])
	assert.Equal(t, 1.0, status["tables_count"])

	_, answer := doJSON(t, h, http.MethodPost, "/ask", map[string]any{"query": "totals"})
	assert.Equal(t, "Query executed successfully on CSV data. Returned 3 rows.", answer["response"])
	rows := answer["data"].([]any)
	assert.Nil(t, rows[2].(map[string]any)["amount"])
}

func TestUploadCSV_RejectsOtherExtensions(t *testing.T) {
	h := New(Options{}).Handler()
	rec, out := upload(t, h, "notes.txt", "hello")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to upload CSV: Only CSV files are supported", out["detail"])
}

func TestClearCSV(t *testing.T) {
	h := New(Options{}).Handler()
	upload(t, h, "sales.csv", salesCSV)

	rec, out := doJSON(t, h, http.MethodPost, "/clear-csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["is_csv_mode"])

	_, status := doJSON(t, h, http.MethodGet, "/csv-status", nil)
	assert.Equal(t, false, status["is_csv_mode"])
	assert.Equal(t, 0.0, status["tables_count"])
}

func TestConnectAndDisconnect(t *testing.T) {
	h := New(Options{}).Handler()

	rec, out := doJSON(t, h, http.MethodPost, "/connect-db", map[string]any{"type": "oracle", "url": "h", "name": "n"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, out["detail"], "Unsupported database type")

	rec, _ = doJSON(t, h, http.MethodPost, "/connect-db", map[string]any{
		"type": "mysql", "url": "localhost", "name": "shop", "username": "u", "password": "p",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	_, health := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, true, health["database_connected"])

	rec, _ = doJSON(t, h, http.MethodPost, "/disconnect-db", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, health = doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, false, health["database_connected"])
}

func TestMoreDataAndExport(t *testing.T) {
	h := New(Options{DemoDatabase: true}).Handler()
	_, answer := doJSON(t, h, http.MethodPost, "/ask", map[string]any{"query": "q", "limit": 2})
	assert.Equal(t, true, answer["has_more"])
	sql := answer["sql_query"].(string)

	_, more := doJSON(t, h, http.MethodPost, "/get-more-data", map[string]any{"sql_query": sql, "page": 3, "limit": 2})
	assert.Equal(t, 1.0, more["returned_rows"])
	assert.Equal(t, false, more["has_more"])

	rec, _ := doJSON(t, h, http.MethodPost, "/export-csv", map[string]any{"sql_query": sql, "filename": "out.csv"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="out.csv"`, rec.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Equal(t, "region,total_sales,orders", lines[0])
	assert.Len(t, lines, 6)

	rec, out := doJSON(t, h, http.MethodPost, "/export-csv", map[string]any{"sql_query": ""})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to export CSV: No SQL query provided for export", out["detail"])
}

func TestCORSPreflight(t *testing.T) {
	h := New(Options{}).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/ask", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSanitizeTableName(t *testing.T) {
	tests := map[string]string{
		"sales.csv":          "sales",
		"Q1 Report-2024.csv": "q1_report_2024",
		"weird$name(1).csv":  "weird_name_1_",
		"already_clean.CSV":  "already_clean_csv",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeTableName(in), in)
	}
}
