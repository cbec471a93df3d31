// Package api 封装与数据分析后端的 HTTP 交互
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"datachat-cli/internal/logger"
)

// Client API 客户端
// baseURL: 例如 http://localhost:8001
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

// Option 客户端可选项
type Option func(*Client)

// WithTimeout 设置请求超时，0 表示使用传输层默认行为
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger 设置日志
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient 创建 API 客户端
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL 后端地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// --- 查询 ---

// Ask 提交自然语言问题
func (c *Client) Ask(ctx context.Context, query string) (*AskResult, error) {
	var result AskResult
	if err := c.post(ctx, "/ask", &AskRequest{Query: query}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetMoreData 获取已执行查询的另一页数据
func (c *Client) GetMoreData(ctx context.Context, req *MoreDataRequest) (*MoreDataResult, error) {
	if req == nil {
		return nil, fmt.Errorf("请求体为空")
	}
	var result MoreDataResult
	if err := c.post(ctx, "/get-more-data", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// --- CSV ---

// UploadCSV 以 multipart 表单上传 CSV 文件，字段名为 file
func (c *Client) UploadCSV(ctx context.Context, file *File) (*UploadResult, error) {
	if file == nil {
		return nil, fmt.Errorf("文件为空")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(file.Name)))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-csv", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result UploadResult
	if err := c.doJSON(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ClearCSV 清除后端的 CSV 数据，回到数据库模式
func (c *Client) ClearCSV(ctx context.Context) (*MessageResult, error) {
	var result MessageResult
	if err := c.post(ctx, "/clear-csv", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CSVStatus 查询后端当前是否处于 CSV 模式
func (c *Client) CSVStatus(ctx context.Context) (*CSVStatus, error) {
	var result CSVStatus
	if err := c.get(ctx, "/csv-status", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExportCSV 导出查询结果，响应体原样写入 w
// 返回写入的字节数
func (c *Client) ExportCSV(ctx context.Context, req *ExportRequest, w io.Writer) (int64, error) {
	if req == nil {
		return 0, fmt.Errorf("请求体为空")
	}
	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, "/export-csv", req)
	if err != nil {
		return 0, err
	}

	resp, err := c.send(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return 0, newServerError(resp.StatusCode, body)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("写入导出文件失败: %w", err)
	}
	return n, nil
}

// --- 数据库连接 ---

// ConnectDB 连接数据库
func (c *Client) ConnectDB(ctx context.Context, creds *Credentials) (*MessageResult, error) {
	if creds == nil {
		return nil, fmt.Errorf("凭证为空")
	}
	var result MessageResult
	if err := c.post(ctx, "/connect-db", creds, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DisconnectDB 断开数据库连接
func (c *Client) DisconnectDB(ctx context.Context) (*MessageResult, error) {
	var result MessageResult
	if err := c.post(ctx, "/disconnect-db", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health 健康检查
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var result Health
	if err := c.get(ctx, "/health", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// --- 通用请求封装 ---

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	req, err := c.newJSONRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(jsonBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("api", "request failed", map[string]any{
			"method": req.Method,
			"path":   req.URL.Path,
			"error":  err,
		})
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	c.log.Debug("api", "request", map[string]any{
		"method":   req.Method,
		"path":     req.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})
	return resp, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newServerError(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
