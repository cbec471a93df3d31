package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ServerError 后端返回非 2xx 状态
// Detail 是后端给出的可读说明（FastAPI 风格的 {"detail": ...}）
type ServerError struct {
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("Server error: %d", e.Status)
}

// IsServerError 判断错误链中是否有 ServerError
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// newServerError 从响应体解析 detail
// detail 可能是字符串，也可能是校验错误数组，后者原样保留 JSON
func newServerError(status int, body []byte) *ServerError {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return &ServerError{Status: status}
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		return &ServerError{Status: status, Detail: detail}
	}
	if string(payload.Detail) == "null" {
		return &ServerError{Status: status}
	}
	return &ServerError{Status: status, Detail: string(payload.Detail)}
}
