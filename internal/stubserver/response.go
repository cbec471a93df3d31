package stubserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// errorResponse 错误响应，与真实后端一致使用 {"detail": "..."}
type errorResponse struct {
	Detail string `json:"detail"`
}

// fail 返回错误响应并中止后续处理
// 参数:
//   - c: Gin 上下文
//   - status: HTTP 状态码
//   - detail: 可读的错误说明
func fail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, errorResponse{Detail: detail})
}

// internalError 返回 500，格式为 "上下文: 错误"
func internalError(c *gin.Context, context string, err error) {
	fail(c, http.StatusInternalServerError, context+": "+err.Error())
}
