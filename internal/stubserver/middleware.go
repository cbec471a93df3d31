package stubserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"datachat-cli/internal/logger"
)

// corsMiddleware 允许任意来源访问，便于浏览器前端直接连本地模拟后端
func corsMiddleware() gin.HandlerFunc {
	allowMethods := strings.Join([]string{
		http.MethodGet,
		http.MethodPost,
		http.MethodOptions,
	}, ", ")
	allowHeaders := strings.Join([]string{
		"Origin",
		"Content-Type",
		"Accept",
		"X-Requested-With",
	}, ", ")
	maxAge := strconv.Itoa(86400)

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Disposition")

		// 预检请求直接返回 204
		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", allowMethods)
			c.Header("Access-Control-Allow-Headers", allowHeaders)
			c.Header("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// loggerMiddleware 记录每个请求的方法、路径、状态码和耗时
// 5xx 记为 error，4xx 记为 warn，其余为 info
func loggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		details := map[string]any{
			"status":    status,
			"method":    c.Request.Method,
			"path":      path,
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			details["errors"] = errs
		}

		switch {
		case status >= 500:
			log.Error("stub", "request", details)
		case status >= 400:
			log.Warn("stub", "request", details)
		default:
			log.Info("stub", "request", details)
		}
	}
}
