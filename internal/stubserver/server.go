// Package stubserver 本地模拟的数据分析后端
// 实现与真实后端相同的 HTTP 接口：不做自然语言到 SQL 的翻译，
// 而是对当前数据源（上传的 CSV 或演示数据库）返回整表查询结果
package stubserver

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"datachat-cli/internal/logger"
)

// Version 模拟后端版本号
const Version = "1.3.0"

// defaultLimit /ask 默认每页行数
const defaultLimit = 1000

// maxLimit /get-more-data 每页行数上限
const maxLimit = 5000

// Options 模拟后端配置
type Options struct {
	Logger *logger.Logger

	// DemoDatabase 启动时即处于已连接状态，可直接提问
	DemoDatabase bool
}

// Server 模拟后端
type Server struct {
	mu  sync.Mutex
	log *logger.Logger

	// CSV 模式状态
	csvMode   bool
	csvTables []*table

	// 数据库模式状态
	db     *table
	dbName string

	// 已执行过的 SQL → 结果表，供翻页和导出使用
	queries map[string]*table

	engine *gin.Engine
}

// New 创建模拟后端
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		log:     log,
		queries: make(map[string]*table),
	}
	if opts.DemoDatabase {
		s.db = demoSales()
		s.dbName = "demo"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(log))
	router.Use(corsMiddleware())
	s.registerRoutes(router)
	s.engine = router

	return s
}

// Handler 返回 HTTP 处理器，测试中配合 httptest 使用
func (s *Server) Handler() http.Handler {
	return s.engine
}

// registerRoutes 注册所有路由
func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/", s.root)
	r.GET("/health", s.health)

	r.POST("/ask", s.ask)
	r.POST("/get-more-data", s.getMoreData)

	r.POST("/upload-csv", s.uploadCSV)
	r.POST("/export-csv", s.exportCSV)
	r.GET("/csv-status", s.csvStatus)
	r.POST("/clear-csv", s.clearCSV)

	r.POST("/connect-db", s.connectDB)
	r.POST("/disconnect-db", s.disconnectDB)
}

// Run 监听 addr 直到 ctx 结束，然后优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("stub", "server starting", map[string]any{"addr": addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("stub", "shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
