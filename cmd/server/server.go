package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/docvault/go-docvault/internal/config"
	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/docvault/go-docvault/internal/router"
	"github.com/docvault/go-docvault/internal/setup"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer 负责构建所有依赖
func NewServer(cfg *config.Config) (*Server, error) {
	// 初始化数据库连接，失败直接 Fatal
	setup.InitMySQL(&cfg.MySQL)

	// 初始化 Redis 连接
	setup.InitRedis(context.Background(), cfg)

	// 初始化 Elasticsearch，未配置时为 nil，检索退化为数据库查询
	setup.InitElasticsearchClient(&cfg.Elasticsearch)

	// 初始化本地存储根
	vault := setup.InitStorage(cfg)

	// 初始化 Gin 引擎和注册路由，仓储和服务在路由层组装
	routerCfg := router.NewRouterConfig(setup.DB, setup.RedisClientGlobal, setup.EsClient, vault, cfg)
	engine := router.InitRouter(routerCfg)

	addr := ":" + cfg.Server.Port
	logger.Info(fmt.Sprintf("Server is running on %s", addr))
	httpServer := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	return &Server{
		router:     engine,
		httpServer: httpServer,
	}, nil
}

// Run 启动服务器并处理优雅关机
func (s *Server) Run(ctx context.Context, stopChan chan os.Signal) {
	// GORM v2 依赖连接池，随进程退出释放；Redis 需要显式关闭
	defer setup.CloseRedis()
	defer setup.CloseMySQLDB()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// 等待停止信号
	<-stopChan
	logger.Info("Shutting down server...")

	// 优雅关机，给正在传输的下载留出收尾时间
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited gracefully")
}
