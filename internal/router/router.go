package router

import (
	"net/http"

	_ "github.com/docvault/go-docvault/docs"
	"github.com/docvault/go-docvault/internal/config"
	"github.com/docvault/go-docvault/internal/handlers"
	"github.com/docvault/go-docvault/internal/middlewares"
	"github.com/docvault/go-docvault/internal/pkg/cache"
	"github.com/docvault/go-docvault/internal/pkg/storage"
	"github.com/docvault/go-docvault/internal/pkg/xerr"
	"github.com/docvault/go-docvault/internal/repositories"
	"github.com/docvault/go-docvault/internal/services/admin"
	"github.com/docvault/go-docvault/internal/services/explorer"
	"github.com/docvault/go-docvault/internal/services/search"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// RouterConfig 包含初始化路由所需的所有依赖
type RouterConfig struct {
	db          *gorm.DB
	redisClient *redis.Client
	esClient    *elasticsearch.Client
	vault       storage.Vault
	cfg         *config.Config
}

func NewRouterConfig(db *gorm.DB, redisClient *redis.Client, esClient *elasticsearch.Client, vault storage.Vault, cfg *config.Config) *RouterConfig {
	return &RouterConfig{
		db:          db,
		redisClient: redisClient,
		esClient:    esClient,
		vault:       vault,
		cfg:         cfg,
	}
}

func InitRouter(routerCfg *RouterConfig) *gin.Engine {
	gin.SetMode(routerCfg.cfg.Server.Mode)

	router := gin.Default() // 默认引擎自带 Logger 和 Recovery 中间件

	// Health Check 路由
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 仓储和服务逐层组装，文件仓储套一层 Redis 读缓存
	cacheService := cache.NewRedisCache(routerCfg.redisClient)
	userRepo := repositories.NewUserRepository(routerCfg.db)
	folderRepo := repositories.NewFolderRepository(routerCfg.db)
	fileRepo := repositories.NewCachedFileRepository(repositories.NewDBFileRepository(routerCfg.db), cacheService)

	txManager := explorer.NewTransactionManager(routerCfg.db)
	domainService := explorer.NewDomainService(folderRepo, fileRepo)
	searchService := search.NewService(routerCfg.esClient, routerCfg.cfg.Elasticsearch.Index, fileRepo, domainService)

	authService := admin.NewAuthService(userRepo, routerCfg.cfg)
	userService := admin.NewUserService(userRepo)
	// 上传和版本还原共用一把版本链锁
	lineageLocker := explorer.NewLineageLocker()
	folderService := explorer.NewFolderService(folderRepo, fileRepo, domainService, routerCfg.vault, txManager)
	fileService := explorer.NewFileService(fileRepo, folderRepo, domainService, routerCfg.vault, txManager, searchService, lineageLocker)
	versionService := explorer.NewVersionService(fileRepo, domainService, routerCfg.vault, txManager, searchService, lineageLocker)
	approvalService := explorer.NewApprovalService(fileRepo, txManager, searchService)
	downloadService := explorer.NewDownloadService(fileRepo, folderRepo, domainService, routerCfg.vault)

	v1 := router.Group("/api/v1")
	{
		// 认证相关路由 (无需认证)
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", handlers.Register(authService))
			authGroup.POST("/login", handlers.Login(authService))
			authGroup.POST("/refresh", handlers.RefreshToken(authService))
		}

		// 需要认证的路由组
		authenticated := v1.Group("/")
		authenticated.Use(middlewares.AuthMiddleware(routerCfg.cfg))

		// 用户相关路由
		userGroup := authenticated.Group("/users")
		{
			userGroup.GET("/me", handlers.GetProfile(userService))
			userGroup.PUT("/:id/role", handlers.SetUserRole(userService))
		}

		// 文件夹相关路由
		folderGroup := authenticated.Group("/folders")
		{
			folderGroup.POST("", handlers.CreateFolder(folderService))
			folderGroup.GET("", handlers.ListFolders(folderService))
			folderGroup.GET("/:id", handlers.GetFolderContents(folderService))
			folderGroup.PUT("/:id", handlers.UpdateFolder(folderService))
			folderGroup.DELETE("/:id", handlers.DeleteFolder(folderService))
			folderGroup.POST("/:id/access", handlers.GrantFolderAccess(folderService))
			folderGroup.DELETE("/:id/access/:user_id", handlers.RevokeFolderAccess(folderService))
			folderGroup.POST("/:id/files", handlers.UploadFiles(fileService))
			folderGroup.GET("/:id/download", handlers.DownloadFolderZip(downloadService))
		}

		// 文件相关路由
		fileGroup := authenticated.Group("/files")
		{
			fileGroup.GET("/search", handlers.SearchFiles(searchService))
			fileGroup.GET("/:id", handlers.GetFileInfo(fileService))
			fileGroup.PUT("/:id/rename", handlers.RenameFile(fileService))
			fileGroup.DELETE("/:id", handlers.DeleteFile(fileService))
			fileGroup.GET("/:id/versions", handlers.ListFileVersions(versionService))
			fileGroup.POST("/versions/:id/restore", handlers.RestoreFileVersion(versionService))
			fileGroup.GET("/:id/download", handlers.DownloadFile(downloadService, routerCfg.cfg))
			fileGroup.GET("/:id/preview", handlers.PreviewFile(downloadService, routerCfg.cfg))
		}

		// 审批相关路由，统一挂审批角色门槛
		approvalGroup := authenticated.Group("/")
		approvalGroup.Use(middlewares.RequireReviewer())
		{
			approvalGroup.GET("/approvals", handlers.ListFilesByApprovalStatus(approvalService))
			approvalGroup.PUT("/files/:id/approval", handlers.SetFileApproval(approvalService))
		}
	}

	router.NoRoute(func(c *gin.Context) {
		xerr.Error(c, http.StatusNotFound, http.StatusNotFound, "Route not found")
	})

	return router
}
