package setup

import (
	"github.com/docvault/go-docvault/internal/config"
	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/docvault/go-docvault/internal/pkg/storage"
	"go.uber.org/zap"
)

// InitStorage 初始化受根目录保护的本地存储，根目录和临时区不存在时自动创建
func InitStorage(cfg *config.Config) storage.Vault {
	vault, err := storage.NewLocalVault(cfg.Storage.RootPath, cfg.Storage.ScratchPath)
	if err != nil {
		logger.Fatal("初始化本地存储失败", zap.Error(err))
	}
	logger.Info("本地存储初始化完成",
		zap.String("root", vault.Root()),
		zap.String("scratch", cfg.Storage.ScratchPath))
	return vault
}
