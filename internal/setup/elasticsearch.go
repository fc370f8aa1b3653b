package setup

import (
	"github.com/docvault/go-docvault/internal/config"
	"github.com/docvault/go-docvault/internal/pkg/logger"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
)

var EsClient *elasticsearch.Client

// InitElasticsearchClient 初始化 Elasticsearch 客户端
// 未配置地址时跳过初始化，文件检索退化为数据库查询
func InitElasticsearchClient(cfg *config.ElasticsearchConfig) {
	if len(cfg.Addresses) == 0 {
		logger.Warn("Elasticsearch not configured, file search will fall back to database queries")
		return
	}

	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	var err error
	if EsClient, err = elasticsearch.NewClient(esCfg); err != nil {
		logger.Fatal("Failed to create Elasticsearch client", zap.Error(err))
	}

	// 尝试连接并获取集群信息，验证连接是否成功
	res, err := EsClient.Info()
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", zap.Error(err))
	}
	defer res.Body.Close()

	if res.IsError() {
		logger.Fatal("Error connecting to Elasticsearch", zap.String("status", res.Status()), zap.Any("response", res.String()))
	}

	logger.Info("Elasticsearch client initialized successfully.", zap.String("cluster_name", res.String()))
}
