package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 结构体包含所有应用的配置
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	MySQL         MySQLConfig         `mapstructure:"mysql"`
	Redis         RedisConfig         `mapstructure:"redis"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Log           LogConfig           `mapstructure:"log"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin 运行模式: debug / release
}

// MySQLConfig 数据库配置
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey          string        `mapstructure:"secret_key"`
	ExpiresIn          time.Duration `mapstructure:"expires_in"`
	RefreshExpireHours time.Duration `mapstructure:"refresh_expire_hours"`
	Issuer             string        `mapstructure:"issuer"`
}

// StorageConfig 本地存储配置
// RootPath 是所有物理目录和文件的存储根；ScratchPath 用于降级读取时的临时副本
type StorageConfig struct {
	RootPath       string `mapstructure:"root_path"`
	ScratchPath    string `mapstructure:"scratch_path"`
	PreviewTimeout int    `mapstructure:"preview_timeout"` // 预览传输超时（秒）
	RangeMinBytes  int64  `mapstructure:"range_min_bytes"` // 小于该大小的非流媒体文件不启用 Range
}

// LogConfig zap 日志配置
type LogConfig struct {
	OutputPath string `mapstructure:"output_path"`
	ErrorPath  string `mapstructure:"error_path"`
	Level      string `mapstructure:"level"`
}

// ElasticsearchConfig 定义 Elasticsearch 连接配置
// Addresses 为空时搜索退化为数据库 LIKE 查询
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

var AppConfig *Config // 全局应用配置实例

// LoadConfig 加载配置
// 先读取 yaml 配置文件，再用环境变量覆盖，例如 GO_DOCVAULT_MYSQL_DSN 对应 mysql.dsn
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/go-docvault/")

	viper.SetEnvPrefix("GO_DOCVAULT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 默认值，配置文件和环境变量都缺失时生效
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("jwt.expires_in", "24h")
	viper.SetDefault("jwt.refresh_expire_hours", "72h")
	viper.SetDefault("storage.root_path", "./uploads/data")
	viper.SetDefault("storage.scratch_path", "./uploads/scratch")
	viper.SetDefault("storage.preview_timeout", 30)
	viper.SetDefault("storage.range_min_bytes", 5<<20)
	viper.SetDefault("elasticsearch.index", "docvault_files")
	viper.SetDefault("log.output_path", "logs/app.log")
	viper.SetDefault("log.error_path", "logs/error.log")
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// 配置文件未找到不是致命错误，可以依赖环境变量或默认值
			log.Println("Warning: config file not found, using environment variables or default values.")
		} else {
			log.Fatalf("Fatal error reading config file: %s \n", err)
			return nil, err
		}
	}

	AppConfig = &Config{}
	if err := viper.Unmarshal(AppConfig); err != nil {
		log.Fatalf("Fatal error unmarshaling config: %s \n", err)
		return nil, err
	}

	log.Println("Configuration loaded successfully with Viper.")
	return AppConfig, nil
}
