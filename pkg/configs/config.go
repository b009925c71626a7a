// Package configs 管理应用程序配置，包括数据库、对象存储、消息队列以及指纹流水线的配置信息.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv）并启用热重载.
//
// Example:
//
//	import "github.com/Christebob/Meta-Stamp-V3-sub000/pkg/configs"
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	config := configs.GetConfig()
//	fmt.Println(config.Server.Port)
//
// Example accessing fingerprint config:
//
//	config := configs.GetConfig()
//	fp := config.Fingerprint
//	fmt.Println("hash size:", fp.HashSize)
package configs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AppVersion 应用版本号，构建时可通过 ldflags 覆盖.
var AppVersion = "0.3.0"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		Server      ServerConfig      `mapstructure:"server"`      // ServerConfig 服务器配置，端口、超时等
		Log         LogConfig         `mapstructure:"log"`         // LogConfig 日志相关配置
		DB          DBConfig          `mapstructure:"db"`          // DBConfig 数据库配置
		S3          S3Config          `mapstructure:"s3"`          // S3Config 对象存储配置
		KV          KVConfig          `mapstructure:"kv"`          // KVConfig 键值存储配置
		MQ          MQConfig          `mapstructure:"mq"`          // MQConfig 消息队列配置
		Metrics     MetricsConfig     `mapstructure:"metrics"`     // MetricsConfig 监控指标配置
		Tracing     TracingConfig     `mapstructure:"tracing"`     // TracingConfig 分布式追踪配置
		Events      EventsConfig      `mapstructure:"events"`      // EventsConfig 事件发布开关
		Fingerprint FingerprintConfig `mapstructure:"fingerprint"` // FingerprintConfig 指纹流水线配置
		Embedding   EmbeddingConfig   `mapstructure:"embedding"`   // EmbeddingConfig 语义向量服务配置
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
)

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv)并启用热重载.
// 找不到配置文件时使用默认值，不视为错误.
func InitConfig(path string) error {
	appViper = viper.New()
	// 设置默认值
	setAllDefaults(appViper)

	// 检查path是否是文件
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		// 是文件，使用SetConfigFile，Viper会自动检测类型
		appViper.SetConfigFile(path)
	} else {
		// 是目录，设置配置名和路径
		appViper.SetConfigName("config")
		appViper.AddConfigPath(path)
		appViper.AddConfigPath(path + "/configs")

		exts := []string{"yaml", "yml", "json", "toml", "env", "dotenv"}

		for _, ext := range exts {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				appViper.SetConfigFile(cfg)

				break
			}
		}
	}

	appViper.AutomaticEnv()
	appViper.SetEnvPrefix("METASTAMP")

	// 读取配置
	if err := appViper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 解析到全局配置
	if err := appViper.Unmarshal(&globalConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	reloadConfigs(appViper, globalConfig.Server.ReloadConfig)

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var serverConfig ServerConfig

	var logConfig LogConfig

	var dbConfig DBConfig

	var s3Config S3Config

	var kvConfig KVConfig

	var mqConfig MQConfig

	var metricsConfig MetricsConfig

	var tracingConfig TracingConfig

	var eventsConfig EventsConfig

	var fingerprintConfig FingerprintConfig

	var embeddingConfig EmbeddingConfig

	serverConfig.setDefaults(v)
	logConfig.setDefaults(v)
	dbConfig.setDefaults(v)
	s3Config.setDefaults(v)
	kvConfig.setDefaults(v)
	mqConfig.setDefaults(v)
	metricsConfig.setDefaults(v)
	tracingConfig.setDefaults(v)
	eventsConfig.setDefaults(v)
	fingerprintConfig.setDefaults(v)
	embeddingConfig.setDefaults(v)
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload {
		return
	}
	// 启用配置热重载
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)
		fmt.Println("Reloading configuration...")

		if err := v.Unmarshal(&globalConfig); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)
		}
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	return &globalConfig
}

func GetViper() *viper.Viper {
	return appViper
}
