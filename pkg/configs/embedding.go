package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultEmbeddingMaxChars    = 8000 // 送入嵌入模型的文本最大字符数
	DefaultEmbeddingTimeout     = 30   // 单次嵌入请求超时（秒）
	DefaultEmbeddingRPS         = 5    // 每秒请求数上限
	DefaultEmbeddingBurst       = 10   // 突发请求上限
	DefaultEmbeddingMaxFailures = 5    // 熔断前允许的连续失败数
)

// EmbeddingConfig 语义嵌入客户端配置（OpenAI兼容端点）.
// 嵌入是可选的增强能力：未启用或调用失败时指纹流水线照常完成.
type EmbeddingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoint    string        `mapstructure:"endpoint"     rule:"omitempty,url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxChars    int           `mapstructure:"max_chars"    rule:"min=1"`
	Timeout     int           `mapstructure:"timeout"      rule:"min=1,max=300"`
	RPS         float64       `mapstructure:"rps"          rule:"min=0"`
	Burst       int           `mapstructure:"burst"        rule:"min=1"`
	MaxFailures int           `mapstructure:"max_failures" rule:"min=1"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"` // 熔断器打开后的冷却时间
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`    // 嵌入结果缓存TTL，0为不缓存
}

// GetTimeoutDuration 返回请求超时作为time.Duration.
func (c *EmbeddingConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// setDefaults 设置嵌入客户端配置的默认值.
func (c *EmbeddingConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("embedding.enabled", false)
	v.SetDefault("embedding.endpoint", "https://api.openai.com/v1")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.max_chars", DefaultEmbeddingMaxChars)
	v.SetDefault("embedding.timeout", DefaultEmbeddingTimeout)
	v.SetDefault("embedding.rps", DefaultEmbeddingRPS)
	v.SetDefault("embedding.burst", DefaultEmbeddingBurst)
	v.SetDefault("embedding.max_failures", DefaultEmbeddingMaxFailures)
	v.SetDefault("embedding.open_timeout", "60s")
	v.SetDefault("embedding.cache_ttl", "1h")
}
