package configs

import "github.com/spf13/viper"

// EventsConfig 控制事件发布的开关（全局与分主题）。
type EventsConfig struct {
	Enabled     bool                    `mapstructure:"enabled"` // 总开关
	Asset       AssetEventsConfig       `mapstructure:"asset"`
	Fingerprint FingerprintEventsConfig `mapstructure:"fingerprint"`
}

// AssetEventsConfig 针对资产入库领域的事件开关。
type AssetEventsConfig struct {
	Stored  bool `mapstructure:"stored"`
	Deleted bool `mapstructure:"deleted"`
}

// FingerprintEventsConfig 针对指纹生成领域的事件开关。
type FingerprintEventsConfig struct {
	Requested bool `mapstructure:"requested"`
	Completed bool `mapstructure:"completed"`
	Failed    bool `mapstructure:"failed"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	// 总开关：默认启用事件系统
	v.SetDefault("events.enabled", true)

	// 资产领域的事件：stored 触发指纹生成流水线，默认开启
	v.SetDefault("events.asset.stored", true)
	v.SetDefault("events.asset.deleted", false)

	// 指纹领域的事件：完成与失败用于下游归档与告警，默认开启
	v.SetDefault("events.fingerprint.requested", true)
	v.SetDefault("events.fingerprint.completed", true)
	v.SetDefault("events.fingerprint.failed", true)
}
