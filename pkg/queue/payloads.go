package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
// 建议在发布消息时填充 TraceID、OccurredAt、Producer 等，便于追踪链路与审计.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID，可来自中间件或业务生成.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
// T 即不同主题对应的负载结构体.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// -------------------------- 资产入库领域 --------------------------

// AssetRef 标识资产在对象存储中的位置与类型.
type AssetRef struct {
	AssetID     string            `json:"asset_id"`
	Bucket      string            `json:"bucket"`
	ObjectKey   string            `json:"object_key"`
	AssetType   string            `json:"asset_type"` // image / audio / video / text
	ETag        string            `json:"etag,omitempty"`
	Size        int64             `json:"size,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// AssetStoredPayload 资产已写入对象存储（含基础元数据）.
type AssetStoredPayload struct {
	Asset AssetRef `json:"asset"`
	// Optional 业务上下文，如触发来源（用户/任务）、文件名等.
	Source   string `json:"source,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

// AssetDeletedPayload 资产被删除.
type AssetDeletedPayload struct {
	Asset AssetRef `json:"asset"`
}

// -------------------------- 指纹生成领域 --------------------------

// FingerprintRequestedPayload 请求为资产生成指纹.
type FingerprintRequestedPayload struct {
	Asset AssetRef `json:"asset"`
	// Force 为 true 时跳过已有指纹检查（重建场景）.
	Force bool `json:"force,omitempty"`
}

// FingerprintCompletedPayload 指纹生成完成并已落库.
type FingerprintCompletedPayload struct {
	Asset         AssetRef `json:"asset"`
	FingerprintID string   `json:"fingerprint_id"`
	// DurationMS 生成耗时（毫秒）.
	DurationMS int64 `json:"duration_ms,omitempty"`
	// HasEmbedding 标记是否附带了语义向量.
	HasEmbedding bool `json:"has_embedding,omitempty"`
}

// FingerprintFailedPayload 指纹生成失败，失败记录已落库.
type FingerprintFailedPayload struct {
	Asset AssetRef `json:"asset"`
	// Phase 失败阶段（download/analyze/persist）.
	Phase string `json:"phase,omitempty"`
	Error string `json:"error"`
}
