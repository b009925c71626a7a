package queue

import "github.com/ThreeDotsLabs/watermill/message"

// -------------------------- 基于业务封装 events --------------------------

// PublishAssetStored 发布 ms.asset.stored 事件。
// 用于资产写入对象存储后通知指纹生成流水线。
// 可通过可选项 opts 注入 TraceID、Producer 等头部信息。
func PublishAssetStored(pub message.Publisher, payload AssetStoredPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicAssetStored, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicAssetStored, msg)
}

// ParseAssetStored 将 Watermill 消息解析为强类型 Envelope（AssetStoredPayload）。
func ParseAssetStored(msg *message.Message) (Message[AssetStoredPayload], error) {
	return ParseWatermillMessage[AssetStoredPayload](msg)
}

// PublishFingerprintRequested 发布 ms.fingerprint.requested 事件。
func PublishFingerprintRequested(pub message.Publisher, payload FingerprintRequestedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicFingerprintRequested, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicFingerprintRequested, msg)
}

// ParseFingerprintRequested 将 Watermill 消息解析为强类型 Envelope（FingerprintRequestedPayload）。
func ParseFingerprintRequested(msg *message.Message) (Message[FingerprintRequestedPayload], error) {
	return ParseWatermillMessage[FingerprintRequestedPayload](msg)
}

// PublishFingerprintCompleted 发布 ms.fingerprint.completed 事件。
// 指纹记录落库成功后调用，供下游归档或索引流程消费。
func PublishFingerprintCompleted(pub message.Publisher, payload FingerprintCompletedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicFingerprintCompleted, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicFingerprintCompleted, msg)
}

// ParseFingerprintCompleted 将 Watermill 消息解析为强类型 Envelope（FingerprintCompletedPayload）。
func ParseFingerprintCompleted(msg *message.Message) (Message[FingerprintCompletedPayload], error) {
	return ParseWatermillMessage[FingerprintCompletedPayload](msg)
}

// PublishFingerprintFailed 发布 ms.fingerprint.failed 事件。
// 失败记录落库后调用，供告警或重试流程消费。
func PublishFingerprintFailed(pub message.Publisher, payload FingerprintFailedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicFingerprintFailed, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicFingerprintFailed, msg)
}

// ParseFingerprintFailed 将 Watermill 消息解析为强类型 Envelope（FingerprintFailedPayload）。
func ParseFingerprintFailed(msg *message.Message) (Message[FingerprintFailedPayload], error) {
	return ParseWatermillMessage[FingerprintFailedPayload](msg)
}
