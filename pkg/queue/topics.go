// Package queue 定义消息主题常量与通配模式，供发布/订阅使用.
package queue

// 主题命名规范：ms.<域>.<动作>[.<状态>][.<子类型>]，尽量稳定且向后兼容.
// 域：asset(资产入库)、fingerprint(指纹生成)、detect(训练检测，预留)等
// 动作：存储相关(stored/deleted)、处理相关(requested/completed/failed)
// 子类型：针对多模态细分场景(如image/audio/video/text)

const (
	// 资产入库领域.
	TopicAssetStored  = "ms.asset.stored"  // 资产已写入对象存储，触发指纹生成流水线
	TopicAssetDeleted = "ms.asset.deleted" // 资产从存储中删除

	// 按资产类型细分的入库主题.
	TopicAssetImageStored = "ms.asset.image.stored" // 图像资产存储完成
	TopicAssetAudioStored = "ms.asset.audio.stored" // 音频资产存储完成
	TopicAssetVideoStored = "ms.asset.video.stored" // 视频资产存储完成
	TopicAssetTextStored  = "ms.asset.text.stored"  // 文本资产存储完成

	// 指纹生成领域.
	TopicFingerprintRequested = "ms.fingerprint.requested" // 请求为资产生成指纹
	TopicFingerprintCompleted = "ms.fingerprint.completed" // 指纹生成完成并已落库
	TopicFingerprintFailed    = "ms.fingerprint.failed"    // 指纹生成失败（已落库失败记录）

	// 训练检测领域（Phase 2 预留）.
	TopicDetectRequested = "ms.detect.requested" // 请求训练使用检测
	TopicDetectCompleted = "ms.detect.completed" // 训练使用检测完成
)

// 主题分组，用于批量操作或权限控制.
var (
	// 资产相关主题集合.
	AssetTopics = []string{
		TopicAssetStored, TopicAssetDeleted,
		TopicAssetImageStored, TopicAssetAudioStored,
		TopicAssetVideoStored, TopicAssetTextStored,
	}

	// 指纹相关主题集合.
	FingerprintTopics = []string{
		TopicFingerprintRequested, TopicFingerprintCompleted,
		TopicFingerprintFailed,
	}
)
