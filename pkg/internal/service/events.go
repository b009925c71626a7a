package service

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/configs"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/fingerprint"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/model"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/queue"
)

const eventProducer = "metastamp"

// assetRefFromRequest 从生成请求构造事件中的资产引用.
func assetRefFromRequest(req *types.GenerateFingerprintRequest) queue.AssetRef {
	return queue.AssetRef{
		AssetID:   req.AssetID,
		Bucket:    configs.GetConfig().S3.BucketName,
		ObjectKey: req.ObjectKey,
		AssetType: req.DeclaredType,
	}
}

// publishCompleted 按配置发布 ms.fingerprint.completed 事件.
// 事件发布失败只记日志，不影响已完成的生成结果.
func (s *FingerprintService) publishCompleted(req *types.GenerateFingerprintRequest, record *model.Fingerprint) {
	cfg := configs.GetConfig().Events
	if !cfg.Enabled || !cfg.Fingerprint.Completed || s.mqClient == nil {
		return
	}

	payload := queue.FingerprintCompletedPayload{
		Asset:         assetRefFromRequest(req),
		FingerprintID: record.ID,
		DurationMS:    int64(record.ProcessingDuration * 1000),
		HasEmbedding:  record.Embeddings != nil,
	}

	if err := queue.PublishFingerprintCompleted(s.mqClient.Publisher(), payload,
		queue.WithProducer(eventProducer)); err != nil {
		log.Warn().Err(err).Str("asset_id", req.AssetID).Msg("完成事件发布失败")
	}
}

// publishFailed 按配置发布 ms.fingerprint.failed 事件.
func (s *FingerprintService) publishFailed(req *types.GenerateFingerprintRequest, genErr error) {
	cfg := configs.GetConfig().Events
	if !cfg.Enabled || !cfg.Fingerprint.Failed || s.mqClient == nil {
		return
	}

	phase := ""
	var ge *fingerprint.GenerationError
	if errors.As(genErr, &ge) {
		phase = ge.Phase
	}

	payload := queue.FingerprintFailedPayload{
		Asset: assetRefFromRequest(req),
		Phase: phase,
		Error: genErr.Error(),
	}

	if err := queue.PublishFingerprintFailed(s.mqClient.Publisher(), payload,
		queue.WithProducer(eventProducer)); err != nil {
		log.Warn().Err(err).Str("asset_id", req.AssetID).Msg("失败事件发布失败")
	}
}

// PublishRequested 发布 ms.fingerprint.requested 事件触发异步生成.
func (s *FingerprintService) PublishRequested(req *types.GenerateFingerprintRequest, force bool) error {
	cfg := configs.GetConfig().Events
	if !cfg.Enabled || !cfg.Fingerprint.Requested {
		return errors.New("fingerprint.requested events disabled")
	}
	if s.mqClient == nil {
		return errors.New("mq client not initialized")
	}

	payload := queue.FingerprintRequestedPayload{
		Asset: assetRefFromRequest(req),
		Force: force,
	}

	return queue.PublishFingerprintRequested(s.mqClient.Publisher(), payload,
		queue.WithProducer(eventProducer))
}
