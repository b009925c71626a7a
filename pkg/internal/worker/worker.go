// Package worker 实现事件驱动的指纹生成消费者.
//
// 订阅 ms.asset.stored 与 ms.fingerprint.requested 两个主题，
// 以有界并发执行生成. 消息在终态记录落库后才 Ack；
// 生成失败属于业务终态（失败记录已持久化），同样 Ack 而不重投.
package worker

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/configs"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/fingerprint"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/service"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/storage/mq"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/queue"
)

// generateService Worker 依赖的服务面，生产实现为 *service.FingerprintService.
type generateService interface {
	Generate(ctx context.Context, req *types.GenerateFingerprintRequest) (*types.FingerprintResponse, error)
	DeleteByAssetID(ctx context.Context, assetID string) error
}

// Worker 指纹生成消费者.
type Worker struct {
	mqClient *mq.Client
	svc      generateService
	workers  int
}

// New 创建消费者，svc 由调用方从同一上下文装配.
func New(mqClient *mq.Client, svc *service.FingerprintService) *Worker {
	workers := configs.GetConfig().Fingerprint.Workers
	if workers <= 0 {
		workers = configs.DefaultWorkers
	}

	return &Worker{mqClient: mqClient, svc: svc, workers: workers}
}

// Run 启动消费循环，阻塞直到 ctx 取消或订阅通道关闭.
func (w *Worker) Run(ctx context.Context) error {
	storedCh, err := w.mqClient.Subscribe(ctx, queue.TopicAssetStored)
	if err != nil {
		return err
	}

	requestedCh, err := w.mqClient.Subscribe(ctx, queue.TopicFingerprintRequested)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)

	log.Info().Int("workers", w.workers).Msg("指纹消费者已启动")

	for {
		select {
		case <-ctx.Done():
			waitErr := g.Wait()
			if waitErr != nil {
				return waitErr
			}

			return ctx.Err()

		case msg, ok := <-storedCh:
			if !ok {
				return g.Wait()
			}
			w.dispatch(ctx, g, msg, w.handleAssetStored)

		case msg, ok := <-requestedCh:
			if !ok {
				return g.Wait()
			}
			w.dispatch(ctx, g, msg, w.handleRequested)
		}
	}
}

// dispatch 在并发额度内处理一条消息.
func (w *Worker) dispatch(ctx context.Context, g *errgroup.Group, msg *message.Message, handle func(context.Context, *message.Message)) {
	g.Go(func() error {
		handle(ctx, msg)
		return nil
	})
}

// handleAssetStored 处理资产入库事件.
func (w *Worker) handleAssetStored(ctx context.Context, msg *message.Message) {
	env, err := queue.ParseAssetStored(msg)
	if err != nil {
		log.Error().Err(err).Str("message_id", msg.UUID).Msg("asset.stored 消息解析失败")
		msg.Ack()

		return
	}

	w.generate(ctx, msg, env.Payload.Asset, false)
}

// handleRequested 处理显式生成请求事件.
func (w *Worker) handleRequested(ctx context.Context, msg *message.Message) {
	env, err := queue.ParseFingerprintRequested(msg)
	if err != nil {
		log.Error().Err(err).Str("message_id", msg.UUID).Msg("fingerprint.requested 消息解析失败")
		msg.Ack()

		return
	}

	w.generate(ctx, msg, env.Payload.Asset, env.Payload.Force)
}

// generate 执行一次生成并在终态后 Ack.
func (w *Worker) generate(ctx context.Context, msg *message.Message, asset queue.AssetRef, force bool) {
	if force {
		if err := w.svc.DeleteByAssetID(ctx, asset.AssetID); err != nil &&
			!errors.Is(err, service.ErrFingerprintNotFound) {
			log.Error().Err(err).Str("asset_id", asset.AssetID).Msg("重建前删除旧指纹失败")
			msg.Nack()

			return
		}
	}

	req := &types.GenerateFingerprintRequest{
		AssetID:      asset.AssetID,
		ObjectKey:    asset.ObjectKey,
		DeclaredType: asset.AssetType,
		UserID:       userFromTags(asset.Tags),
	}

	_, err := w.svc.Generate(ctx, req)
	switch {
	case err == nil:
		msg.Ack()

	case errors.Is(err, service.ErrDuplicateAsset):
		// 已有指纹，重复投递按幂等处理.
		log.Debug().Str("asset_id", asset.AssetID).Msg("指纹已存在，跳过")
		msg.Ack()

	case errors.Is(err, fingerprint.ErrUnsupportedType):
		log.Warn().Str("asset_id", asset.AssetID).Str("type", asset.AssetType).Msg("不支持的资产类型")
		msg.Ack()

	default:
		// 失败记录已落库，属于终态，Ack 避免无限重投；重试由上游策略决定.
		log.Error().Err(err).Str("asset_id", asset.AssetID).Msg("指纹生成失败")
		msg.Ack()
	}
}

func userFromTags(tags map[string]string) string {
	if tags == nil {
		return ""
	}

	return tags["user_id"]
}
