// Package service 实现指纹领域的业务服务层，组合存储客户端与指纹编排器.
package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/cache"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/configs"
	ctxPkg "github.com/Christebob/Meta-Stamp-V3-sub000/pkg/context"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/fingerprint"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/fingerprint/embedding"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/model"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/storage/db"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/storage/mq"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/storage/s3"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
)

// ErrFingerprintNotFound 资产尚无指纹记录.
var ErrFingerprintNotFound = errors.New("fingerprint not found")

// ErrDuplicateAsset 同一 asset_id 已存在指纹记录，唯一约束拒绝二次写入.
var ErrDuplicateAsset = errors.New("fingerprint already exists for asset")

// FingerprintService 指纹生成与查询服务.
type FingerprintService struct {
	s3Client *s3.Client
	dbClient *db.Client
	mqClient *mq.Client

	generator *fingerprint.Generator
}

// NewFingerprintService 从上下文装配服务.
func NewFingerprintService(c context.Context) *FingerprintService {
	s3c := ctxPkg.GetS3Client(c)
	dbc := ctxPkg.GetDBClient(c)
	mqc := ctxPkg.GetMQClient(c)

	cfg := configs.GetConfig()

	var embCache *cache.Cache
	if kvc := ctxPkg.GetKVClient(c); kvc != nil {
		embCache = cache.NewCache(kvc)
	}

	embedder := embedding.FromConfig(&cfg.Embedding, embCache)

	gen := fingerprint.New(&cfg.Fingerprint, s3c, &fingerprintStore{client: dbc}, embedder)

	return &FingerprintService{
		s3Client:  s3c,
		dbClient:  dbc,
		mqClient:  mqc,
		generator: gen,
	}
}

// Generate 同步生成指纹并按配置发布完成/失败事件.
func (s *FingerprintService) Generate(ctx context.Context, req *types.GenerateFingerprintRequest) (*types.FingerprintResponse, error) {
	record, err := s.generator.Generate(ctx, req)
	if err != nil {
		// 错误链保留 ErrDuplicateAsset 与 ErrUnsupportedType，调用方用 errors.Is 判别.
		s.publishFailed(req, err)

		return nil, err
	}

	s.publishCompleted(req, record)

	resp := record.ToResponse()

	return &resp, nil
}

// GetByAssetID 查询资产的指纹记录.
func (s *FingerprintService) GetByAssetID(ctx context.Context, assetID string) (*types.FingerprintResponse, error) {
	store := &fingerprintStore{client: s.dbClient}

	record, err := store.GetByAssetID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	resp := record.ToResponse()

	return &resp, nil
}

// ListByUser 按用户分页查询指纹记录.
func (s *FingerprintService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]types.FingerprintResponse, error) {
	store := &fingerprintStore{client: s.dbClient}

	records, err := store.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]types.FingerprintResponse, 0, len(records))
	for i := range records {
		out = append(out, records[i].ToResponse())
	}

	return out, nil
}

// DeleteByAssetID 删除资产的指纹记录（软删除），重建场景使用.
func (s *FingerprintService) DeleteByAssetID(ctx context.Context, assetID string) error {
	store := &fingerprintStore{client: s.dbClient}

	return store.DeleteByAssetID(ctx, assetID)
}

// AssetExists 检查对象存储中是否存在该对象，供调用方在触发生成前预检.
func (s *FingerprintService) AssetExists(ctx context.Context, objectKey string) (bool, error) {
	return s.s3Client.Exists(ctx, objectKey)
}

// fingerprintStore 基于 GORM 的指纹持久化，实现编排器的 Database 协作方.
type fingerprintStore struct {
	client *db.Client
}

// InsertFingerprint 插入指纹记录，唯一约束冲突翻译为 ErrDuplicateAsset.
func (fs *fingerprintStore) InsertFingerprint(ctx context.Context, record *model.Fingerprint) error {
	if err := fs.client.GetDB().WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", ErrDuplicateAsset, record.AssetID)
		}

		return err
	}

	return nil
}

// GetByAssetID 按资产查询，未找到翻译为 ErrFingerprintNotFound.
func (fs *fingerprintStore) GetByAssetID(ctx context.Context, assetID string) (*model.Fingerprint, error) {
	var record model.Fingerprint

	err := fs.client.GetDB().WithContext(ctx).
		Where("asset_id = ?", assetID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFingerprintNotFound, assetID)
		}

		return nil, err
	}

	return &record, nil
}

// ListByUser 按用户分页查询，按创建时间倒序.
func (fs *fingerprintStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Fingerprint, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var records []model.Fingerprint

	err := fs.client.GetDB().WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}

// DeleteByAssetID 软删除资产的指纹记录.
func (fs *fingerprintStore) DeleteByAssetID(ctx context.Context, assetID string) error {
	result := fs.client.GetDB().WithContext(ctx).
		Where("asset_id = ?", assetID).
		Delete(&model.Fingerprint{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrFingerprintNotFound, assetID)
	}

	return nil
}

// AutoMigrate 建表与索引迁移.
func AutoMigrate(dbClient *db.Client) error {
	return dbClient.GetDB().AutoMigrate(&model.Fingerprint{})
}
