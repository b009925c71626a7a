package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid"
	"gorm.io/plugin/soft_delete"

	itypes "github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
)

// Fingerprint 指纹记录，与资产 1:1（(asset_id, deleted_at) 复合唯一索引强制）.
// 软删除用 unix 秒标记而非 NULL：存活行 deleted_at 恒为 0，同一资产最多
// 一条存活记录；删除后的行带删除时刻，不再占用存活槽位，重建可以直接插入.
// 每条记录按 fingerprint_type 只填充一个模态负载；模态负载以 JSON 序列化存储.
// Phase-2 字段（训练检测）由下游系统填充，本核心永远写 null.
type Fingerprint struct {
	ID      string `gorm:"primaryKey;size:26"                         json:"id"`
	AssetID string `gorm:"size:64;uniqueIndex:uk_fingerprints_asset"  json:"asset_id"`
	UserID  string `gorm:"size:255;index"                             json:"user_id"`

	// ObjectKey 记录来源对象，失败记录依赖它重新投递生成请求.
	ObjectKey string `gorm:"size:512" json:"object_key,omitempty"`

	FingerprintType itypes.AssetType `gorm:"size:16;index" json:"fingerprint_type"`

	PerceptualHashes *itypes.PerceptualHashes `gorm:"serializer:json" json:"perceptual_hashes,omitempty"`
	SpectralData     *itypes.SpectralData     `gorm:"serializer:json" json:"spectral_data,omitempty"`
	VideoHashes      *itypes.VideoHashes      `gorm:"serializer:json" json:"video_hashes,omitempty"`

	// 文本模态：哈希直接入列便于索引查重，统计随行.
	TextHash   string `gorm:"size:64;index" json:"text_hash,omitempty"`
	TextLength int    `json:"text_length,omitempty"`
	WordCount  int    `json:"word_count,omitempty"`
	LineCount  int    `json:"line_count,omitempty"`

	Embeddings *itypes.Embedding `gorm:"serializer:json" json:"embeddings,omitempty"`

	ProcessingStatus   itypes.ProcessingStatus `gorm:"size:16;index" json:"processing_status"`
	ErrorMessage       string                  `gorm:"type:text"     json:"error_message,omitempty"`
	ProcessingDuration float64                 `json:"processing_duration"`

	// Phase-2 预留字段，核心不计算.
	TrainingDetected *bool     `json:"training_detected,omitempty"`
	DatasetMatches   *string   `gorm:"type:text" json:"dataset_matches,omitempty"`
	SimilarityScores *string   `gorm:"type:text" json:"similarity_scores,omitempty"`
	LegalStatus      *string   `gorm:"size:64"   json:"legal_status,omitempty"`

	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
	DeletedAt soft_delete.DeletedAt `gorm:"uniqueIndex:uk_fingerprints_asset" json:"-"`
}

// NewFingerprintID 生成基于时间排序的 ULID.
func NewFingerprintID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// TextData 将文本列组装为共享结构.
func (f *Fingerprint) TextData() *itypes.TextData {
	if f.TextHash == "" {
		return nil
	}

	return &itypes.TextData{
		TextHash:   f.TextHash,
		TextLength: f.TextLength,
		WordCount:  f.WordCount,
		LineCount:  f.LineCount,
	}
}

// ToResponse 转换为对外表示.
func (f *Fingerprint) ToResponse() itypes.FingerprintResponse {
	return itypes.FingerprintResponse{
		ID:                 f.ID,
		AssetID:            f.AssetID,
		UserID:             f.UserID,
		ObjectKey:          f.ObjectKey,
		FingerprintType:    f.FingerprintType,
		PerceptualHashes:   f.PerceptualHashes,
		SpectralData:       f.SpectralData,
		VideoHashes:        f.VideoHashes,
		TextData:           f.TextData(),
		Embeddings:         f.Embeddings,
		ProcessingStatus:   f.ProcessingStatus,
		ErrorMessage:       f.ErrorMessage,
		ProcessingDuration: f.ProcessingDuration,
		CreatedAt:          f.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          f.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
