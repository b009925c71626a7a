// Package detect 定义训练数据检测的扩展接口.
//
// 数据集比对、嵌入漂移与法律阈值判定属于后续阶段，
// 本仓库只保留接口与能力开关，不提供任何实现，指纹核心也不会调用.
package detect

import (
	"context"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
)

// Result 检测结论.
type Result struct {
	TrainingDetected bool
	// DatasetMatches 命中的数据集标识.
	DatasetMatches []string
	// SimilarityScores 数据集标识到相似度分数的映射.
	SimilarityScores map[string]float64
	// LegalStatus 法律阈值分类结论.
	LegalStatus string
}

// TrainingDetector 判断资产指纹是否出现在已知训练数据集中.
type TrainingDetector interface {
	// DetectTraining 对单条指纹执行检测.
	DetectTraining(ctx context.Context, fingerprintID string, embeddings *types.Embedding) (*Result, error)
	// Name 检测器标识，用于日志与结果归属.
	Name() string
}

// Registry 持有可选检测器，未配置时 Enabled 返回 false.
type Registry struct {
	detector TrainingDetector
}

// NewRegistry 创建检测器注册表，detector 可为 nil.
func NewRegistry(detector TrainingDetector) *Registry {
	return &Registry{detector: detector}
}

// Enabled 返回是否配置了检测能力.
func (r *Registry) Enabled() bool {
	return r != nil && r.detector != nil
}

// Detector 返回已配置的检测器，未配置时返回 nil.
func (r *Registry) Detector() TrainingDetector {
	if r == nil {
		return nil
	}

	return r.detector
}
