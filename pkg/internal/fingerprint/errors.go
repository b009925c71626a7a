package fingerprint

import (
	"errors"
	"fmt"
)

// ErrUnsupportedType 声明类型不在支持集合内，快速失败且无任何副作用.
var ErrUnsupportedType = errors.New("unsupported asset type")

// 生成阶段标识，用于 GenerationError 与失败事件的 Phase 字段.
const (
	PhaseValidate = "validate"
	PhaseDownload = "download"
	PhaseAnalyze  = "analyze"
	PhaseEmbed    = "embed"
	PhasePersist  = "persist"
)

// SourceUnreadableError 源数据缺失、损坏或无法被对应编解码器解码.
// 按模态（image/audio/video/text）区分来源.
type SourceUnreadableError struct {
	Modality string
	Path     string
	Err      error
}

func (e *SourceUnreadableError) Error() string {
	return fmt.Sprintf("%s source unreadable: %s: %v", e.Modality, e.Path, e.Err)
}

func (e *SourceUnreadableError) Unwrap() error { return e.Err }

// NewSourceUnreadableError 构造模态级源数据错误.
func NewSourceUnreadableError(modality, path string, err error) *SourceUnreadableError {
	return &SourceUnreadableError{Modality: modality, Path: path, Err: err}
}

// GenerationError 包装底层失败（下载、解码、变换、持久化），附带资产上下文.
// 这是调用方唯一需要识别的错误类型.
type GenerationError struct {
	AssetID   string
	ObjectKey string
	Phase     string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("fingerprint generation failed (asset=%s, key=%s, phase=%s): %v",
		e.AssetID, e.ObjectKey, e.Phase, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// NewGenerationError 构造带上下文的生成错误.
func NewGenerationError(assetID, objectKey, phase string, err error) *GenerationError {
	return &GenerationError{AssetID: assetID, ObjectKey: objectKey, Phase: phase, Err: err}
}
