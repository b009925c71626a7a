// Package types 定义对外暴露的请求/响应结构与跨层共享的指纹数据结构.
package types

// AssetType 资产类型.
type AssetType string

const (
	AssetTypeImage AssetType = "image"
	AssetTypeAudio AssetType = "audio"
	AssetTypeVideo AssetType = "video"
	AssetTypeText  AssetType = "text"
	// AssetTypeURL 仅用于记录类型枚举完整性，核心流水线不处理.
	AssetTypeURL AssetType = "url"
)

// SupportedAssetTypes 指纹流水线支持的资产类型集合.
var SupportedAssetTypes = map[AssetType]struct{}{
	AssetTypeImage: {},
	AssetTypeAudio: {},
	AssetTypeVideo: {},
	AssetTypeText:  {},
}

// IsSupported 检查资产类型是否受支持.
func (t AssetType) IsSupported() bool {
	_, ok := SupportedAssetTypes[t]
	return ok
}

// ProcessingStatus 指纹生成状态机，只有终态会被持久化.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// PerceptualHashes 图像感知哈希包.
type PerceptualHashes struct {
	PHash    string `json:"phash"`
	AHash    string `json:"ahash"`
	DHash    string `json:"dhash"`
	HashSize int    `json:"hash_size"`
}

// SpectralData 音频频谱特征包.
type SpectralData struct {
	MelSpectrogramHash   string  `json:"mel_spectrogram_hash"`
	ChromagramHash       string  `json:"chromagram_hash"`
	SpectralCentroidMean float64 `json:"spectral_centroid_mean"`
	SpectralCentroidStd  float64 `json:"spectral_centroid_std"`
	Duration             float64 `json:"duration"`
	SampleRate           int     `json:"sample_rate"`
	NMels                int     `json:"n_mels"`
	NChroma              int     `json:"n_chroma"`
}

// VideoHashes 视频帧采样哈希包.
type VideoHashes struct {
	FrameHashes         []string `json:"frame_hashes"`
	AverageHash         string   `json:"average_hash"`
	SamplingInterval    float64  `json:"sampling_interval"`
	TotalFramesAnalyzed int      `json:"total_frames_analyzed"`
	TotalVideoFrames    int64    `json:"total_video_frames"`
	FPS                 float64  `json:"fps"`
}

// TextData 文本摘要包.
type TextData struct {
	TextHash   string `json:"text_hash"`
	TextLength int    `json:"text_length"`
	WordCount  int    `json:"word_count"`
	LineCount  int    `json:"line_count"`
}

// Embedding 语义向量，所有模态可选.
type Embedding struct {
	Vector  []float32 `json:"vector"`
	Model   string    `json:"model"`
	Version string    `json:"version,omitempty"`
}

// GenerateFingerprintRequest 同步触发指纹生成的请求体.
type GenerateFingerprintRequest struct {
	AssetID      string `json:"asset_id"      binding:"required"`
	ObjectKey    string `json:"object_key"    binding:"required"`
	DeclaredType string `json:"declared_type" binding:"required"`
	UserID       string `json:"user_id"`
}

// FingerprintResponse 指纹记录的对外表示.
type FingerprintResponse struct {
	ID                 string            `json:"id"`
	AssetID            string            `json:"asset_id"`
	UserID             string            `json:"user_id,omitempty"`
	ObjectKey          string            `json:"object_key,omitempty"`
	FingerprintType    AssetType         `json:"fingerprint_type"`
	PerceptualHashes   *PerceptualHashes `json:"perceptual_hashes,omitempty"`
	SpectralData       *SpectralData     `json:"spectral_data,omitempty"`
	VideoHashes        *VideoHashes      `json:"video_hashes,omitempty"`
	TextData           *TextData         `json:"text_data,omitempty"`
	Embeddings         *Embedding        `json:"embeddings,omitempty"`
	ProcessingStatus   ProcessingStatus  `json:"processing_status"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	ProcessingDuration float64           `json:"processing_duration"`
	CreatedAt          string            `json:"created_at"`
	UpdatedAt          string            `json:"updated_at"`
}
