// Package fingerprint 实现指纹生成的编排层.
//
// 单次生成的状态流: 校验类型 -> 下载到临时文件 -> 按模态分析 ->
// （可选）嵌入 -> 持久化终态记录. 每次调用必然产生恰好一条
// completed 或 failed 记录；失败时先落失败记录再向调用方返回
// GenerationError. 临时文件在所有退出路径上被清理.
package fingerprint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/configs"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/fingerprint/embedding"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/fingerprint/framesampler"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/fingerprint/hashcodec"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/fingerprint/mediainfo"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/fingerprint/spectral"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/fingerprint/textdigest"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/model"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/metrics"
)

// Storage 对象存储协作方.
type Storage interface {
	// Download 将对象拉取到本地文件.
	Download(ctx context.Context, objectKey, destPath string) error
	// Exists 检查对象是否存在，编排核心不使用，保留给调用方.
	Exists(ctx context.Context, objectKey string) (bool, error)
}

// Database 持久化协作方，InsertFingerprint 必须强制 asset_id 唯一约束.
type Database interface {
	InsertFingerprint(ctx context.Context, record *model.Fingerprint) error
}

// Generator 指纹生成编排器.
// 分析是 CPU 密集型工作，经信号量限制并发；I/O（下载、落库、嵌入）
// 不占用分析并发额度.
type Generator struct {
	cfg      *configs.FingerprintConfig
	storage  Storage
	db       Database
	embedder embedding.Embedder

	codec    *hashcodec.Codec
	analyzer *spectral.Analyzer
	sampler  *framesampler.Sampler

	sem     *semaphore.Weighted
	workDir string

	// analyzeFn 默认指向 analyzeModality，同包测试可替换以观察并发边界.
	analyzeFn func(ctx context.Context, assetType types.AssetType, path string) (*analysisResult, error)
}

// New 创建编排器，embedder 为 nil 时使用 NoopEmbedder.
func New(cfg *configs.FingerprintConfig, storage Storage, db Database, embedder embedding.Embedder) *Generator {
	if embedder == nil {
		embedder = embedding.NoopEmbedder{}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}

	codec := hashcodec.New(cfg.HashSize, cfg.CanvasSize)

	analyzer := spectral.New(
		spectral.WithFFmpegPath(cfg.FFmpegPath),
		spectral.WithParams(cfg.SampleRate, cfg.NMels, cfg.NChroma, int(cfg.FMax), cfg.FrameSize, cfg.HopSize),
	)

	sampler := framesampler.New(codec,
		framesampler.WithInterval(cfg.SamplingInterval),
		framesampler.WithMaxFrames(cfg.MaxFrames),
		framesampler.WithFallbackFPS(cfg.FallbackFPS),
		framesampler.WithTools(cfg.FFmpegPath, cfg.FFprobePath),
	)

	g := &Generator{
		cfg:      cfg,
		storage:  storage,
		db:       db,
		embedder: embedder,
		codec:    codec,
		analyzer: analyzer,
		sampler:  sampler,
		sem:      semaphore.NewWeighted(int64(workers)),
		workDir:  workDir,
	}
	g.analyzeFn = g.analyzeModality

	return g
}

// analysisResult 单模态分析的产出与嵌入描述素材.
type analysisResult struct {
	perceptual  *types.PerceptualHashes
	spectral    *types.SpectralData
	video       *types.VideoHashes
	text        *types.TextData
	description string
}

// Generate 为一个已入库对象生成指纹并持久化终态记录.
// 返回的记录状态恒为 completed；任何失败都会先持久化 failed 记录，
// 再返回 *GenerationError.
func (g *Generator) Generate(ctx context.Context, req *types.GenerateFingerprintRequest) (*model.Fingerprint, error) {
	start := time.Now()

	assetType := types.AssetType(req.DeclaredType)
	if !assetType.IsSupported() {
		// 类型非法快速失败，不触碰存储也不落记录.
		return nil, NewGenerationError(req.AssetID, req.ObjectKey, PhaseValidate,
			fmt.Errorf("%w: %q", ErrUnsupportedType, req.DeclaredType))
	}

	tmpPath, cleanup, err := g.acquireTempFile(req.ObjectKey)
	if err != nil {
		return nil, g.persistFailure(ctx, req, assetType, start, PhaseDownload, err)
	}
	defer cleanup()

	if err := g.storage.Download(ctx, req.ObjectKey, tmpPath); err != nil {
		return nil, g.persistFailure(ctx, req, assetType, start, PhaseDownload,
			fmt.Errorf("download %s: %w", req.ObjectKey, err))
	}

	result, err := g.analyze(ctx, assetType, tmpPath)
	if err != nil {
		return nil, g.persistFailure(ctx, req, assetType, start, PhaseAnalyze, err)
	}

	record := g.buildRecord(req, assetType, result)

	// 嵌入失败只降级，永不进入失败路径.
	if emb, embErr := g.embedder.Embed(ctx, result.description); embErr != nil {
		log.Warn().
			Err(embErr).
			Str("asset_id", req.AssetID).
			Msg("嵌入请求失败，指纹不携带向量")
	} else {
		record.Embeddings = emb
	}

	record.ProcessingStatus = types.StatusCompleted
	record.ProcessingDuration = time.Since(start).Seconds()

	if err := g.db.InsertFingerprint(ctx, record); err != nil {
		return nil, g.persistFailure(ctx, req, assetType, start, PhasePersist,
			fmt.Errorf("insert fingerprint: %w", err))
	}

	metrics.FingerprintCounter.WithLabelValues(string(assetType), string(types.StatusCompleted)).Inc()
	metrics.FingerprintDuration.WithLabelValues(string(assetType)).Observe(record.ProcessingDuration)

	log.Info().
		Str("asset_id", req.AssetID).
		Str("type", string(assetType)).
		Float64("duration", record.ProcessingDuration).
		Msg("指纹生成完成")

	return record, nil
}

// analyze 在并发额度内执行 CPU 密集型模态分析.
func (g *Generator) analyze(ctx context.Context, assetType types.AssetType, path string) (*analysisResult, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)

	return g.analyzeFn(ctx, assetType, path)
}

// analyzeModality 按声明类型分发到对应的模态分析器.
func (g *Generator) analyzeModality(ctx context.Context, assetType types.AssetType, path string) (*analysisResult, error) {
	switch assetType {
	case types.AssetTypeImage:
		return g.analyzeImage(path)
	case types.AssetTypeAudio:
		return g.analyzeAudio(ctx, path)
	case types.AssetTypeVideo:
		return g.analyzeVideo(ctx, path)
	case types.AssetTypeText:
		return g.analyzeText(path)
	default:
		return nil, ErrUnsupportedType
	}
}

func (g *Generator) analyzeImage(path string) (*analysisResult, error) {
	hashes, err := g.codec.HashFile(path)
	if err != nil {
		return nil, NewSourceUnreadableError("image", path, err)
	}

	info, infoErr := mediainfo.ExtractImage(path)
	if infoErr != nil {
		log.Debug().Err(infoErr).Str("path", path).Msg("图像元数据提取失败")
	}

	return &analysisResult{
		perceptual:  hashes,
		description: mediainfo.DescribeImage(path, info),
	}, nil
}

func (g *Generator) analyzeAudio(ctx context.Context, path string) (*analysisResult, error) {
	data, err := g.analyzer.AnalyzeFile(ctx, path)
	if err != nil {
		return nil, NewSourceUnreadableError("audio", path, err)
	}

	info, infoErr := mediainfo.ExtractAudio(path)
	if infoErr != nil {
		log.Debug().Err(infoErr).Str("path", path).Msg("音频标签提取失败")
	}

	return &analysisResult{
		spectral:    data,
		description: mediainfo.DescribeAudio(data.Duration, info),
	}, nil
}

func (g *Generator) analyzeVideo(ctx context.Context, path string) (*analysisResult, error) {
	hashes, err := g.sampler.SampleFile(ctx, path)
	if err != nil {
		return nil, NewSourceUnreadableError("video", path, err)
	}

	metrics.FramesAnalyzed.Add(float64(hashes.TotalFramesAnalyzed))

	return &analysisResult{
		video:       hashes,
		description: mediainfo.DescribeVideo(hashes.FPS, hashes.TotalFramesAnalyzed, hashes.TotalVideoFrames),
	}, nil
}

func (g *Generator) analyzeText(path string) (*analysisResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, NewSourceUnreadableError("text", path, err)
	}

	return &analysisResult{
		text:        textdigest.Digest(string(raw)),
		description: mediainfo.DescribeText(string(raw)),
	}, nil
}

// buildRecord 按模态装配记录，保证只填充与类型匹配的负载.
func (g *Generator) buildRecord(req *types.GenerateFingerprintRequest, assetType types.AssetType, result *analysisResult) *model.Fingerprint {
	record := &model.Fingerprint{
		ID:              model.NewFingerprintID(),
		AssetID:         req.AssetID,
		UserID:          req.UserID,
		ObjectKey:       req.ObjectKey,
		FingerprintType: assetType,
	}

	switch assetType {
	case types.AssetTypeImage:
		record.PerceptualHashes = result.perceptual
	case types.AssetTypeAudio:
		record.SpectralData = result.spectral
	case types.AssetTypeVideo:
		record.VideoHashes = result.video
	case types.AssetTypeText:
		record.TextHash = result.text.TextHash
		record.TextLength = result.text.TextLength
		record.WordCount = result.text.WordCount
		record.LineCount = result.text.LineCount
	}

	return record
}

// persistFailure 落一条失败记录并返回包装后的生成错误.
// 失败记录落库本身失败时只记日志，不掩盖原始错误.
func (g *Generator) persistFailure(ctx context.Context, req *types.GenerateFingerprintRequest, assetType types.AssetType, start time.Time, phase string, cause error) error {
	record := &model.Fingerprint{
		ID:                 model.NewFingerprintID(),
		AssetID:            req.AssetID,
		UserID:             req.UserID,
		ObjectKey:          req.ObjectKey,
		FingerprintType:    assetType,
		ProcessingStatus:   types.StatusFailed,
		ErrorMessage:       cause.Error(),
		ProcessingDuration: time.Since(start).Seconds(),
	}

	// 失败记录尽力而为：二次落库失败只记日志，不掩盖原始错误.
	if err := g.db.InsertFingerprint(ctx, record); err != nil {
		log.Error().
			Err(err).
			Str("asset_id", req.AssetID).
			Str("cause", cause.Error()).
			Msg("失败记录落库失败")
	}

	metrics.FingerprintCounter.WithLabelValues(string(assetType), string(types.StatusFailed)).Inc()
	metrics.FingerprintDuration.WithLabelValues(string(assetType)).Observe(record.ProcessingDuration)

	log.Warn().
		Err(cause).
		Str("asset_id", req.AssetID).
		Str("object_key", req.ObjectKey).
		Str("phase", phase).
		Msg("指纹生成失败")

	return NewGenerationError(req.AssetID, req.ObjectKey, phase, cause)
}

// acquireTempFile 创建保留原扩展名的唯一临时文件.
// 返回的 cleanup 在所有退出路径上删除文件，删除失败只记日志.
func (g *Generator) acquireTempFile(objectKey string) (string, func(), error) {
	ext := filepath.Ext(objectKey)
	// 防御对象键里的路径片段.
	ext = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return -1
		}
		return r
	}, ext)

	name := fmt.Sprintf("metastamp-%s%s", uuid.NewString(), ext)
	path := filepath.Join(g.workDir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	_ = f.Close()

	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("临时文件清理失败")
		}
	}

	return path, cleanup, nil
}
