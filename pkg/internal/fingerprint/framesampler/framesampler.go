// Package framesampler 实现视频抽帧与逐帧感知哈希.
//
// 按 stride = round(fps * sampling_interval) 抽帧（下限 1 帧），
// fps 探测失败时回退 30 并记录日志；最多分析 300 帧以约束长视频时延.
// 每个命中帧转为 RGB、归一化到与图像相同的画布后计算 pHash.
// 聚合哈希将逐帧哈希视为大整数求均值后重编码，保留与既有数据的兼容语义.
package framesampler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"math/big"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/fingerprint/hashcodec"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
)

const (
	// DefaultSamplingInterval 抽帧间隔（秒）.
	DefaultSamplingInterval = 1.0
	// DefaultMaxFrames 单视频最大分析帧数.
	DefaultMaxFrames = 300
	// DefaultFallbackFPS fps 不可探测时的回退值.
	DefaultFallbackFPS = 30.0

	// 解码帧统一缩放到的边长，与图像画布一致.
	frameEdge = 256
	frameSize = frameEdge * frameEdge * 3 // rgb24
)

// FrameSource 顺序产出解码后的视频帧.
// Next 在流结束时返回 io.EOF；Close 必须在任何退出路径上被调用.
type FrameSource interface {
	Next() (image.Image, error)
	Close() error
}

// VideoInfo 视频流的探测结果.
type VideoInfo struct {
	FPS         float64
	TotalFrames int64
	Duration    float64
}

// Sampler 视频抽帧哈希器.
type Sampler struct {
	codec            *hashcodec.Codec
	samplingInterval float64
	maxFrames        int
	fallbackFPS      float64
	ffmpegPath       string
	ffprobePath      string
}

// Option 调整采样器参数.
type Option func(*Sampler)

// WithInterval 设置抽帧间隔（秒）.
func WithInterval(seconds float64) Option {
	return func(s *Sampler) {
		if seconds > 0 {
			s.samplingInterval = seconds
		}
	}
}

// WithMaxFrames 设置最大分析帧数.
func WithMaxFrames(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.maxFrames = n
		}
	}
}

// WithFallbackFPS 设置 fps 探测失败时的回退帧率.
func WithFallbackFPS(fps float64) Option {
	return func(s *Sampler) {
		if fps > 0 {
			s.fallbackFPS = fps
		}
	}
}

// WithTools 指定 ffmpeg/ffprobe 可执行文件路径.
func WithTools(ffmpeg, ffprobe string) Option {
	return func(s *Sampler) {
		if ffmpeg != "" {
			s.ffmpegPath = ffmpeg
		}
		if ffprobe != "" {
			s.ffprobePath = ffprobe
		}
	}
}

// New 创建采样器，codec 为 nil 时使用默认参数的编解码器.
func New(codec *hashcodec.Codec, opts ...Option) *Sampler {
	if codec == nil {
		codec = hashcodec.New(hashcodec.DefaultHashSize, hashcodec.DefaultCanvasSize)
	}

	s := &Sampler{
		codec:            codec,
		samplingInterval: DefaultSamplingInterval,
		maxFrames:        DefaultMaxFrames,
		fallbackFPS:      DefaultFallbackFPS,
		ffmpegPath:       "ffmpeg",
		ffprobePath:      "ffprobe",
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SampleFile 探测视频并抽帧计算哈希.
func (s *Sampler) SampleFile(ctx context.Context, path string) (*types.VideoHashes, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	info, err := s.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	src, err := newFFmpegFrameSource(ctx, s.ffmpegPath, path)
	if err != nil {
		return nil, err
	}

	return s.Sample(src, info)
}

// Sample 从帧源顺序抽帧并计算哈希.
// 解码器资源在成功、提前停止与出错路径上都会被释放.
func (s *Sampler) Sample(src FrameSource, info VideoInfo) (result *types.VideoHashes, err error) {
	defer func() {
		if cerr := src.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("释放视频解码器失败")
		}
	}()

	fps := info.FPS
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		log.Warn().
			Float64("fallback_fps", s.fallbackFPS).
			Msg("视频未报告帧率，使用回退值")
		fps = s.fallbackFPS
	}

	stride := int(math.Round(fps * s.samplingInterval))
	if stride < 1 {
		stride = 1
	}

	hashes := make([]string, 0, s.maxFrames)

	frameIdx := 0
	for len(hashes) < s.maxFrames {
		frame, nerr := src.Next()
		if nerr == io.EOF {
			break
		}
		if nerr != nil {
			return nil, fmt.Errorf("decode frame %d: %w", frameIdx, nerr)
		}

		if frameIdx%stride == 0 {
			canvas := s.codec.Normalize(frame)
			hashes = append(hashes, s.codec.PHash(canvas))
		}
		frameIdx++
	}

	return &types.VideoHashes{
		FrameHashes:         hashes,
		AverageHash:         AverageHash(hashes),
		SamplingInterval:    s.samplingInterval,
		TotalFramesAnalyzed: len(hashes),
		TotalVideoFrames:    info.TotalFrames,
		FPS:                 fps,
	}, nil
}

// Probe 通过 ffprobe 读取视频流的帧率与总帧数.
func (s *Sampler) Probe(ctx context.Context, path string) (VideoInfo, error) {
	cmd := exec.CommandContext(ctx, s.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate,nb_frames,duration",
		"-of", "csv=p=0",
		path,
	)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(errBuf.String()))
	}

	return parseProbeOutput(out.String()), nil
}

// parseProbeOutput 解析 "r_frame_rate,duration,nb_frames" 形式的 csv 行.
// 缺失或非法的字段置零，由调用方决定回退策略.
func parseProbeOutput(raw string) VideoInfo {
	var info VideoInfo

	fields := strings.Split(strings.TrimSpace(raw), ",")
	if len(fields) > 0 {
		info.FPS = ParseFrameRate(fields[0])
	}
	if len(fields) > 1 {
		info.Duration, _ = strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	}
	if len(fields) > 2 {
		info.TotalFrames, _ = strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	}

	return info
}

// ParseFrameRate 解析 ffprobe 的帧率表示，支持 "30000/1001" 分数形式.
func ParseFrameRate(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0/0" {
		return 0
	}

	if num, den, ok := strings.Cut(raw, "/"); ok {
		n, errN := strconv.ParseFloat(num, 64)
		d, errD := strconv.ParseFloat(den, 64)
		if errN != nil || errD != nil || d == 0 {
			return 0
		}

		return n / d
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}

	return v
}

// AverageHash 将逐帧哈希视为大整数求均值并重编码为等宽 hex.
// 注意: 对独立 DCT 哈希取整数均值并不等价于对平均帧求哈希，
// 该聚合只用于粗粒度快速比对.
func AverageHash(hashes []string) string {
	if len(hashes) == 0 {
		return ""
	}

	sum := new(big.Int)
	for _, h := range hashes {
		v, ok := new(big.Int).SetString(h, 16)
		if !ok {
			continue
		}
		sum.Add(sum, v)
	}

	avg := sum.Div(sum, big.NewInt(int64(len(hashes))))

	return fmt.Sprintf("%0*x", len(hashes[0]), avg)
}

// ffmpegFrameSource 通过 ffmpeg rawvideo 管道顺序读取帧.
// 帧在解码端统一缩放到画布边长，降低管道吞吐.
type ffmpegFrameSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
	buf    []byte
}

func newFFmpegFrameSource(ctx context.Context, ffmpegPath, path string) (*ffmpegFrameSource, error) {
	ctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-hide_banner", "-v", "error",
		"-i", path,
		"-vf", fmt.Sprintf("scale=%d:%d", frameEdge, frameEdge),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return &ffmpegFrameSource{
		cmd:    cmd,
		stdout: stdout,
		cancel: cancel,
		buf:    make([]byte, frameSize),
	}, nil
}

// Next 读取下一帧 rgb24 数据并封装为 image.Image.
func (f *ffmpegFrameSource) Next() (image.Image, error) {
	if _, err := io.ReadFull(f.stdout, f.buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}

		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, frameEdge, frameEdge))
	for i := 0; i < frameEdge*frameEdge; i++ {
		img.Pix[i*4] = f.buf[i*3]
		img.Pix[i*4+1] = f.buf[i*3+1]
		img.Pix[i*4+2] = f.buf[i*3+2]
		img.Pix[i*4+3] = 0xff
	}

	return img, nil
}

// Close 终止解码进程并回收资源.
func (f *ffmpegFrameSource) Close() error {
	f.cancel()
	_ = f.stdout.Close()

	// 提前停止时进程被信号终止，不视为错误.
	if err := f.cmd.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}

		return err
	}

	return nil
}
