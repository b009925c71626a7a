// Package spectral 实现音频频谱特征提取.
//
// 输入统一重采样为 22050 Hz 单声道 PCM（由 ffmpeg 完成），之后:
//   - 梅尔频谱: 128 个梅尔带，上限 8000 Hz，对数功率刻度
//   - 色度图: 12 个音级 bin，经短时傅里叶分析聚合
//   - 频谱质心: 逐帧亮度度量，输出均值与标准差
//
// 原始矩阵只用于下游相等/近似比较，不落库全量，
// 展平后做 SHA-256 内容摘要.
package spectral

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
)

const (
	// DefaultSampleRate 统一分析采样率.
	DefaultSampleRate = 22050
	// DefaultNMels 梅尔带数量.
	DefaultNMels = 128
	// DefaultNChroma 音级 bin 数量.
	DefaultNChroma = 12
	// DefaultFMax 梅尔滤波器组频率上限.
	DefaultFMax = 8000
	// DefaultFrameSize STFT 帧长.
	DefaultFrameSize = 2048
	// DefaultHopSize STFT 帧移.
	DefaultHopSize = 512

	decodeTimeout = 5 * time.Minute
	logFloor      = 1e-10
)

// Analyzer 以固定 DSP 参数提取音频特征.
type Analyzer struct {
	sampleRate int
	nMels      int
	nChroma    int
	fMax       float64
	frameSize  int
	hopSize    int
	ffmpegPath string

	window []float64
	melFB  [][]float64
}

// Option 调整分析器参数.
type Option func(*Analyzer)

// WithFFmpegPath 指定 ffmpeg 可执行文件路径.
func WithFFmpegPath(path string) Option {
	return func(a *Analyzer) {
		if path != "" {
			a.ffmpegPath = path
		}
	}
}

// WithParams 覆盖 DSP 参数，零值项保持默认.
func WithParams(sampleRate, nMels, nChroma, fMax, frameSize, hopSize int) Option {
	return func(a *Analyzer) {
		if sampleRate > 0 {
			a.sampleRate = sampleRate
		}
		if nMels > 0 {
			a.nMels = nMels
		}
		if nChroma > 0 {
			a.nChroma = nChroma
		}
		if fMax > 0 {
			a.fMax = float64(fMax)
		}
		if frameSize > 0 {
			a.frameSize = frameSize
		}
		if hopSize > 0 {
			a.hopSize = hopSize
		}
	}
}

// New 创建分析器，预计算汉宁窗与梅尔滤波器组.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		sampleRate: DefaultSampleRate,
		nMels:      DefaultNMels,
		nChroma:    DefaultNChroma,
		fMax:       DefaultFMax,
		frameSize:  DefaultFrameSize,
		hopSize:    DefaultHopSize,
		ffmpegPath: "ffmpeg",
	}
	for _, opt := range opts {
		opt(a)
	}

	a.window = hannWindow(a.frameSize)
	a.melFB = melFilterbank(a.nMels, a.frameSize/2, float64(a.sampleRate), a.fMax)

	return a
}

// AnalyzeFile 解码音频文件为单声道 PCM 并提取特征.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*types.SpectralData, error) {
	pcm, err := a.DecodeFile(ctx, path)
	if err != nil {
		return nil, err
	}

	return a.AnalyzePCM(pcm), nil
}

// DecodeFile 通过 ffmpeg 将任意音频容器解码为目标采样率的单声道 float32 PCM.
func (a *Analyzer) DecodeFile(ctx context.Context, path string) ([]float64, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, decodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.ffmpegPath,
		"-hide_banner", "-v", "error",
		"-i", path,
		"-ac", "1",
		"-ar", strconv.Itoa(a.sampleRate),
		"-f", "f32le",
		"pipe:1",
	)

	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w: %s", err, strings.TrimSpace(errBuf.String()))
	}

	raw := out.Bytes()
	if len(raw) == 0 || len(raw)%4 != 0 {
		return nil, fmt.Errorf("ffmpeg decode: unexpected pcm byte length %d", len(raw))
	}

	samples := make([]float64, len(raw)/4)
	for i := range samples {
		u := binary.LittleEndian.Uint32(raw[i*4:])
		samples[i] = float64(math.Float32frombits(u))
	}

	return samples, nil
}

// AnalyzePCM 对单声道 PCM 提取全部频谱特征.
// 纯函数: 相同输入必然产生相同的摘要.
func (a *Analyzer) AnalyzePCM(pcm []float64) *types.SpectralData {
	spec := a.stft(pcm)

	mel := a.melSpectrogram(spec)
	chroma := a.chromagram(spec)
	mean, std := a.spectralCentroid(spec)

	return &types.SpectralData{
		MelSpectrogramHash:   hashMatrix(mel),
		ChromagramHash:       hashMatrix(chroma),
		SpectralCentroidMean: mean,
		SpectralCentroidStd:  std,
		Duration:             float64(len(pcm)) / float64(a.sampleRate),
		SampleRate:           a.sampleRate,
		NMels:                a.nMels,
		NChroma:              a.nChroma,
	}
}

// stft 计算短时傅里叶变换的功率谱，帧数 x (frameSize/2) 矩阵.
func (a *Analyzer) stft(pcm []float64) [][]float64 {
	n := a.frameSize
	hop := a.hopSize

	frames := 1 + int(math.Max(0, float64(len(pcm)-n))/float64(hop))
	fft := fourier.NewFFT(n)

	spec := make([][]float64, frames)
	buf := make([]float64, n)
	for i := 0; i < frames; i++ {
		start := i * hop
		for k := 0; k < n; k++ {
			if start+k < len(pcm) {
				buf[k] = pcm[start+k] * a.window[k]
			} else {
				buf[k] = 0
			}
		}

		coeffs := fft.Coefficients(nil, buf)

		power := make([]float64, n/2)
		for f := 0; f < n/2; f++ {
			re := real(coeffs[f])
			im := imag(coeffs[f])
			power[f] = re*re + im*im
		}
		spec[i] = power
	}

	return spec
}

// melSpectrogram 施加梅尔滤波器组并转换为对数功率.
func (a *Analyzer) melSpectrogram(spec [][]float64) [][]float64 {
	mel := make([][]float64, len(spec))
	for t, power := range spec {
		row := make([]float64, a.nMels)
		for m := 0; m < a.nMels; m++ {
			var acc float64
			for f, w := range a.melFB[m] {
				if w > 0 {
					acc += w * power[f]
				}
			}
			row[m] = math.Log10(acc + logFloor)
		}
		mel[t] = row
	}

	return mel
}

// chromagram 将每个 FFT bin 折叠到 12 个音级并按功率累加.
// bin 到音级的映射以 A4 = 440 Hz 为基准.
func (a *Analyzer) chromagram(spec [][]float64) [][]float64 {
	binHz := float64(a.sampleRate) / float64(a.frameSize)

	// bin -> 音级索引的静态映射，-1 表示忽略（直流或超出上限）.
	classOf := make([]int, a.frameSize/2)
	for f := range classOf {
		freq := float64(f) * binHz
		if freq < 20 || freq > a.fMax {
			classOf[f] = -1
			continue
		}
		midi := 69 + 12*math.Log2(freq/440)
		classOf[f] = ((int(math.Round(midi)) % a.nChroma) + a.nChroma) % a.nChroma
	}

	chroma := make([][]float64, len(spec))
	for t, power := range spec {
		row := make([]float64, a.nChroma)
		for f, class := range classOf {
			if class >= 0 {
				row[class] += power[f]
			}
		}
		chroma[t] = row
	}

	return chroma
}

// spectralCentroid 计算逐帧质心的均值与标准差.
func (a *Analyzer) spectralCentroid(spec [][]float64) (mean, std float64) {
	if len(spec) == 0 {
		return 0, 0
	}

	binHz := float64(a.sampleRate) / float64(a.frameSize)

	centroids := make([]float64, len(spec))
	for t, power := range spec {
		var num, den float64
		for f, p := range power {
			num += float64(f) * binHz * p
			den += p
		}
		if den > 0 {
			centroids[t] = num / den
		}
	}

	mean = stat.Mean(centroids, nil)
	if len(centroids) > 1 {
		std = stat.StdDev(centroids, nil)
	}

	return mean, std
}

// hashMatrix 将矩阵按行主序展平为小端 float64 字节并做 SHA-256.
func hashMatrix(m [][]float64) string {
	h := sha256.New()

	var buf [8]byte
	for _, row := range m {
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

// hannWindow 生成汉宁窗.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}

	return w
}

// melFilterbank 构造三角梅尔滤波器组，nBins 为 FFT 正频 bin 数.
func melFilterbank(nMels, nBins int, sampleRate, fMax float64) [][]float64 {
	if fMax > sampleRate/2 {
		fMax = sampleRate / 2
	}

	melMax := hzToMel(fMax)

	// nMels+2 个等距梅尔刻度点，换算回频率后映射到 bin.
	points := make([]float64, nMels+2)
	binHz := sampleRate / float64(nBins*2)
	for i := range points {
		points[i] = melToHz(melMax * float64(i) / float64(nMels+1)) / binHz
	}

	fb := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		row := make([]float64, nBins)
		left, center, right := points[m], points[m+1], points[m+2]
		for f := 0; f < nBins; f++ {
			x := float64(f)
			switch {
			case x > left && x <= center && center > left:
				row[f] = (x - left) / (center - left)
			case x > center && x < right && right > center:
				row[f] = (right - x) / (right - center)
			}
		}
		fb[m] = row
	}

	return fb
}

func hzToMel(f float64) float64 { return 2595 * math.Log10(1+f/700) }

func melToHz(m float64) float64 { return 700 * (math.Pow(10, m/2595) - 1) }
