package configs

import (
	"github.com/spf13/viper"
)

const (
	DefaultHashSize         = 16        // 感知哈希边长（位矩阵为 hash_size x hash_size）
	DefaultCanvasSize       = 256       // 图像归一化画布边长（像素）
	DefaultSampleRate       = 22050     // 音频重采样率（Hz）
	DefaultNMels            = 128       // Mel频带数量
	DefaultNChroma          = 12        // 色度（chroma）音级数量
	DefaultFMax             = 8000      // Mel滤波器组的最高频率（Hz）
	DefaultFrameSize        = 2048      // STFT帧长（采样点）
	DefaultHopSize          = 512       // STFT帧移（采样点）
	DefaultSamplingInterval = 1.0       // 视频帧采样间隔（秒）
	DefaultMaxFrames        = 300       // 单个视频最多分析帧数
	DefaultFallbackFPS      = 30.0      // fps探测失败时的回退值
	DefaultWorkers          = 4         // 指纹生成并发度
	DefaultFFmpegPath       = "ffmpeg"  // ffmpeg可执行文件
	DefaultFFprobePath      = "ffprobe" // ffprobe可执行文件
)

// FingerprintConfig 指纹生成流水线配置.
type FingerprintConfig struct {
	HashSize         int     `mapstructure:"hash_size"         rule:"min=4,max=64"`
	CanvasSize       int     `mapstructure:"canvas_size"       rule:"min=32,max=1024"`
	SampleRate       int     `mapstructure:"sample_rate"       rule:"min=8000,max=96000"`
	NMels            int     `mapstructure:"n_mels"            rule:"min=16,max=512"`
	NChroma          int     `mapstructure:"n_chroma"          rule:"min=12,max=24"`
	FMax             float64 `mapstructure:"fmax"              rule:"min=1000"`
	FrameSize        int     `mapstructure:"frame_size"        rule:"min=256,max=16384"`
	HopSize          int     `mapstructure:"hop_size"          rule:"min=64,max=8192"`
	SamplingInterval float64 `mapstructure:"sampling_interval" rule:"min=0.1,max=60"`
	MaxFrames        int     `mapstructure:"max_frames"        rule:"min=1,max=10000"`
	FallbackFPS      float64 `mapstructure:"fallback_fps"      rule:"min=1,max=240"`
	Workers          int     `mapstructure:"workers"           rule:"min=1,max=64"`
	FFmpegPath       string  `mapstructure:"ffmpeg_path"`
	FFprobePath      string  `mapstructure:"ffprobe_path"`
	WorkDir          string  `mapstructure:"work_dir"` // 临时介质文件目录，为空时使用 os.TempDir
}

// setDefaults 设置指纹流水线配置的默认值.
func (c *FingerprintConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("fingerprint.hash_size", DefaultHashSize)
	v.SetDefault("fingerprint.canvas_size", DefaultCanvasSize)
	v.SetDefault("fingerprint.sample_rate", DefaultSampleRate)
	v.SetDefault("fingerprint.n_mels", DefaultNMels)
	v.SetDefault("fingerprint.n_chroma", DefaultNChroma)
	v.SetDefault("fingerprint.fmax", DefaultFMax)
	v.SetDefault("fingerprint.frame_size", DefaultFrameSize)
	v.SetDefault("fingerprint.hop_size", DefaultHopSize)
	v.SetDefault("fingerprint.sampling_interval", DefaultSamplingInterval)
	v.SetDefault("fingerprint.max_frames", DefaultMaxFrames)
	v.SetDefault("fingerprint.fallback_fps", DefaultFallbackFPS)
	v.SetDefault("fingerprint.workers", DefaultWorkers)
	v.SetDefault("fingerprint.ffmpeg_path", DefaultFFmpegPath)
	v.SetDefault("fingerprint.ffprobe_path", DefaultFFprobePath)
	v.SetDefault("fingerprint.work_dir", "")
}
