package framesampler

import (
	"image"
	"image/color"
	"io"
	"strings"
	"testing"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/fingerprint/hashcodec"
)

// fakeSource 产出固定数量的纯色帧并记录 Close 调用.
type fakeSource struct {
	total  int
	served int
	closed bool
	errAt  int // 在第 errAt 帧返回错误，0 表示不出错
}

func (f *fakeSource) Next() (image.Image, error) {
	if f.errAt > 0 && f.served+1 == f.errAt {
		return nil, io.ErrClosedPipe
	}
	if f.served >= f.total {
		return nil, io.EOF
	}
	f.served++

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	shade := uint8(f.served % 256)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = shade
		img.Pix[i+1] = shade
		img.Pix[i+2] = shade
		img.Pix[i+3] = 0xff
	}

	return img, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func TestSample_StrideAndCount(t *testing.T) {
	// 10 秒 30fps、1 秒间隔: 300 帧、stride 30，命中帧 0,30,...,270 共 10 帧.
	s := New(nil)
	src := &fakeSource{total: 300}

	got, err := s.Sample(src, VideoInfo{FPS: 30, TotalFrames: 300})
	if err != nil {
		t.Fatal(err)
	}

	if got.TotalFramesAnalyzed != 10 {
		t.Errorf("frames analyzed = %d, want 10", got.TotalFramesAnalyzed)
	}
	if len(got.FrameHashes) != got.TotalFramesAnalyzed {
		t.Errorf("hash count %d != analyzed count %d", len(got.FrameHashes), got.TotalFramesAnalyzed)
	}
	if got.AverageHash == "" {
		t.Error("average hash empty")
	}
	if got.FPS != 30 {
		t.Errorf("fps = %v, want 30", got.FPS)
	}
	if !src.closed {
		t.Error("frame source not closed")
	}
}

func TestSample_FrameCap(t *testing.T) {
	// stride 1 时长视频必须在帧数上限处提前停止.
	s := New(nil, WithMaxFrames(5))
	src := &fakeSource{total: 100}

	got, err := s.Sample(src, VideoInfo{FPS: 1})
	if err != nil {
		t.Fatal(err)
	}

	if got.TotalFramesAnalyzed != 5 {
		t.Errorf("frames analyzed = %d, want cap 5", got.TotalFramesAnalyzed)
	}
	if src.served > 6 {
		t.Errorf("decoded %d frames after cap, want early stop", src.served)
	}
	if !src.closed {
		t.Error("frame source not closed on early stop")
	}
}

func TestSample_FallbackFPS(t *testing.T) {
	s := New(nil)
	src := &fakeSource{total: 90}

	got, err := s.Sample(src, VideoInfo{FPS: 0})
	if err != nil {
		t.Fatal(err)
	}

	if got.FPS != DefaultFallbackFPS {
		t.Errorf("fps = %v, want fallback %v", got.FPS, DefaultFallbackFPS)
	}
	// 90 帧 / stride 30 = 3 个命中帧.
	if got.TotalFramesAnalyzed != 3 {
		t.Errorf("frames analyzed = %d, want 3", got.TotalFramesAnalyzed)
	}
}

func TestSample_StrideClamp(t *testing.T) {
	// fps * interval < 0.5 时 stride 必须钳到 1.
	s := New(nil, WithInterval(0.01))
	src := &fakeSource{total: 4}

	got, err := s.Sample(src, VideoInfo{FPS: 10})
	if err != nil {
		t.Fatal(err)
	}

	if got.TotalFramesAnalyzed != 4 {
		t.Errorf("frames analyzed = %d, want all 4", got.TotalFramesAnalyzed)
	}
}

func TestSample_DecodeErrorClosesSource(t *testing.T) {
	s := New(nil)
	src := &fakeSource{total: 10, errAt: 3}

	if _, err := s.Sample(src, VideoInfo{FPS: 1}); err == nil {
		t.Fatal("expected decode error")
	}
	if !src.closed {
		t.Error("frame source not closed on error path")
	}
}

func TestSample_HashWidth(t *testing.T) {
	codec := hashcodec.New(16, 256)
	s := New(codec)
	src := &fakeSource{total: 3}

	got, err := s.Sample(src, VideoInfo{FPS: 1})
	if err != nil {
		t.Fatal(err)
	}

	for _, h := range got.FrameHashes {
		if len(h) != codec.HexLen() {
			t.Errorf("frame hash length = %d, want %d", len(h), codec.HexLen())
		}
	}
	if len(got.AverageHash) != codec.HexLen() {
		t.Errorf("average hash length = %d, want %d", len(got.AverageHash), codec.HexLen())
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"30", 30},
		{"30000/1001", 30000.0 / 1001.0},
		{"25/1", 25},
		{"0/0", 0},
		{"", 0},
		{"garbage", 0},
		{"1/0", 0},
	}

	for _, tt := range tests {
		if got := ParseFrameRate(tt.raw); got != tt.want {
			t.Errorf("ParseFrameRate(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseProbeOutput(t *testing.T) {
	info := parseProbeOutput("30000/1001,10.010000,300\n")

	if info.FPS < 29.9 || info.FPS > 30 {
		t.Errorf("fps = %v, want ~29.97", info.FPS)
	}
	if info.Duration != 10.01 {
		t.Errorf("duration = %v, want 10.01", info.Duration)
	}
	if info.TotalFrames != 300 {
		t.Errorf("total frames = %d, want 300", info.TotalFrames)
	}
}

func TestAverageHash(t *testing.T) {
	// (0x10 + 0x30) / 2 = 0x20，保持原始宽度.
	if got := AverageHash([]string{"0010", "0030"}); got != "0020" {
		t.Errorf("AverageHash = %s, want 0020", got)
	}

	if got := AverageHash(nil); got != "" {
		t.Errorf("AverageHash(nil) = %q, want empty", got)
	}

	// 均值不得超过最大输入宽度.
	got := AverageHash([]string{strings.Repeat("f", 64), strings.Repeat("f", 64)})
	if len(got) != 64 {
		t.Errorf("average hash length = %d, want 64", len(got))
	}
}

// 保证纯色帧哈希路径不因颜色模型转换 panic.
func TestSample_ColorFrames(t *testing.T) {
	_ = New(nil)

	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 90, A: 255})
		}
	}

	canvas := hashcodec.New(16, 256).Normalize(img)
	if canvas.Bounds().Dx() != 256 {
		t.Errorf("canvas width = %d, want 256", canvas.Bounds().Dx())
	}
}
