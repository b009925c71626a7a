package hashcodec

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

// gradientImage 生成水平渐变测试图.
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / (w - 1))
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}

	return img
}

// checkerImage 生成棋盘格测试图.
func checkerImage(w, h, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}

	return img
}

// texturedImage 渐变叠加粗棋盘，频谱上同时含低频与中频成分，
// 比纯渐变更接近真实图片对有损压缩的响应.
func texturedImage(w, h, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			base := x * 200 / (w - 1)
			if (x/cell+y/cell)%2 == 0 {
				base += 55
			}
			v := uint8(base)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}

	return img
}

func TestPHash_JPEGReencodeNearDuplicate(t *testing.T) {
	// 高质量 JPEG 重编码视为近重复: pHash 汉明距离须远小于位宽.
	codec := New(16, 256)
	src := texturedImage(512, 512, 32)
	orig := codec.HashImage(src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}

	reencoded, err := codec.HashReader(&buf)
	if err != nil {
		t.Fatalf("HashReader: %v", err)
	}

	dist, err := HammingDistance(orig.PHash, reencoded.PHash)
	if err != nil {
		t.Fatal(err)
	}

	// 256 位哈希，近重复阈值取 16（相似度 >= 0.9375）.
	if dist > 16 {
		t.Errorf("phash distance after jpeg reencode = %d, want <= 16", dist)
	}

	sim, err := Similarity(orig.PHash, reencoded.PHash)
	if err != nil {
		t.Fatal(err)
	}
	if sim < 0.9 {
		t.Errorf("phash similarity after jpeg reencode = %v, want >= 0.9", sim)
	}
}

func TestHashImage_HexShape(t *testing.T) {
	codec := New(16, 256)
	got := codec.HashImage(gradientImage(512, 512))

	wantLen := 16 * 16 / 4
	for name, h := range map[string]string{"phash": got.PHash, "ahash": got.AHash, "dhash": got.DHash} {
		if len(h) != wantLen {
			t.Errorf("%s length = %d, want %d", name, len(h), wantLen)
		}
		if h != strings.ToLower(h) {
			t.Errorf("%s not lowercase hex: %s", name, h)
		}
		for _, r := range h {
			if !strings.ContainsRune("0123456789abcdef", r) {
				t.Errorf("%s contains non-hex rune %q", name, r)
			}
		}
	}

	if got.HashSize != 16 {
		t.Errorf("HashSize = %d, want 16", got.HashSize)
	}
}

func TestHashImage_Deterministic(t *testing.T) {
	codec := New(16, 256)
	img := checkerImage(300, 200, 25)

	a := codec.HashImage(img)
	b := codec.HashImage(img)

	if a.PHash != b.PHash || a.AHash != b.AHash || a.DHash != b.DHash {
		t.Fatalf("same image produced different hashes: %+v vs %+v", a, b)
	}
}

func TestHashImage_ResolutionInvariant(t *testing.T) {
	// 同一渐变在不同源分辨率下归一化后应得到相同的 dHash.
	codec := New(16, 256)

	small := codec.HashImage(gradientImage(64, 64))
	large := codec.HashImage(gradientImage(1024, 1024))

	if small.DHash != large.DHash {
		t.Errorf("dhash differs across resolutions: %s vs %s", small.DHash, large.DHash)
	}
}

func TestDHash_GradientAllOnes(t *testing.T) {
	// 单调递增的水平渐变，每对相邻像素都满足右 > 左.
	codec := New(16, 256)
	canvas := codec.Normalize(gradientImage(256, 256))

	got := codec.DHash(canvas)
	want := strings.Repeat("f", 16*16/4)
	if got != want {
		t.Errorf("dhash = %s, want %s", got, want)
	}
}

func TestHashReader_DecodePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, checkerImage(128, 128, 16)); err != nil {
		t.Fatal(err)
	}

	codec := New(16, 256)
	got, err := codec.HashReader(&buf)
	if err != nil {
		t.Fatalf("HashReader: %v", err)
	}

	direct := codec.HashImage(checkerImage(128, 128, 16))
	if got.PHash != direct.PHash {
		t.Errorf("png roundtrip phash = %s, want %s", got.PHash, direct.PHash)
	}
}

func TestHashReader_CorruptData(t *testing.T) {
	codec := New(16, 256)
	if _, err := codec.HashReader(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Fatal("expected decode error for corrupt data")
	}
}

func TestEncodeDecodeBits_Roundtrip(t *testing.T) {
	bs := make([]bool, 64)
	for i := range bs {
		bs[i] = i%3 == 0
	}

	enc := EncodeBits(bs)
	if len(enc) != 16 {
		t.Fatalf("encoded length = %d, want 16", len(enc))
	}

	dec, err := DecodeBits(enc)
	if err != nil {
		t.Fatal(err)
	}

	for i := range bs {
		if bs[i] != dec[i] {
			t.Fatalf("bit %d mismatch after roundtrip", i)
		}
	}
}

func TestEncodeBits_MSBFirst(t *testing.T) {
	bs := make([]bool, 8)
	bs[0] = true // 最高位
	if got := EncodeBits(bs); got != "80" {
		t.Errorf("EncodeBits = %s, want 80", got)
	}
}

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"00", "00", 0},
		{"00", "ff", 8},
		{"f0", "0f", 8},
		{"80", "00", 1},
	}

	for _, tt := range tests {
		got, err := HammingDistance(tt.a, tt.b)
		if err != nil {
			t.Fatalf("HammingDistance(%s, %s): %v", tt.a, tt.b, err)
		}
		if got != tt.want {
			t.Errorf("HammingDistance(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}

	if _, err := HammingDistance("00", "0000"); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestSimilarity(t *testing.T) {
	got, err := Similarity("ffff", "ffff")
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("identical similarity = %v, want 1", got)
	}

	got, err = Similarity("ffff", "0000")
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("opposite similarity = %v, want 0", got)
	}
}
