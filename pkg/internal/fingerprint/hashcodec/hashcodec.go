// Package hashcodec 实现图像感知哈希（pHash/aHash/dHash）与十六进制编解码.
//
// 三种哈希均在固定 256x256 灰度画布上计算，保证哈希相等性与源分辨率无关:
//   - pHash: 基于 DCT 低频系数的中值阈值，对压缩与轻微调色鲁棒
//   - aHash: 降采样网格的均值阈值，对结构性改动敏感
//   - dHash: 水平梯度符号，对等比缩放鲁棒
//
// 哈希位宽由 hash_size 控制（默认 16，即 256 位），
// 序列化为长度 hash_size*hash_size/4 的小写 hex 字符串.
package hashcodec

import (
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"io"
	"math/bits"
	"os"
	"sort"

	// 支持常见图像容器格式的解码注册.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
)

const (
	// DefaultHashSize 默认哈希边长，16x16 = 256 位.
	DefaultHashSize = 16
	// DefaultCanvasSize 归一化画布边长.
	DefaultCanvasSize = 256
	// pHash 在画布上进一步降采样到 hashSize*highFreqFactor 后做 DCT.
	highFreqFactor = 4
)

// Codec 以固定参数计算感知哈希.
type Codec struct {
	hashSize   int
	canvasSize int
}

// New 创建哈希编解码器，非法参数回退默认值.
func New(hashSize, canvasSize int) *Codec {
	if hashSize <= 0 {
		hashSize = DefaultHashSize
	}
	if canvasSize <= 0 {
		canvasSize = DefaultCanvasSize
	}

	return &Codec{hashSize: hashSize, canvasSize: canvasSize}
}

// HashSize 返回配置的哈希边长.
func (c *Codec) HashSize() int { return c.hashSize }

// HexLen 返回序列化后的 hex 字符串长度.
func (c *Codec) HexLen() int { return c.hashSize * c.hashSize / 4 }

// HashFile 解码图像文件并计算三种感知哈希.
func (c *Codec) HashFile(path string) (*types.PerceptualHashes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return c.HashReader(f)
}

// HashReader 从字节流解码图像并计算三种感知哈希.
func (c *Codec) HashReader(r io.Reader) (*types.PerceptualHashes, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	return c.HashImage(img), nil
}

// HashImage 对已解码图像计算三种感知哈希.
func (c *Codec) HashImage(img image.Image) *types.PerceptualHashes {
	canvas := c.Normalize(img)

	return &types.PerceptualHashes{
		PHash:    c.PHash(canvas),
		AHash:    c.AHash(canvas),
		DHash:    c.DHash(canvas),
		HashSize: c.hashSize,
	}
}

// Normalize 将任意图像重采样为固定画布的灰度图.
// 固定使用 Catmull-Rom 插值，保证重采样结果确定.
func (c *Codec) Normalize(img image.Image) *image.Gray {
	dst := image.NewRGBA(image.Rect(0, 0, c.canvasSize, c.canvasSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	gray := image.NewGray(dst.Bounds())
	for y := 0; y < c.canvasSize; y++ {
		for x := 0; x < c.canvasSize; x++ {
			gray.Set(x, y, color.GrayModel.Convert(dst.At(x, y)))
		}
	}

	return gray
}

// PHash 计算 DCT 感知哈希.
// 画布先降采样到 hashSize*4 网格，做二维 DCT 后取左上 hashSize x hashSize
// 低频块，与块中值比较得到各位.
func (c *Codec) PHash(canvas *image.Gray) string {
	n := c.hashSize * highFreqFactor
	grid := resizeGrayToGrid(canvas, n, n)

	coeffs := dct2D(grid, n)

	low := make([]float64, 0, c.hashSize*c.hashSize)
	for y := 0; y < c.hashSize; y++ {
		for x := 0; x < c.hashSize; x++ {
			low = append(low, coeffs[y][x])
		}
	}

	med := median(low)

	bitsOut := make([]bool, len(low))
	for i, v := range low {
		bitsOut[i] = v > med
	}

	return EncodeBits(bitsOut)
}

// AHash 计算均值阈值哈希.
func (c *Codec) AHash(canvas *image.Gray) string {
	grid := resizeGrayToGrid(canvas, c.hashSize, c.hashSize)

	var sum float64
	for _, row := range grid {
		for _, v := range row {
			sum += v
		}
	}
	mean := sum / float64(c.hashSize*c.hashSize)

	bitsOut := make([]bool, 0, c.hashSize*c.hashSize)
	for _, row := range grid {
		for _, v := range row {
			bitsOut = append(bitsOut, v > mean)
		}
	}

	return EncodeBits(bitsOut)
}

// DHash 计算水平梯度哈希，网格宽度多取一列做相邻比较.
func (c *Codec) DHash(canvas *image.Gray) string {
	grid := resizeGrayToGrid(canvas, c.hashSize+1, c.hashSize)

	bitsOut := make([]bool, 0, c.hashSize*c.hashSize)
	for y := 0; y < c.hashSize; y++ {
		for x := 0; x < c.hashSize; x++ {
			bitsOut = append(bitsOut, grid[y][x+1] > grid[y][x])
		}
	}

	return EncodeBits(bitsOut)
}

// EncodeBits 将比特序列按 MSB-first 打包并编码为小写 hex.
// 比特数必须是 8 的倍数.
func EncodeBits(bs []bool) string {
	buf := make([]byte, len(bs)/8)
	for i, b := range bs {
		if b {
			buf[i/8] |= 1 << uint(7-i%8)
		}
	}

	return hex.EncodeToString(buf)
}

// DecodeBits 将 hex 字符串还原为 MSB-first 比特序列.
func DecodeBits(s string) ([]bool, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hash hex: %w", err)
	}

	bs := make([]bool, len(raw)*8)
	for i := range bs {
		bs[i] = raw[i/8]&(1<<uint(7-i%8)) != 0
	}

	return bs, nil
}

// HammingDistance 计算两个等长 hex 哈希的比特距离.
func HammingDistance(a, b string) (int, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("hash length mismatch: %d != %d", len(a), len(b))
	}

	ra, err := hex.DecodeString(a)
	if err != nil {
		return 0, fmt.Errorf("decode hash hex: %w", err)
	}
	rb, err := hex.DecodeString(b)
	if err != nil {
		return 0, fmt.Errorf("decode hash hex: %w", err)
	}

	dist := 0
	for i := range ra {
		dist += bits.OnesCount8(ra[i] ^ rb[i])
	}

	return dist, nil
}

// Similarity 返回两个哈希的相似度 [0,1]，1 表示完全一致.
func Similarity(a, b string) (float64, error) {
	dist, err := HammingDistance(a, b)
	if err != nil {
		return 0, err
	}

	total := len(a) * 4

	return 1 - float64(dist)/float64(total), nil
}

// resizeGrayToGrid 将灰度图重采样为 w x h 浮点网格.
func resizeGrayToGrid(src *image.Gray, w, h int) [][]float64 {
	small := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(small, small.Bounds(), src, src.Bounds(), draw.Src, nil)

	grid := make([][]float64, h)
	for y := 0; y < h; y++ {
		grid[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			grid[y][x] = float64(small.GrayAt(x, y).Y)
		}
	}

	return grid
}

// dct2D 对 n x n 网格做可分离的二维 DCT-II，先行后列.
func dct2D(grid [][]float64, n int) [][]float64 {
	plan := fourier.NewDCT(n)

	rows := make([][]float64, n)
	for y := 0; y < n; y++ {
		rows[y] = plan.Transform(nil, grid[y])
	}

	out := make([][]float64, n)
	for y := 0; y < n; y++ {
		out[y] = make([]float64, n)
	}

	col := make([]float64, n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = rows[y][x]
		}
		t := plan.Transform(nil, col)
		for y := 0; y < n; y++ {
			out[y][x] = t[y]
		}
	}

	return out
}

// median 返回切片中值，偶数长度取中间两数均值.
func median(vs []float64) float64 {
	s := make([]float64, len(vs))
	copy(s, vs)
	sort.Float64s(s)

	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}

	return s[mid]
}
