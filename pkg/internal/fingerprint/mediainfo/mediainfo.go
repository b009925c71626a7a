// Package mediainfo 提取资产的基础媒体元数据，用于构造嵌入描述文本.
// 元数据是增强信息：任何提取失败都不影响指纹正确性，由调用方降级处理.
package mediainfo

import (
	"fmt"
	"image"
	"os"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/dhowden/tag"
)

// ImageInfo 图像基础元数据.
type ImageInfo struct {
	Width  int
	Height int
	Format string
}

// AudioInfo 音频标签元数据.
type AudioInfo struct {
	Title  string
	Artist string
	Album  string
	Genre  string
	Format string
}

// ExtractImage 读取图像头部获取尺寸与格式，不解码全图.
func ExtractImage(path string) (*ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}

	return &ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// ExtractAudio 读取音频容器的标签元数据.
func ExtractAudio(path string) (*AudioInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("read audio tags: %w", err)
	}

	return &AudioInfo{
		Title:  meta.Title(),
		Artist: meta.Artist(),
		Album:  meta.Album(),
		Genre:  meta.Genre(),
		Format: string(meta.Format()),
	}, nil
}

// DescribeImage 构造图像资产的简短描述.
func DescribeImage(path string, info *ImageInfo) string {
	if info == nil {
		return "image asset"
	}

	return fmt.Sprintf("%s image, %dx%d pixels", info.Format, info.Width, info.Height)
}

// DescribeAudio 构造音频资产的简短描述，附带可用标签.
func DescribeAudio(duration float64, info *AudioInfo) string {
	parts := []string{fmt.Sprintf("audio asset, %.1f seconds", duration)}

	if info != nil {
		if info.Title != "" {
			parts = append(parts, "title: "+info.Title)
		}
		if info.Artist != "" {
			parts = append(parts, "artist: "+info.Artist)
		}
		if info.Genre != "" {
			parts = append(parts, "genre: "+info.Genre)
		}
	}

	return strings.Join(parts, ", ")
}

// DescribeVideo 构造视频资产的简短描述.
func DescribeVideo(fps float64, framesAnalyzed int, totalFrames int64) string {
	if totalFrames > 0 {
		return fmt.Sprintf("video asset, %.2f fps, %d frames, %d sampled", fps, totalFrames, framesAnalyzed)
	}

	return fmt.Sprintf("video asset, %.2f fps, %d frames sampled", fps, framesAnalyzed)
}

// DescribeText 直接使用文本内容作为嵌入输入，截断交由客户端处理.
func DescribeText(content string) string {
	return strings.TrimSpace(content)
}
