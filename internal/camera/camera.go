package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// 拼图位置：左上、右上、右下、左下
var grid = []image.Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

// JPEGQuality 输出质量
const JPEGQuality = 50

// MaxDimension 缩放输出的最大边长
const MaxDimension = 4096

var (
	// ErrNoPhotos 没有可用的停车照片
	ErrNoPhotos = errors.New("no parking photos")
	// ErrInvalidSize 缩放尺寸超出范围
	ErrInvalidSize = errors.New("invalid image size")
)

// ValidSize 检查缩放尺寸，0 表示不缩放
func ValidSize(width, height int) error {
	if width < 0 || height < 0 || width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%w: %dx%d exceeds %d", ErrInvalidSize, width, height, MaxDimension)
	}
	return nil
}

// Merger 将最多 4 张停车照片拼成 2x2 图片，按第一张照片地址缓存
type Merger struct {
	httpClient *http.Client
	logger     *zap.Logger

	mu         sync.Mutex
	latestURL  string
	latestImg  *image.RGBA
	fetchCount int
}

// NewMerger 创建拼图器
func NewMerger(logger *zap.Logger) *Merger {
	return &Merger{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Merge 返回拼好的图片，左上角绘制拍摄时间（时间为零值时使用当前时间）
// 只有所需照片全部下载成功时才缓存结果
func (m *Merger) Merge(ctx context.Context, urls []string, takenAt time.Time) (image.Image, error) {
	if len(urls) == 0 {
		return nil, ErrNoPhotos
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if urls[0] == m.latestURL && m.latestImg != nil {
		return m.latestImg, nil
	}

	var (
		target *image.RGBA
		w, h   int
		idx    int
	)
	for _, u := range urls {
		if idx >= len(grid) {
			break
		}
		img, err := m.fetch(ctx, u)
		if err != nil {
			m.logger.Warn("Fetch parking photo failed", zap.String("url", u), zap.Error(err))
			continue
		}
		if target == nil {
			w, h = img.Bounds().Dx(), img.Bounds().Dy()
			target = image.NewRGBA(image.Rect(0, 0, w*2, h*2))
		}
		at := image.Pt(w*grid[idx].X, h*grid[idx].Y)
		draw.Draw(target, image.Rectangle{Min: at, Max: at.Add(image.Pt(w, h))}, img, img.Bounds().Min, draw.Src)
		idx++
	}
	if target == nil {
		return nil, ErrNoPhotos
	}

	if takenAt.IsZero() {
		takenAt = time.Now()
	}
	drawText(target, 10, 10, takenAt.Format("2006-01-02 15:04:05"))

	if idx == min(len(urls), len(grid)) {
		m.latestURL = urls[0]
		m.latestImg = target
	}
	return target, nil
}

// JPEG 拼图并编码为 JPEG，width 和 height 都大于 0 时缩放
func (m *Merger) JPEG(ctx context.Context, urls []string, takenAt time.Time, width, height int) ([]byte, error) {
	if err := ValidSize(width, height); err != nil {
		return nil, err
	}
	img, err := m.Merge(ctx, urls, takenAt)
	if err != nil {
		return nil, err
	}
	if width > 0 && height > 0 {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *Merger) fetch(ctx context.Context, u string) (image.Image, error) {
	if u == "" {
		return nil, errors.New("empty url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	m.fetchCount++

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// drawText 白色文字，(x, y) 为文字左上角
func drawText(dst draw.Image, x, y int, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(text)
}
