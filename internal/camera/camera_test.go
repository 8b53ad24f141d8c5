package camera

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func solid(c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func photoServer(t *testing.T) *httptest.Server {
	t.Helper()
	colors := map[string]color.Color{
		"/red":   color.RGBA{255, 0, 0, 255},
		"/green": color.RGBA{0, 255, 0, 255},
		"/blue":  color.RGBA{0, 0, 255, 255},
		"/black": color.RGBA{0, 0, 0, 255},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := colors[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(solid(c))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMergeGrid(t *testing.T) {
	srv := photoServer(t)
	m := NewMerger(zap.NewNop())

	urls := []string{srv.URL + "/red", srv.URL + "/green", srv.URL + "/blue", srv.URL + "/black", srv.URL + "/red"}
	img, err := m.Merge(t.Context(), urls, time.Date(2024, 5, 1, 8, 30, 0, 0, time.Local))
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 400, 200), img.Bounds())
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, img.At(300, 20))  // 右上
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, img.At(300, 150)) // 右下
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.At(100, 150))   // 左下
	assert.Equal(t, 4, m.fetchCount)

	// 左上角有白色时间戳
	white := false
	for y := 10; y < 24 && !white; y++ {
		for x := 10; x < 80; x++ {
			if r, g, b, _ := img.At(x, y).RGBA(); r == 0xffff && g == 0xffff && b == 0xffff {
				white = true
				break
			}
		}
	}
	assert.True(t, white)
}

func TestMergeCachedByFirstURL(t *testing.T) {
	srv := photoServer(t)
	m := NewMerger(zap.NewNop())

	urls := []string{srv.URL + "/red", srv.URL + "/green"}
	first, err := m.Merge(t.Context(), urls, time.Time{})
	require.NoError(t, err)
	second, err := m.Merge(t.Context(), urls, time.Time{})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 2, m.fetchCount)
}

func TestMergeSkipsBrokenPhotos(t *testing.T) {
	srv := photoServer(t)
	m := NewMerger(zap.NewNop())

	img, err := m.Merge(t.Context(), []string{srv.URL + "/missing", srv.URL + "/blue"}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, img.At(100, 80))

	_, err = NewMerger(zap.NewNop()).Merge(t.Context(), nil, time.Time{})
	assert.ErrorIs(t, err, ErrNoPhotos)
}

func TestMergePartialNotCached(t *testing.T) {
	srv := photoServer(t)
	m := NewMerger(zap.NewNop())

	urls := []string{srv.URL + "/red", srv.URL + "/missing"}
	_, err := m.Merge(t.Context(), urls, time.Time{})
	require.NoError(t, err)
	assert.Nil(t, m.latestImg)

	_, err = m.Merge(t.Context(), urls, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, m.fetchCount)
}

func TestJPEGRejectsOversize(t *testing.T) {
	srv := photoServer(t)
	m := NewMerger(zap.NewNop())

	_, err := m.JPEG(t.Context(), []string{srv.URL + "/red"}, time.Time{}, 100000, 100000)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = m.JPEG(t.Context(), []string{srv.URL + "/red"}, time.Time{}, -1, 10)
	assert.ErrorIs(t, err, ErrInvalidSize)
	assert.Equal(t, 0, m.fetchCount)

	assert.NoError(t, ValidSize(MaxDimension, MaxDimension))
	assert.NoError(t, ValidSize(0, 0))
}

func TestJPEGResize(t *testing.T) {
	srv := photoServer(t)
	m := NewMerger(zap.NewNop())

	data, err := m.JPEG(t.Context(), []string{srv.URL + "/red"}, time.Time{}, 100, 50)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())
}
