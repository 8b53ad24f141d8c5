package geocoder

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/lxgazer/internal/models"
)

const (
	defaultAmapURL      = "https://restapi.amap.com/v3/geocode/regeo"
	defaultNominatimURL = "https://nominatim.openstreetmap.org/reverse"
	maxCacheSize        = 10000
)

// Client 逆地理编码客户端
// 配置了高德 Key 时使用高德，否则使用 Nominatim（OpenStreetMap）
type Client struct {
	amapAPIKey   string
	amapURL      string
	nominatimURL string
	httpClient   *http.Client
	logger       *zap.Logger

	// 坐标精确到小数点后 4 位（约 11 米）作为缓存 key
	cache   map[string]*models.Address
	cacheMu sync.RWMutex

	// Nominatim 要求每秒最多 1 次请求
	lastNominatimRequest time.Time
	nominatimMu          sync.Mutex
}

// Option 客户端选项
type Option func(*Client)

// WithEndpoints 覆盖服务地址（测试用）
func WithEndpoints(amapURL, nominatimURL string) Option {
	return func(c *Client) {
		if amapURL != "" {
			c.amapURL = amapURL
		}
		if nominatimURL != "" {
			c.nominatimURL = nominatimURL
		}
	}
}

// NewClient 创建逆地理编码客户端
func NewClient(amapAPIKey string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		amapAPIKey:   amapAPIKey,
		amapURL:      defaultAmapURL,
		nominatimURL: defaultNominatimURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
		cache:  make(map[string]*models.Address),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider 当前使用的服务提供商
func (c *Client) Provider() string {
	if c.amapAPIKey != "" {
		return "amap"
	}
	return "nominatim"
}

// ReverseGeocode 根据 WGS84 经纬度获取结构化地址
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (*models.Address, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lng)

	c.cacheMu.RLock()
	if addr, ok := c.cache[key]; ok {
		c.cacheMu.RUnlock()
		return addr, nil
	}
	c.cacheMu.RUnlock()

	var (
		addr *models.Address
		err  error
	)
	if c.amapAPIKey != "" {
		addr, err = c.reverseAmap(ctx, lat, lng)
	} else {
		addr, err = c.reverseNominatim(ctx, lat, lng)
	}
	if err != nil {
		return nil, fmt.Errorf("reverse geocode via %s: %w", c.Provider(), err)
	}
	addr.Provider = c.Provider()

	c.logger.Debug("Geocoded",
		zap.String("provider", addr.Provider),
		zap.Float64("lat", lat),
		zap.Float64("lng", lng),
		zap.String("address", addr.FormattedAddress))

	c.cacheMu.Lock()
	if len(c.cache) >= maxCacheSize {
		c.cache = make(map[string]*models.Address)
	}
	c.cache[key] = addr
	c.cacheMu.Unlock()

	return addr, nil
}

// CacheSize 缓存条目数
func (c *Client) CacheSize() int {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	return len(c.cache)
}
