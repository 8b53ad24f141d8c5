package lixiang

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/lxgazer/internal/metrics"
)

// DefaultBaseURL 理想汽车 App API 地址
const DefaultBaseURL = "https://api-app.lixiang.com"

// Payload 接口返回的松散 JSON 对象
type Payload = map[string]any

// Client 理想汽车 API 客户端（每辆车一个实例）
// 所有请求都不返回错误：失败时记录日志并返回空对象，调用方按字段缺失处理
type Client struct {
	httpClient *http.Client
	baseURL    string
	vin        string
	signer     *Signer
	logger     *zap.Logger

	mu    sync.RWMutex
	creds Credentials
}

// NewClient 创建新的理想汽车 API 客户端
func NewClient(baseURL, vin string, creds Credentials, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		vin:     vin,
		signer:  NewSigner(),
		logger:  logger,
		creds:   creds,
	}
}

// VIN 返回客户端绑定的车架号
func (c *Client) VIN() string {
	return c.vin
}

// Credentials 获取当前凭据
func (c *Client) Credentials() Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

// SetCredentials 替换凭据（重新配置时调用）
func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
}

// URL 拼接完整地址，已带 http(s) 前缀的地址原样返回
func (c *Client) URL(api string) string {
	if strings.HasPrefix(api, "https:") || strings.HasPrefix(api, "http:") {
		return api
	}
	return strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(api, "/")
}

type requestOptions struct {
	method  string
	headers map[string]string
}

// RequestOption 请求选项
type RequestOption func(*requestOptions)

// WithMethod 覆盖默认的请求方法
func WithMethod(method string) RequestOption {
	return func(o *requestOptions) {
		o.method = strings.ToUpper(method)
	}
}

// WithHeaders 追加额外请求头
func WithHeaders(headers map[string]string) RequestOption {
	return func(o *requestOptions) {
		o.headers = headers
	}
}

// Request 发起请求并返回 data 字段（不存在时返回整个响应）
func (c *Client) Request(ctx context.Context, api string, params map[string]any, opts ...RequestOption) Payload {
	env := c.RequestRaw(ctx, api, params, opts...)
	if data, ok := env["data"].(map[string]any); ok && len(data) > 0 {
		return data
	}
	return env
}

// Fetch 发起 GET 请求并取出 data 对象
// 传输失败、错误码或 data 为空时返回 false，调用方应保留上一次的数据
func (c *Client) Fetch(ctx context.Context, api string) (Payload, bool) {
	return Data(c.RequestRaw(ctx, api, nil))
}

// Data 从完整响应中取出非空的 data 对象
func Data(env Payload) (Payload, bool) {
	if len(env) == 0 || IsError(env) {
		return nil, false
	}
	data, ok := env["data"].(map[string]any)
	if !ok || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// RequestRaw 发起请求并返回完整响应
func (c *Client) RequestRaw(ctx context.Context, api string, params map[string]any, opts ...RequestOption) Payload {
	o := &requestOptions{}
	for _, opt := range opts {
		opt(o)
	}

	method := o.method
	if method == "" {
		method = http.MethodGet
		if len(params) > 0 {
			method = http.MethodPost
		}
	}

	var body []byte
	if len(params) > 0 {
		var err error
		if body, err = json.Marshal(params); err != nil {
			c.logger.Error("Encode request params failed", zap.String("api", api), zap.Error(err))
			metrics.APIRequests.WithLabelValues(metrics.OutcomeEncodeError).Inc()
			return Payload{}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(api), bytes.NewReader(body))
	if err != nil {
		c.logger.Error("Create request failed", zap.String("api", api), zap.Error(err))
		metrics.APIRequests.WithLabelValues(metrics.OutcomeTransportError).Inc()
		return Payload{}
	}
	req.Header = c.signer.Sign(body, c.vin, c.Credentials())
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Request api failed",
			zap.String("api", api),
			zap.Any("params", params),
			zap.Error(err))
		metrics.APIRequests.WithLabelValues(metrics.OutcomeTransportError).Inc()
		return Payload{}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("Read response failed", zap.String("api", api), zap.Error(err))
		metrics.APIRequests.WithLabelValues(metrics.OutcomeTransportError).Inc()
		return Payload{}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Request api failed",
			zap.String("api", api),
			zap.Any("params", params),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(data)))
		metrics.APIRequests.WithLabelValues(metrics.OutcomeHTTPError).Inc()
		return Payload{}
	}

	var env Payload
	if err := json.Unmarshal(data, &env); err != nil || env == nil {
		c.logger.Error("Decode response failed",
			zap.String("api", api),
			zap.String("body", string(data)),
			zap.Error(err))
		metrics.APIRequests.WithLabelValues(metrics.OutcomeDecodeError).Inc()
		return Payload{}
	}

	if IsError(env) {
		c.logger.Warn("Request api returned error",
			zap.String("api", api),
			zap.Any("params", params),
			zap.Any("response", env))
		metrics.APIRequests.WithLabelValues(metrics.OutcomeAppError).Inc()
		return env
	}

	metrics.APIRequests.WithLabelValues(metrics.OutcomeOK).Inc()
	return env
}

// IsError 判断响应中的 code 是否表示失败（非零即失败）
func IsError(env Payload) bool {
	switch v := env["code"].(type) {
	case nil:
		return false
	case float64:
		return v != 0
	case string:
		return v != "" && v != "0"
	case bool:
		return v
	default:
		return true
	}
}
