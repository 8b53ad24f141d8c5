package lixiang

import (
	"crypto/md5"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// App 身份信息，与官方 Android 客户端保持一致
const (
	AppVersion   = "5.11.0"
	UserAgent    = "M01/5.11.0 (Android; 6.0.1)"
	chjVersion   = "0.1-20160523142212"
	chjMetadata  = `{"language":"zh","code":"102004"}`
	chjEnv       = "prod"
	chjDevType   = "2"
	chjModelName = "ANDROID"
	chjDevModel  = "XiaoMi"
)

// Credentials 理想汽车 API 凭据，由配置提供，不在本层刷新
type Credentials struct {
	APIKey   string `json:"api_key" yaml:"api_key"`
	APISign  string `json:"api_sign" yaml:"api_sign"`
	APIToken string `json:"api_token" yaml:"api_token"`
	DeviceID string `json:"device_id" yaml:"device_id"`
}

// Signer 为每次请求生成完整的请求头
type Signer struct {
	now   func() time.Time
	nonce func() string
}

// NewSigner 创建签名器
func NewSigner() *Signer {
	return &Signer{
		now:   time.Now,
		nonce: func() string { return uuid.NewString() },
	}
}

// ContentMD5 计算请求体的 Content-MD5（仅作校验和使用）
func ContentMD5(body []byte) string {
	sum := md5.Sum(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Sign 生成请求头
// 凭据为空时照常生成，由服务端拒绝
func (s *Signer) Sign(body []byte, vin string, creds Credentials) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("Content-Language", "zh-CN")
	h.Set("Content-MD5", ContentMD5(body))
	h.Set("User-Agent", UserAgent)
	h.Set("x-chj-deviceid", creds.DeviceID)
	h.Set("x-chj-app-version", AppVersion)
	h.Set("x-chj-env", chjEnv)
	h.Set("x-chj-version", chjVersion)
	h.Set("x-chj-key", creds.APIKey)
	h.Set("x-chj-timestamp", strconv.FormatInt(s.now().UnixMilli(), 10))
	h.Set("x-chj-nonce", s.nonce())
	h.Set("x-chj-sign", creds.APISign)
	h.Set("x-chj-token", creds.APIToken)
	h.Set("x-chj-devicetype", chjDevType)
	h.Set("x-chj-modelname", chjModelName)
	h.Set("x-chj-devicemodel", chjDevModel)
	h.Set("x-chj-vin", vin)
	h.Set("x-chj-traceid", s.nonce())
	h.Set("x-chj-metadata", chjMetadata)
	return h
}
