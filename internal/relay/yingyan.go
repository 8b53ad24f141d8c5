package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// YingyanEndpoint 百度鹰眼轨迹上传接口
const YingyanEndpoint = "https://yingyan.baidu.com/api/v3/track/addpoint"

// Yingyan 百度鹰眼轨迹转发
type Yingyan struct {
	ak         string
	serviceID  string
	endpoint   string
	httpClient *http.Client
}

// NewYingyan 创建鹰眼转发
func NewYingyan(ak, serviceID string) *Yingyan {
	return &Yingyan{
		ak:         ak,
		serviceID:  serviceID,
		endpoint:   YingyanEndpoint,
		httpClient: defaultHTTPClient,
	}
}

func (y *Yingyan) Name() string {
	return "baidu_yingyan"
}

// Form 组装上传表单，实体名使用 VIN
func (y *Yingyan) Form(fix Fix) url.Values {
	f := url.Values{}
	f.Set("ak", y.ak)
	f.Set("service_id", y.serviceID)
	f.Set("entity_name", fix.VIN)
	f.Set("latitude", formatFloat(fix.Lat))
	f.Set("longitude", formatFloat(fix.Lon))
	f.Set("loc_time", strconv.FormatInt(fix.Time.Unix(), 10))
	if fix.Altitude != nil {
		f.Set("height", formatFloat(*fix.Altitude))
	}
	f.Set("direction", strconv.Itoa(int(valueOr(fix.Heading, 0))))
	f.Set("speed", formatFloat(valueOr(fix.Speed, 0)))
	f.Set("coord_type_input", "wgs84")
	return f
}

type yingyanResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Send 上传一个轨迹点，status 非 0 视为失败
func (y *Yingyan) Send(ctx context.Context, fix Fix) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.endpoint, strings.NewReader(y.Form(fix).Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send to yingyan: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var result yingyanResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode response %q: %w", body, err)
	}
	if result.Status != 0 {
		return fmt.Errorf("yingyan error %d: %s", result.Status, result.Message)
	}
	return nil
}
