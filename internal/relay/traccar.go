package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/langchou/lxgazer/internal/state"
)

// Traccar OsmAnd 协议转发
// https://www.traccar.org/osmand/
type Traccar struct {
	host       string
	deviceID   string
	httpClient *http.Client
}

// NewTraccar host 形如 "traccar.example.com:5055"，deviceID 为空时使用 VIN
func NewTraccar(host, deviceID string) *Traccar {
	return &Traccar{
		host:       host,
		deviceID:   deviceID,
		httpClient: defaultHTTPClient,
	}
}

func (t *Traccar) Name() string {
	return "traccar"
}

// Query 组装 OsmAnd 查询参数，未知读数不发送
func (t *Traccar) Query(fix Fix) url.Values {
	id := t.deviceID
	if id == "" {
		id = fix.VIN
	}

	q := url.Values{}
	q.Set("id", id)
	q.Set("timestamp", strconv.FormatInt(fix.Time.Unix(), 10))
	q.Set("lat", formatFloat(fix.Lat))
	q.Set("lon", formatFloat(fix.Lon))
	q.Set("speed", formatFloat(state.KmhToKnots(valueOr(fix.Speed, 0))))

	optional := map[string]*float64{
		"altitude":      fix.Altitude,
		"heading":       fix.Heading,
		"fuel":          fix.Fuel,
		"totalDistance": fix.Mileage,
		"deviceTemp":    fix.IndoorTemp,
	}
	for k, v := range optional {
		if v != nil {
			q.Set(k, formatFloat(*v))
		}
	}
	if fix.Battery != nil {
		q.Set("batt", strconv.Itoa(int(*fix.Battery)))
	}
	return q
}

func (t *Traccar) endpoint() string {
	if strings.HasPrefix(t.host, "http://") || strings.HasPrefix(t.host, "https://") {
		return t.host
	}
	return "http://" + t.host
}

// Send 发送一次定位
func (t *Traccar) Send(ctx context.Context, fix Fix) error {
	u := t.endpoint() + "?" + t.Query(fix).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send to traccar: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("traccar returned status %d", resp.StatusCode)
	}
	return nil
}
