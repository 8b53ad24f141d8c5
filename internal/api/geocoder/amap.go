package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/langchou/lxgazer/internal/models"
)

// 高德逆地理编码响应
type amapResponse struct {
	Status    string `json:"status"`
	Info      string `json:"info"`
	InfoCode  string `json:"infocode"`
	Regeocode *struct {
		FormattedAddress any `json:"formatted_address"`
		AddressComponent struct {
			Country      any `json:"country"`
			Province     any `json:"province"`
			City         any `json:"city"`
			District     any `json:"district"`
			Township     any `json:"township"`
			StreetNumber struct {
				Street any `json:"street"`
				Number any `json:"number"`
			} `json:"streetNumber"`
		} `json:"addressComponent"`
	} `json:"regeocode"`
}

// 高德在字段缺失时返回空数组 []
func amapString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func (c *Client) reverseAmap(ctx context.Context, lat, lng float64) (*models.Address, error) {
	q := url.Values{}
	q.Set("key", c.amapAPIKey)
	// 经度在前
	q.Set("location", fmt.Sprintf("%.6f,%.6f", lng, lat))
	q.Set("extensions", "base")
	q.Set("output", "JSON")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.amapURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("amap returned status %d", resp.StatusCode)
	}

	var result amapResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Status != "1" {
		return nil, fmt.Errorf("amap error: %s (code: %s)", result.Info, result.InfoCode)
	}
	if result.Regeocode == nil {
		return nil, errors.New("no regeocode result")
	}

	comp := result.Regeocode.AddressComponent
	return &models.Address{
		FormattedAddress: amapString(result.Regeocode.FormattedAddress),
		Country:          amapString(comp.Country),
		Province:         amapString(comp.Province),
		City:             amapString(comp.City),
		District:         amapString(comp.District),
		Township:         amapString(comp.Township),
		Street:           amapString(comp.StreetNumber.Street),
		StreetNumber:     amapString(comp.StreetNumber.Number),
	}, nil
}
