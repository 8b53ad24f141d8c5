package relay

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// Fix 一次定位及其附带的车辆读数
// 指针字段为 nil 表示未知，转发时省略
type Fix struct {
	VIN        string
	Lat        float64
	Lon        float64
	Time       time.Time
	Altitude   *float64
	Heading    *float64
	Speed      *float64 // km/h
	Battery    *float64
	Fuel       *float64
	Mileage    *float64
	IndoorTemp *float64
}

// Relay 定位转发目标
type Relay interface {
	Name() string
	Send(ctx context.Context, fix Fix) error
}

var defaultHTTPClient = &http.Client{Timeout: 10 * time.Second}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func valueOr(f *float64, def float64) float64 {
	if f == nil {
		return def
	}
	return *f
}
