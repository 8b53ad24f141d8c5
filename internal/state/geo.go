package state

import (
	"math"
	"time"
)

// EarthRadiusKm 地球半径（公里）
const EarthRadiusKm = 6371.0

// MinSpeedInterval 速度估算的最小时间间隔，避免 GPS 抖动导致的异常值
const MinSpeedInterval = 2 * time.Second

// Point 经纬度坐标
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func hav(theta float64) float64 {
	s := math.Sin(theta / 2)
	return s * s
}

// Haversine 计算两点间的大圆距离（公里）
func Haversine(a, b Point) float64 {
	lat0 := a.Lat * math.Pi / 180
	lat1 := b.Lat * math.Pi / 180
	dLat := math.Abs(lat0 - lat1)
	dLon := math.Abs(a.Lon-b.Lon) * math.Pi / 180

	h := hav(dLat) + math.Cos(lat0)*math.Cos(lat1)*hav(dLon)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// SpeedEstimate 根据两次定位估算速度（km/h，保留两位小数）
// 间隔小于 2 秒时返回 nil
func SpeedEstimate(prev Point, prevAt time.Time, cur Point, curAt time.Time) *float64 {
	elapsed := curAt.Sub(prevAt)
	if elapsed < MinSpeedInterval {
		return nil
	}
	speed := Haversine(prev, cur) / elapsed.Hours()
	speed = math.Round(speed*100) / 100
	return &speed
}

// KmhToKnots 公里/小时转节
func KmhToKnots(kmh float64) float64 {
	return kmh * 0.539957
}
