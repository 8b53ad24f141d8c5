package models

import "time"

// Car 车辆档案（来自车辆信息接口）
type Car struct {
	ID              int64     `json:"id" db:"id"`
	VIN             string    `json:"vin" db:"vin"`
	Name            string    `json:"name" db:"name"`
	Model           string    `json:"model" db:"model"`
	Manufacturer    string    `json:"manufacturer" db:"manufacturer"`
	PlateNumber     string    `json:"plate_number" db:"plate_number"`
	Picture         string    `json:"picture" db:"picture"`
	SoftwareVersion string    `json:"software_version" db:"software_version"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Position 位置记录（定位时间变化时写入）
type Position struct {
	ID           int64     `json:"id" db:"id"`
	VIN          string    `json:"vin" db:"vin"`
	Latitude     float64   `json:"latitude" db:"latitude"`
	Longitude    float64   `json:"longitude" db:"longitude"`
	Altitude     *float64  `json:"altitude,omitempty" db:"altitude"`
	Heading      *float64  `json:"heading,omitempty" db:"heading"`
	Speed        *float64  `json:"speed,omitempty" db:"speed"` // km/h，由相邻两次定位估算
	BatteryLevel *float64  `json:"battery_level,omitempty" db:"battery_level"`
	Mileage      *float64  `json:"mileage,omitempty" db:"mileage"`
	Address      *Address  `json:"address,omitempty" db:"address"`
	RecordedAt   time.Time `json:"recorded_at" db:"recorded_at"`
}

// CommandLog 远程控制记录
type CommandLog struct {
	ID        int64          `json:"id" db:"id"`
	VIN       string         `json:"vin" db:"vin"`
	Command   string         `json:"command" db:"command"`
	Params    map[string]any `json:"params" db:"params"`
	Response  map[string]any `json:"response" db:"response"`
	Success   bool           `json:"success" db:"success"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
