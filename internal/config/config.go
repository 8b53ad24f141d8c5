package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/langchou/lxgazer/internal/api/lixiang"
)

// DefaultScanInterval 快速刷新默认间隔
const DefaultScanInterval = 60 * time.Second

var (
	ErrNoCars       = errors.New("no cars configured")
	ErrVINRequired  = errors.New("vin is required")
	ErrDuplicateVIN = errors.New("duplicate vin")
)

type Config struct {
	// Server
	ServerPort string
	Debug      bool

	// Database（为空时不记录历史）
	DatabaseURL string

	// 理想汽车 API
	LiXiangBaseURL string
	EnergyInterval time.Duration

	// 车辆列表
	CarsFile string
	Cars     []CarConfig

	// 逆地理编码
	AmapAPIKey string

	// MQTT（为空时不发布）
	MQTTBroker          string
	MQTTUsername        string
	MQTTPassword        string
	MQTTClientID        string
	MQTTDiscoveryPrefix string
	MQTTTopicPrefix     string
}

// CarConfig 单车配置
type CarConfig struct {
	VIN          string              `yaml:"vin" json:"vin"`
	Name         string              `yaml:"name,omitempty" json:"name,omitempty"`
	Credentials  lixiang.Credentials `yaml:",inline" json:"-"`
	ScanInterval time.Duration       `yaml:"scan_interval,omitempty" json:"scan_interval,omitempty"`
	Traccar      TraccarConfig       `yaml:"traccar,omitempty" json:"traccar"`
	Yingyan      YingyanConfig       `yaml:"baidu_yingyan,omitempty" json:"baidu_yingyan"`
}

// TraccarConfig Traccar OsmAnd 转发配置
type TraccarConfig struct {
	Host     string `yaml:"host,omitempty" json:"host,omitempty"`
	DeviceID string `yaml:"device_id,omitempty" json:"device_id,omitempty"`
}

// YingyanConfig 百度鹰眼转发配置
type YingyanConfig struct {
	AK        string `yaml:"ak,omitempty" json:"-"`
	ServiceID string `yaml:"service_id,omitempty" json:"service_id,omitempty"`
}

// Interval 快速刷新间隔，未配置时使用默认值
func (c CarConfig) Interval() time.Duration {
	if c.ScanInterval > 0 {
		return c.ScanInterval
	}
	return DefaultScanInterval
}

type carsFile struct {
	Cars []CarConfig `yaml:"cars"`
}

func Load() (*Config, error) {
	// 尝试加载 .env 文件（可选）
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:          getEnv("PORT", "4000"),
		Debug:               getEnvBool("DEBUG", false),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		LiXiangBaseURL:      getEnv("LIXIANG_BASE_URL", lixiang.DefaultBaseURL),
		EnergyInterval:      getEnvDuration("ENERGY_INTERVAL", time.Hour),
		CarsFile:            getEnv("CARS_FILE", "cars.yaml"),
		AmapAPIKey:          getEnv("AMAP_API_KEY", ""),
		MQTTBroker:          getEnv("MQTT_BROKER", ""),
		MQTTUsername:        getEnv("MQTT_USERNAME", ""),
		MQTTPassword:        getEnv("MQTT_PASSWORD", ""),
		MQTTClientID:        getEnv("MQTT_CLIENT_ID", "lxgazer"),
		MQTTDiscoveryPrefix: getEnv("MQTT_DISCOVERY_PREFIX", "homeassistant"),
		MQTTTopicPrefix:     getEnv("MQTT_TOPIC_PREFIX", "lxgazer"),
	}

	cars, err := LoadCars(cfg.CarsFile)
	switch {
	case err == nil:
		cfg.Cars = cars
	case errors.Is(err, os.ErrNotExist):
		// 没有车辆文件时使用单车环境变量
		if car, ok := carFromEnv(); ok {
			cfg.Cars = []CarConfig{car}
		}
	default:
		return nil, err
	}

	if err := Validate(cfg.Cars); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadCars 从 YAML 文件读取车辆列表
func LoadCars(path string) ([]CarConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cars file: %w", err)
	}

	var f carsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse cars file %s: %w", path, err)
	}
	return f.Cars, nil
}

// SaveCars 写回车辆列表（更新凭据后调用）
func SaveCars(path string, cars []CarConfig) error {
	data, err := yaml.Marshal(carsFile{Cars: cars})
	if err != nil {
		return fmt.Errorf("encode cars: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write cars file: %w", err)
	}
	return nil
}

// Validate 校验车辆列表：至少一辆车，VIN 必填且不重复
func Validate(cars []CarConfig) error {
	if len(cars) == 0 {
		return ErrNoCars
	}
	seen := make(map[string]bool, len(cars))
	for i, car := range cars {
		if car.VIN == "" {
			return fmt.Errorf("car #%d: %w", i+1, ErrVINRequired)
		}
		if seen[car.VIN] {
			return fmt.Errorf("car %s: %w", car.VIN, ErrDuplicateVIN)
		}
		seen[car.VIN] = true
	}
	return nil
}

func carFromEnv() (CarConfig, bool) {
	vin := getEnv("LIXIANG_VIN", "")
	if vin == "" {
		return CarConfig{}, false
	}
	return CarConfig{
		VIN:  vin,
		Name: getEnv("LIXIANG_NAME", ""),
		Credentials: lixiang.Credentials{
			APIKey:   getEnv("LIXIANG_API_KEY", ""),
			APISign:  getEnv("LIXIANG_API_SIGN", ""),
			APIToken: getEnv("LIXIANG_API_TOKEN", ""),
			DeviceID: getEnv("LIXIANG_DEVICE_ID", ""),
		},
		ScanInterval: getEnvDuration("LIXIANG_SCAN_INTERVAL", DefaultScanInterval),
		Traccar: TraccarConfig{
			Host:     getEnv("TRACCAR_HOST", ""),
			DeviceID: getEnv("TRACCAR_DEVICE_ID", ""),
		},
		Yingyan: YingyanConfig{
			AK:        getEnv("BAIDU_YINGYAN_AK", ""),
			ServiceID: getEnv("BAIDU_YINGYAN_SERVICE_ID", ""),
		},
	}, true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
		// 兼容纯数字（秒）
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultValue
}
