package service

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/langchou/lxgazer/internal/models"
)

// 推送消息类型
const (
	MsgTypeStateUpdate     = "state_update"
	MsgTypeLocationChanged = "location_changed"
	MsgTypeLinkChanged     = "link_changed"
)

// CarStore 车辆档案存储
type CarStore interface {
	Upsert(ctx context.Context, car *models.Car) error
}

// PositionStore 位置历史存储
type PositionStore interface {
	Create(ctx context.Context, pos *models.Position) error
}

// CommandStore 远程控制记录存储
type CommandStore interface {
	Create(ctx context.Context, log *models.CommandLog) error
}

// Geocoder 逆地理编码
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (*models.Address, error)
}

// Notifier 实时推送（WebSocket）
type Notifier interface {
	BroadcastMessage(msgType string, data any)
}

// Deps 车辆服务的依赖，除 Logger 外都可以为空
type Deps struct {
	Logger         *zap.Logger
	Clock          clock.Clock
	BaseURL        string
	EnergyInterval time.Duration
	CarsFile       string

	Cars      CarStore
	Positions PositionStore
	Commands  CommandStore
	Geocoder  Geocoder
	Notifier  Notifier
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.EnergyInterval <= 0 {
		d.EnergyInterval = time.Hour
	}
	return d
}
