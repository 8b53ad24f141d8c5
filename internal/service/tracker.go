package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/lxgazer/internal/config"
	"github.com/langchou/lxgazer/internal/models"
	"github.com/langchou/lxgazer/internal/relay"
	"github.com/langchou/lxgazer/internal/state"
)

// Tracker 定位跟踪
// 定位时间前进时：估算速度 → 逆地理编码 → 转发到 Traccar/鹰眼 → 记录位置 → 推送 location_changed
type Tracker struct {
	v      *Vehicle
	relays []relay.Relay

	mu      sync.RWMutex
	has     bool
	prev    state.Point
	prevAt  time.Time
	speed   *float64
	address *models.Address
}

func newTracker(v *Vehicle, relays []relay.Relay) *Tracker {
	return &Tracker{v: v, relays: relays}
}

func relaysFor(cfg config.CarConfig) []relay.Relay {
	var relays []relay.Relay
	if cfg.Traccar.Host != "" {
		relays = append(relays, relay.NewTraccar(cfg.Traccar.Host, cfg.Traccar.DeviceID))
	}
	if cfg.Yingyan.AK != "" && cfg.Yingyan.ServiceID != "" {
		relays = append(relays, relay.NewYingyan(cfg.Yingyan.AK, cfg.Yingyan.ServiceID))
	}
	return relays
}

// Speed 最近一次估算的速度（km/h）
func (t *Tracker) Speed() *float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.speed
}

// Address 最近一次逆地理编码的地址
func (t *Tracker) Address() *models.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.address
}

// Attrs 定位附加属性（在 Store 的属性上追加速度和地址）
func (t *Tracker) Attrs() map[string]any {
	adt := t.v.store.LocationAttrs()
	if spd := t.Speed(); spd != nil {
		adt["speed"] = *spd
	}
	if addr := t.Address(); addr != nil {
		adt["address"] = addr.FormattedAddress
	}
	return adt
}

// Update 快速周期的监听者
func (t *Tracker) Update(ctx context.Context) {
	loc, ok := t.v.store.Location()
	if !ok || loc.Timestamp.IsZero() {
		return
	}

	t.mu.Lock()
	if t.has && !loc.Timestamp.After(t.prevAt) {
		t.mu.Unlock()
		return
	}
	var spd *float64
	if t.has {
		spd = state.SpeedEstimate(t.prev, t.prevAt, loc.Point, loc.Timestamp)
	}
	t.has = true
	t.prev = loc.Point
	t.prevAt = loc.Timestamp
	if spd != nil {
		t.speed = spd
	}
	t.mu.Unlock()

	logger := t.v.logger
	s := t.v.store
	fix := relay.Fix{
		VIN:        t.v.VIN(),
		Lat:        loc.Lat,
		Lon:        loc.Lon,
		Time:       loc.Timestamp,
		Altitude:   state.ToNumber(loc.Altitude),
		Heading:    state.ToNumber(loc.Direction),
		Speed:      spd,
		Battery:    s.Battery(),
		Fuel:       s.FuelLevel(),
		Mileage:    s.Mileage(),
		IndoorTemp: s.IndoorTemperature(),
	}

	var addr *models.Address
	if t.v.deps.Geocoder != nil {
		a, err := t.v.deps.Geocoder.ReverseGeocode(ctx, loc.Lat, loc.Lon)
		if err != nil {
			logger.Warn("Reverse geocode failed", zap.Error(err))
		} else {
			addr = a
			t.mu.Lock()
			t.address = a
			t.mu.Unlock()
		}
	}

	for _, r := range t.relays {
		if err := r.Send(ctx, fix); err != nil {
			logger.Warn("Relay location failed", zap.String("relay", r.Name()), zap.Error(err))
		}
	}

	if t.v.deps.Positions != nil {
		pos := &models.Position{
			VIN:          fix.VIN,
			Latitude:     fix.Lat,
			Longitude:    fix.Lon,
			Altitude:     fix.Altitude,
			Heading:      fix.Heading,
			Speed:        spd,
			BatteryLevel: fix.Battery,
			Mileage:      fix.Mileage,
			Address:      addr,
			RecordedAt:   fix.Time,
		}
		if err := t.v.deps.Positions.Create(ctx, pos); err != nil {
			logger.Error("Failed to record position", zap.Error(err))
		}
	}

	if t.v.deps.Notifier != nil {
		t.v.deps.Notifier.BroadcastMessage(MsgTypeLocationChanged, map[string]any{
			"vin":       fix.VIN,
			"latitude":  fix.Lat,
			"longitude": fix.Lon,
			"speed":     state.Value(spd),
			"address":   addr,
			"timestamp": fix.Time,
		})
	}
}
