package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/langchou/lxgazer/internal/api/lixiang"
	"github.com/langchou/lxgazer/internal/camera"
	"github.com/langchou/lxgazer/internal/config"
	"github.com/langchou/lxgazer/internal/coordinator"
	"github.com/langchou/lxgazer/internal/metrics"
	"github.com/langchou/lxgazer/internal/models"
	"github.com/langchou/lxgazer/internal/state"
)

// 刷新周期名称
const (
	CycleFast = "fast"
	CycleSlow = "slow"
)

// PhotoEveryMinutes 快速刷新中停车照片的拉取间隔（整分钟数）
const PhotoEveryMinutes = 5

// ErrNoFreshData 本轮刷新所有接口都没有返回数据
var ErrNoFreshData = errors.New("no fresh data")

// Vehicle 单车服务：持有 API 客户端、数据存储和两个刷新周期
type Vehicle struct {
	deps   Deps
	logger *zap.Logger
	clock  clock.Clock

	mu  sync.RWMutex
	cfg config.CarConfig

	client  *lixiang.Client
	store   *state.Store
	machine *state.Machine
	fast    *coordinator.Coordinator
	slow    *coordinator.Coordinator
	tracker *Tracker
	camera  *camera.Merger
}

// NewVehicle 创建单车服务
func NewVehicle(cfg config.CarConfig, deps Deps) *Vehicle {
	deps = deps.withDefaults()
	logger := deps.Logger.With(zap.String("vin", cfg.VIN))

	v := &Vehicle{
		deps:   deps,
		logger: logger,
		clock:  deps.Clock,
		cfg:    cfg,
		client: lixiang.NewClient(deps.BaseURL, cfg.VIN, cfg.Credentials, logger),
		store:  state.NewStore(),
		camera: camera.NewMerger(logger),
	}
	v.machine = state.NewMachine(cfg.VIN, v.onLinkChange)
	v.fast = coordinator.New(CycleFast, cfg.Interval(), v.updateFast, logger, coordinator.WithClock(deps.Clock))
	v.slow = coordinator.New(CycleSlow, deps.EnergyInterval, v.updateSlow, logger, coordinator.WithClock(deps.Clock))
	v.tracker = newTracker(v, relaysFor(cfg))
	v.fast.AddListener("tracker", v.tracker.Update)
	return v
}

// VIN 车架号
func (v *Vehicle) VIN() string {
	return v.cfg.VIN
}

// Config 当前配置
func (v *Vehicle) Config() config.CarConfig {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cfg
}

// Name 显示名称：配置名称 > 车牌号 > "LiXiang"
func (v *Vehicle) Name() string {
	if name := v.Config().Name; name != "" {
		return name
	}
	if plate, ok := v.store.Info("plateNumber").(string); ok && plate != "" {
		return plate
	}
	return "LiXiang"
}

// Client API 客户端
func (v *Vehicle) Client() *lixiang.Client {
	return v.client
}

// Store 数据存储
func (v *Vehicle) Store() *state.Store {
	return v.store
}

// Machine 链路状态机
func (v *Vehicle) Machine() *state.Machine {
	return v.machine
}

// Fast 快速刷新周期
func (v *Vehicle) Fast() *coordinator.Coordinator {
	return v.fast
}

// Slow 慢速刷新周期（月度能耗）
func (v *Vehicle) Slow() *coordinator.Coordinator {
	return v.slow
}

// Tracker 定位跟踪
func (v *Vehicle) Tracker() *Tracker {
	return v.tracker
}

// Camera 停车照片拼图
func (v *Vehicle) Camera() *camera.Merger {
	return v.camera
}

// Ready 首次刷新是否完成
func (v *Vehicle) Ready() bool {
	return v.machine.Ready()
}

// fetch 拉取一个数据域，失败、错误码或空结果都保留上一次的数据
func (v *Vehicle) fetch(ctx context.Context, d state.Domain, get func(context.Context) (state.Payload, bool)) bool {
	p, ok := get(ctx)
	if !ok {
		v.logger.Debug("Keep previous payload", zap.String("domain", string(d)))
		return false
	}
	v.store.Replace(d, p)
	return true
}

// UpdateInfo 拉取车辆静态信息并写入车辆档案
func (v *Vehicle) UpdateInfo(ctx context.Context) bool {
	if !v.fetch(ctx, state.DomainInfo, v.client.VehicleInfo) {
		return false
	}
	v.saveCar(ctx)
	return true
}

// UpdatePhotos 拉取停车照片，照片列表为空时保留上一次的数据
func (v *Vehicle) UpdatePhotos(ctx context.Context) bool {
	p, ok := v.client.ParkingPhotos(ctx)
	if !ok {
		return false
	}
	if pics, ok := p["pictures"].([]any); !ok || len(pics) == 0 {
		return false
	}
	v.store.Replace(state.DomainPhotos, p)
	return true
}

// updateFast 快速周期：实时状态 → 里程 → 胎压 → 每 5 分钟拉一次照片
func (v *Vehicle) updateFast(ctx context.Context) error {
	start := v.clock.Now()
	defer v.observe(CycleFast, start)

	ok := v.fetch(ctx, state.DomainStatus, v.client.RealtimeState)
	ok = v.fetch(ctx, state.DomainMileage, v.client.Mileage) || ok
	ok = v.fetch(ctx, state.DomainTire, v.client.TireAlarm) || ok

	if v.clock.Now().Minute()%PhotoEveryMinutes == 0 {
		v.UpdatePhotos(ctx)
	}

	if b := v.store.Battery(); b != nil {
		metrics.Battery.WithLabelValues(v.VIN()).Set(*b)
	}
	if v.machine.Ready() {
		v.machine.Observe(ok)
	}
	if !ok {
		return ErrNoFreshData
	}
	return nil
}

// updateSlow 慢速周期：当月能耗
func (v *Vehicle) updateSlow(ctx context.Context) error {
	start := v.clock.Now()
	defer v.observe(CycleSlow, start)

	now := v.clock.Now()
	monthly := func(ctx context.Context) (state.Payload, bool) {
		return v.client.MonthlyEnergy(ctx, now.Year(), int(now.Month()))
	}
	if !v.fetch(ctx, state.DomainEnergy, monthly) {
		return ErrNoFreshData
	}
	return nil
}

func (v *Vehicle) observe(cycle string, start time.Time) {
	metrics.RefreshDuration.WithLabelValues(v.VIN(), cycle).Observe(v.clock.Since(start).Seconds())
	metrics.LastRefresh.WithLabelValues(v.VIN(), cycle).Set(float64(v.clock.Now().Unix()))
}

// FirstRefresh 首次刷新：车辆信息（未缓存时）→ 两个周期各一次 → 停车照片 → 标记就绪
// 单个接口失败不会中断流程
func (v *Vehicle) FirstRefresh(ctx context.Context) error {
	if !v.store.Has(state.DomainInfo) {
		v.UpdateInfo(ctx)
	}

	fastErr := v.fast.FirstRefresh(ctx)
	if err := v.slow.FirstRefresh(ctx); err != nil {
		v.logger.Warn("Monthly energy unavailable", zap.Error(err))
	}
	v.UpdatePhotos(ctx)

	if err := v.machine.Trigger(state.EventReady); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	if fastErr != nil {
		v.machine.Observe(false)
	}

	v.logger.Info("Vehicle ready",
		zap.String("name", v.Name()),
		zap.String("model", v.store.ModelDesc()),
		zap.String("link", v.machine.CurrentState()))
	return fastErr
}

// Run 启动两个刷新周期，直到 ctx 取消
func (v *Vehicle) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range []*coordinator.Coordinator{v.fast, v.slow} {
		wg.Add(1)
		go func(c *coordinator.Coordinator) {
			defer wg.Done()
			c.Run(ctx)
		}(c)
	}
	wg.Wait()
}

// SetCredentials 替换凭据
func (v *Vehicle) SetCredentials(creds lixiang.Credentials) {
	v.mu.Lock()
	v.cfg.Credentials = creds
	v.mu.Unlock()
	v.client.SetCredentials(creds)
}

// Summary 车辆概要（推送和列表使用）
func (v *Vehicle) Summary() map[string]any {
	s := v.store
	loc, hasLoc := s.Location()
	var location any
	if hasLoc {
		location = loc
	}
	return map[string]any{
		"vin":         v.VIN(),
		"name":        v.Name(),
		"model":       s.ModelDesc(),
		"link":        v.machine.CurrentState(),
		"status":      s.OnlineStatus(),
		"battery":     state.Value(s.Battery()),
		"fuel_level":  state.Value(s.FuelLevel()),
		"endurance":   state.Value(s.Endurance()),
		"mileage":     state.Value(s.Mileage()),
		"charging":    s.Charging(),
		"door_locked": s.DoorLocked(),
		"location":    location,
		"updated_at":  s.UpdatedAt(state.DomainStatus),
	}
}

func (v *Vehicle) saveCar(ctx context.Context) {
	if v.deps.Cars == nil {
		return
	}
	plate, _ := v.store.Info("plateNumber").(string)
	car := &models.Car{
		VIN:             v.VIN(),
		Name:            v.Name(),
		Model:           v.store.ModelDesc(),
		Manufacturer:    v.store.Manufacturer(),
		PlateNumber:     plate,
		Picture:         v.store.Picture(),
		SoftwareVersion: v.store.SoftwareVersion(),
	}
	if err := v.deps.Cars.Upsert(ctx, car); err != nil {
		v.logger.Error("Failed to upsert car", zap.Error(err))
	}
}

func (v *Vehicle) onLinkChange(vin, from, to string) {
	v.logger.Info("Link state changed", zap.String("from", from), zap.String("to", to))
	if v.deps.Notifier != nil {
		v.deps.Notifier.BroadcastMessage(MsgTypeLinkChanged, map[string]any{
			"vin":  vin,
			"from": from,
			"to":   to,
		})
	}
}
