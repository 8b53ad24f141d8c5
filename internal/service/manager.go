package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/langchou/lxgazer/internal/api/lixiang"
	"github.com/langchou/lxgazer/internal/config"
)

var (
	ErrVehicleNotFound    = errors.New("vehicle not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Update 一次刷新完成的通知
type Update struct {
	VIN   string `json:"vin"`
	Cycle string `json:"cycle"`
}

// Manager 管理所有车辆，每辆车独立刷新
type Manager struct {
	deps   Deps
	logger *zap.Logger

	mu          sync.RWMutex
	vehicles    map[string]*Vehicle
	order       []string
	subscribers []chan Update

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager 根据配置创建所有车辆
func NewManager(cars []config.CarConfig, deps Deps) *Manager {
	deps = deps.withDefaults()
	m := &Manager{
		deps:     deps,
		logger:   deps.Logger,
		vehicles: make(map[string]*Vehicle, len(cars)),
	}
	for _, car := range cars {
		v := NewVehicle(car, deps)
		v.Fast().AddListener("manager", func(ctx context.Context) { m.publish(v, CycleFast) })
		v.Slow().AddListener("manager", func(ctx context.Context) { m.publish(v, CycleSlow) })
		m.vehicles[car.VIN] = v
		m.order = append(m.order, car.VIN)
	}
	return m
}

// Start 并行完成所有车辆的首次刷新，然后启动刷新循环
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.logger.Info("Vehicle manager already running, skipping start")
		return nil
	}
	m.running = true
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info("Starting vehicle manager", zap.Int("vehicles", len(m.order)))

	g, gctx := errgroup.WithContext(runCtx)
	for _, v := range m.List() {
		v := v
		g.Go(func() error {
			// 首次刷新失败不影响其他车辆，下一个周期会重试；ctx 取消时中止启动
			if err := v.FirstRefresh(gctx); err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				v.logger.Warn("First refresh incomplete", zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cancel()
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
		return fmt.Errorf("first refresh: %w", err)
	}

	for _, v := range m.List() {
		m.wg.Add(1)
		go func(v *Vehicle) {
			defer m.wg.Done()
			v.Run(runCtx)
		}(v)
	}

	m.logger.Info("Vehicle manager started")
	return nil
}

// Stop 停止所有刷新循环
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	m.logger.Info("Stopping vehicle manager")
	cancel()
	m.wg.Wait()

	m.mu.Lock()
	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
	m.mu.Unlock()
	m.logger.Info("Vehicle manager stopped")
}

// Get 按 VIN 获取车辆
func (m *Manager) Get(vin string) (*Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[vin]
	if !ok {
		return nil, fmt.Errorf("%s: %w", vin, ErrVehicleNotFound)
	}
	return v, nil
}

// List 按配置顺序返回所有车辆
func (m *Manager) List() []*Vehicle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Vehicle, 0, len(m.order))
	for _, vin := range m.order {
		out = append(out, m.vehicles[vin])
	}
	return out
}

// Subscribe 订阅刷新完成通知，Stop 时关闭
func (m *Manager) Subscribe() <-chan Update {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Update, 16)
	m.subscribers = append(m.subscribers, ch)
	return ch
}

func (m *Manager) publish(v *Vehicle, cycle string) {
	u := Update{VIN: v.VIN(), Cycle: cycle}

	m.mu.RLock()
	for _, ch := range m.subscribers {
		select {
		case ch <- u:
		default:
			m.logger.Warn("Subscriber channel full, dropping update", zap.String("vin", u.VIN))
		}
	}
	m.mu.RUnlock()

	if m.deps.Notifier != nil {
		m.deps.Notifier.BroadcastMessage(MsgTypeStateUpdate, v.Summary())
	}
}

// UpdateCredentials 用实时状态接口验证新凭据，通过后替换并写回车辆文件
func (m *Manager) UpdateCredentials(ctx context.Context, vin string, creds lixiang.Credentials) error {
	v, err := m.Get(vin)
	if err != nil {
		return err
	}

	check := lixiang.NewClient(m.deps.BaseURL, vin, creds, v.logger)
	if _, ok := check.RealtimeState(ctx); !ok {
		return ErrInvalidCredentials
	}

	v.SetCredentials(creds)
	v.logger.Info("Credentials updated")

	if m.deps.CarsFile == "" {
		return nil
	}
	cars := make([]config.CarConfig, 0, len(m.order))
	for _, v := range m.List() {
		cars = append(cars, v.Config())
	}
	if err := config.SaveCars(m.deps.CarsFile, cars); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}
