package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// UpdateFunc 一次刷新要做的工作
type UpdateFunc func(ctx context.Context) error

// Listener 刷新完成后的回调，ctx 与本次刷新相同
type Listener func(ctx context.Context)

type listenerEntry struct {
	key string
	fn  Listener
}

// Coordinator 周期刷新调度器
// 每个周期调用一次 update，然后按注册顺序同步通知所有监听者
type Coordinator struct {
	name     string
	interval time.Duration
	update   UpdateFunc
	clock    clock.Clock
	logger   *zap.Logger

	mu         sync.Mutex
	listeners  []listenerEntry
	lastUpdate time.Time
	lastErr    error

	// 同一调度器的刷新串行执行（定时刷新与手动刷新可能同时触发）
	refreshMu sync.Mutex
}

// Option 调度器选项
type Option func(*Coordinator)

// WithClock 注入时钟（测试用）
func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) {
		co.clock = c
	}
}

// New 创建调度器
func New(name string, interval time.Duration, update UpdateFunc, logger *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		name:     name,
		interval: interval,
		update:   update,
		clock:    clock.New(),
		logger:   logger.With(zap.String("coordinator", name)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name 调度器名称
func (c *Coordinator) Name() string {
	return c.name
}

// Interval 刷新间隔
func (c *Coordinator) Interval() time.Duration {
	return c.interval
}

// AddListener 注册监听者，同一个 key 重复注册会替换旧的回调
// 返回的函数用于注销
func (c *Coordinator) AddListener(key string, fn Listener) (remove func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	replaced := false
	for i := range c.listeners {
		if c.listeners[i].key == key {
			c.listeners[i].fn = fn
			replaced = true
			break
		}
	}
	if !replaced {
		c.listeners = append(c.listeners, listenerEntry{key: key, fn: fn})
	}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i := range c.listeners {
			if c.listeners[i].key == key {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Refresh 立即执行一次刷新并通知监听者
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	start := c.clock.Now()
	err := c.update(ctx)

	c.mu.Lock()
	c.lastErr = err
	if err == nil {
		c.lastUpdate = c.clock.Now()
	}
	listeners := make([]listenerEntry, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("Refresh failed", zap.Error(err))
	} else {
		c.logger.Debug("Refresh finished", zap.Duration("took", c.clock.Since(start)))
	}

	for _, l := range listeners {
		l.fn(ctx)
	}
	return err
}

// FirstRefresh 首次刷新，失败时返回错误供调用方决定是否继续
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("first refresh %s: %w", c.name, err)
	}
	return nil
}

// Run 按间隔循环刷新，直到 ctx 取消
func (c *Coordinator) Run(ctx context.Context) {
	ticker := c.clock.Ticker(c.interval)
	defer ticker.Stop()

	c.logger.Info("Coordinator started", zap.Duration("interval", c.interval))
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Coordinator stopped")
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}

// LastUpdate 最近一次成功刷新的时间
func (c *Coordinator) LastUpdate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdate
}

// LastError 最近一次刷新的错误
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
