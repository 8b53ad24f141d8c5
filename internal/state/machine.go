package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// 车辆链路状态常量
const (
	LinkPending     = "pending"
	LinkOnline      = "online"
	LinkUnreachable = "unreachable"
)

// 事件常量
const (
	EventReady   = "ready"
	EventLost    = "lost"
	EventRecover = "recover"
)

// LinkState 车辆链路状态
type LinkState struct {
	VIN          string    `json:"vin"`
	CurrentState string    `json:"state"`
	Since        time.Time `json:"since"`
	Failures     int       `json:"failures"`
}

// Machine 车辆链路状态机
// pending: 首次刷新未完成; online: 最近一次刷新至少一个接口有数据; unreachable: 最近一次刷新全部失败
type Machine struct {
	mu            sync.RWMutex
	vin           string
	fsm           *fsm.FSM
	state         *LinkState
	onStateChange func(vin, from, to string)
}

// NewMachine 创建状态机
func NewMachine(vin string, onStateChange func(vin, from, to string)) *Machine {
	m := &Machine{
		vin:           vin,
		onStateChange: onStateChange,
		state: &LinkState{
			VIN:          vin,
			CurrentState: LinkPending,
			Since:        time.Now(),
		},
	}

	m.fsm = fsm.NewFSM(
		LinkPending,
		fsm.Events{
			{Name: EventReady, Src: []string{LinkPending}, Dst: LinkOnline},
			{Name: EventLost, Src: []string{LinkOnline}, Dst: LinkUnreachable},
			{Name: EventRecover, Src: []string{LinkUnreachable}, Dst: LinkOnline},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(m.vin, e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// CurrentState 获取当前状态
func (m *Machine) CurrentState() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// Ready 首次刷新是否完成
func (m *Machine) Ready() bool {
	return m.CurrentState() != LinkPending
}

// GetState 获取完整状态（副本）
func (m *Machine) GetState() LinkState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := *m.state
	s.CurrentState = m.fsm.Current()
	return s
}

// Trigger 触发事件
func (m *Machine) Trigger(event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}

	m.state.CurrentState = m.fsm.Current()
	m.state.Since = time.Now()
	return nil
}

// Observe 根据一次刷新的结果推进状态
// ok 表示本轮至少一个接口返回了数据
func (m *Machine) Observe(ok bool) {
	m.mu.Lock()
	if ok {
		m.state.Failures = 0
	} else {
		m.state.Failures++
	}
	m.mu.Unlock()

	switch cur := m.CurrentState(); {
	case ok && cur == LinkUnreachable:
		_ = m.Trigger(EventRecover)
	case !ok && cur == LinkOnline:
		_ = m.Trigger(EventLost)
	}
}

// CanTransition 检查是否可以转换
func (m *Machine) CanTransition(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Can(event)
}
