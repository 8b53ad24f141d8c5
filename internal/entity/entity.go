package entity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/langchou/lxgazer/internal/service"
	"github.com/langchou/lxgazer/internal/state"
)

// Domain 实体 ID 前缀
const Domain = "lixiang"

// Kind 实体类型
type Kind string

const (
	KindSensor        Kind = "sensor"
	KindBinarySensor  Kind = "binary_sensor"
	KindSwitch        Kind = "switch"
	KindButton        Kind = "button"
	KindClimate       Kind = "climate"
	KindCamera        Kind = "camera"
	KindDeviceTracker Kind = "device_tracker"
)

// Kinds 所有实体类型
var Kinds = []Kind{
	KindSensor, KindBinarySensor, KindSwitch, KindButton, KindClimate, KindCamera, KindDeviceTracker,
}

// 实体动作
const (
	ActionTurnOn         = "turn_on"
	ActionTurnOff        = "turn_off"
	ActionPress          = "press"
	ActionSetTemperature = "set_temperature"
	ActionSetHVACMode    = "set_hvac_mode"
)

var (
	ErrUnknownEntity     = errors.New("unknown entity")
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrInvalidValue      = errors.New("invalid value")
)

// Action 执行一个实体动作，返回指令是否被车辆接受
type Action func(ctx context.Context, value any) (bool, error)

// Descriptor 实体描述
type Descriptor struct {
	Key         string
	Kind        Kind
	Name        string
	EntityID    string
	UniqueID    string
	Icon        string
	Unit        string
	DeviceClass string
	StateClass  string
	Picture     func() string
	State       func() any
	Attrs       func() map[string]any
	Actions     map[string]Action

	available func() bool
}

// View 实体的一次状态快照
type View struct {
	Key         string         `json:"key"`
	Kind        Kind           `json:"kind"`
	Name        string         `json:"name"`
	EntityID    string         `json:"entity_id"`
	UniqueID    string         `json:"unique_id"`
	Icon        string         `json:"icon,omitempty"`
	Unit        string         `json:"unit,omitempty"`
	DeviceClass string         `json:"device_class,omitempty"`
	StateClass  string         `json:"state_class,omitempty"`
	Picture     string         `json:"entity_picture,omitempty"`
	State       any            `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	Actions     []string       `json:"actions,omitempty"`
	Available   bool           `json:"available"`
}

// Available 车辆链路在线时可用
func (d *Descriptor) Available() bool {
	if d.available == nil {
		return true
	}
	return d.available()
}

// ActionNames 支持的动作（排序）
func (d *Descriptor) ActionNames() []string {
	if len(d.Actions) == 0 {
		return nil
	}
	names := make([]string, 0, len(d.Actions))
	for k := range d.Actions {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// View 读取当前状态
func (d *Descriptor) View() View {
	v := View{
		Key:         d.Key,
		Kind:        d.Kind,
		Name:        d.Name,
		EntityID:    d.EntityID,
		UniqueID:    d.UniqueID,
		Icon:        d.Icon,
		Unit:        d.Unit,
		DeviceClass: d.DeviceClass,
		StateClass:  d.StateClass,
		Actions:     d.ActionNames(),
		Available:   d.Available(),
		Attributes:  map[string]any{},
	}
	if d.Picture != nil {
		v.Picture = d.Picture()
	}
	if d.State != nil {
		v.State = d.State()
	}
	if d.Attrs != nil {
		if a := d.Attrs(); a != nil {
			v.Attributes = a
		}
	}
	return v
}

// Do 执行动作
func (d *Descriptor) Do(ctx context.Context, action string, value any) (bool, error) {
	fn, ok := d.Actions[action]
	if !ok {
		return false, fmt.Errorf("%s %s: %w", d.Key, action, ErrUnsupportedAction)
	}
	return fn(ctx, value)
}

// DeviceInfo 实体所属设备
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// Registry 单车实体集合，按配置顺序保存
type Registry struct {
	vehicle *service.Vehicle
	list    []*Descriptor
	byKey   map[string]*Descriptor
}

// Build 根据车辆当前信息创建全部实体
func Build(v *service.Vehicle) *Registry {
	r := &Registry{
		vehicle: v,
		byKey:   make(map[string]*Descriptor),
	}
	for _, d := range descriptors(v) {
		r.add(v, d)
	}
	return r
}

func (r *Registry) add(v *service.Vehicle, d *Descriptor) {
	d.Name = fmt.Sprintf("%s %s", v.Name(), d.Key)
	d.EntityID = EntityID(v.VIN(), d.Key)
	d.UniqueID = UniqueID(v.VIN(), d.Key)
	d.available = r.Available
	r.list = append(r.list, d)
	r.byKey[d.Key] = d
}

// VIN 车架号
func (r *Registry) VIN() string {
	return r.vehicle.VIN()
}

// Vehicle 实体所属车辆
func (r *Registry) Vehicle() *service.Vehicle {
	return r.vehicle
}

// Available 车辆链路在线时实体可用
func (r *Registry) Available() bool {
	return r.vehicle.Machine().CurrentState() == state.LinkOnline
}

// List 所有实体
func (r *Registry) List() []*Descriptor {
	out := make([]*Descriptor, len(r.list))
	copy(out, r.list)
	return out
}

// ByKind 指定类型的实体
func (r *Registry) ByKind(k Kind) []*Descriptor {
	var out []*Descriptor
	for _, d := range r.list {
		if d.Kind == k {
			out = append(out, d)
		}
	}
	return out
}

// Get 按 key 查找实体
func (r *Registry) Get(key string) (*Descriptor, error) {
	d, ok := r.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrUnknownEntity)
	}
	return d, nil
}

// Views 全部实体的状态快照
func (r *Registry) Views() []View {
	out := make([]View, 0, len(r.list))
	for _, d := range r.list {
		out = append(out, d.View())
	}
	return out
}

// Do 对指定实体执行动作
func (r *Registry) Do(ctx context.Context, key, action string, value any) (bool, error) {
	d, err := r.Get(key)
	if err != nil {
		return false, err
	}
	return d.Do(ctx, action, value)
}

// Device 设备信息
func (r *Registry) Device() DeviceInfo {
	v := r.vehicle
	s := v.Store()
	return DeviceInfo{
		Identifiers:  []string{v.VIN()},
		Name:         v.Name(),
		Model:        s.ModelDesc(),
		Manufacturer: s.Manufacturer(),
		SWVersion:    s.SoftwareVersion(),
	}
}

// VINSort VIN 前 6 位和后 6 位
func VINSort(vin string) string {
	head, tail := vin, vin
	if len(vin) > 6 {
		head = vin[:6]
		tail = vin[len(vin)-6:]
	}
	return head + "_" + tail
}

// EntityID 形如 lixiang.LW433B_000001_battery
func EntityID(vin, key string) string {
	return fmt.Sprintf("%s.%s_%s", Domain, VINSort(vin), key)
}

// UniqueID 形如 {vin}-battery
func UniqueID(vin, key string) string {
	return vin + "-" + key
}
