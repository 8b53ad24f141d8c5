package publish

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/langchou/lxgazer/internal/entity"
	"github.com/langchou/lxgazer/internal/state"
)

// MQTT 负载
const (
	PayloadOn        = "ON"
	PayloadOff       = "OFF"
	PayloadPress     = "PRESS"
	PayloadNone      = "None"
	PayloadOnline    = "online"
	PayloadOffline   = "offline"
	commandSegment   = "cmd"
	actionSet        = "set"
	actionPower      = "power"
	discoverySegment = "config"
)

// Topics 主题布局
//
//	{discovery}/{kind}/{vin}/{key}/config   HA 自动发现
//	{prefix}/status                         桥接在线状态（遗嘱）
//	{prefix}/{vin}/availability             车辆链路可用性
//	{prefix}/{vin}/{key}/state              实体状态
//	{prefix}/{vin}/{key}/attributes         实体属性（JSON）
//	{prefix}/{vin}/{key}/image              停车照片拼图
//	{prefix}/{vin}/{key}/cmd/{action}       实体命令
type Topics struct {
	DiscoveryPrefix string
	Prefix          string
}

func (t Topics) Config(kind entity.Kind, vin, key string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", t.DiscoveryPrefix, kind, vin, key, discoverySegment)
}

func (t Topics) Status() string {
	return t.Prefix + "/status"
}

func (t Topics) Availability(vin string) string {
	return fmt.Sprintf("%s/%s/availability", t.Prefix, vin)
}

func (t Topics) State(vin, key string) string {
	return fmt.Sprintf("%s/%s/%s/state", t.Prefix, vin, key)
}

func (t Topics) Attributes(vin, key string) string {
	return fmt.Sprintf("%s/%s/%s/attributes", t.Prefix, vin, key)
}

func (t Topics) Image(vin, key string) string {
	return fmt.Sprintf("%s/%s/%s/image", t.Prefix, vin, key)
}

func (t Topics) Command(vin, key, action string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", t.Prefix, vin, key, commandSegment, action)
}

// CommandFilter 订阅所有实体命令
func (t Topics) CommandFilter() string {
	return fmt.Sprintf("%s/+/+/%s/+", t.Prefix, commandSegment)
}

// ParseCommand 解析命令主题，返回 VIN、实体 key 和动作
func (t Topics) ParseCommand(topic string) (vin, key, action string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/")
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[2] != commandSegment {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[3], true
}

// Message 待发布的一条消息
type Message struct {
	Topic   string
	Payload []byte
	Retain  bool
}

// Discovery 单个实体的 HA 发现配置
func (t Topics) Discovery(r *entity.Registry, d *entity.Descriptor) map[string]any {
	vin := r.VIN()
	dev := r.Device()
	cfg := map[string]any{
		"name":      d.Name,
		"unique_id": d.UniqueID,
		"object_id": entity.VINSort(vin) + "_" + d.Key,
		"device": map[string]any{
			"identifiers":  dev.Identifiers,
			"name":         dev.Name,
			"model":        dev.Model,
			"manufacturer": dev.Manufacturer,
			"sw_version":   dev.SWVersion,
		},
		"availability": []map[string]any{
			{"topic": t.Status()},
			{"topic": t.Availability(vin)},
		},
		"availability_mode": "all",
	}
	setIf(cfg, "icon", d.Icon)
	setIf(cfg, "unit_of_measurement", d.Unit)
	setIf(cfg, "device_class", d.DeviceClass)
	setIf(cfg, "state_class", d.StateClass)

	stateTopic := t.State(vin, d.Key)
	attrTopic := t.Attributes(vin, d.Key)

	switch d.Kind {
	case entity.KindSensor, entity.KindBinarySensor:
		cfg["state_topic"] = stateTopic
		cfg["json_attributes_topic"] = attrTopic
	case entity.KindSwitch:
		cfg["state_topic"] = stateTopic
		cfg["json_attributes_topic"] = attrTopic
		cfg["command_topic"] = t.Command(vin, d.Key, actionSet)
		cfg["payload_on"] = PayloadOn
		cfg["payload_off"] = PayloadOff
	case entity.KindButton:
		cfg["command_topic"] = t.Command(vin, d.Key, entity.ActionPress)
		cfg["payload_press"] = PayloadPress
	case entity.KindClimate:
		delete(cfg, "unit_of_measurement")
		cfg["temperature_unit"] = "C"
		cfg["json_attributes_topic"] = attrTopic
		cfg["mode_state_topic"] = stateTopic
		cfg["mode_command_topic"] = t.Command(vin, d.Key, entity.ActionSetHVACMode)
		cfg["modes"] = entity.HVACModes
		cfg["power_command_topic"] = t.Command(vin, d.Key, actionPower)
		cfg["temperature_command_topic"] = t.Command(vin, d.Key, entity.ActionSetTemperature)
		cfg["temperature_state_topic"] = attrTopic
		cfg["temperature_state_template"] = "{{ value_json.temperature }}"
		cfg["current_temperature_topic"] = attrTopic
		cfg["current_temperature_template"] = "{{ value_json.current_temperature }}"
		cfg["fan_mode_state_topic"] = attrTopic
		cfg["fan_mode_state_template"] = "{{ value_json.fan_mode }}"
		cfg["fan_modes"] = fanModes()
		if a := d.View().Attributes; a != nil {
			cfg["min_temp"] = a["min_temp"]
			cfg["max_temp"] = a["max_temp"]
			cfg["temp_step"] = a["target_temp_step"]
		}
	case entity.KindCamera:
		cfg["topic"] = t.Image(vin, d.Key)
		cfg["json_attributes_topic"] = attrTopic
	case entity.KindDeviceTracker:
		cfg["json_attributes_topic"] = attrTopic
		cfg["source_type"] = "gps"
	}
	return cfg
}

func fanModes() []string {
	out := make([]string, 0, len(entity.FanModes))
	for _, m := range entity.FanModes {
		out = append(out, strconv.Itoa(m))
	}
	return out
}

func setIf(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// DiscoveryMessages 车辆全部实体的发现配置
func (t Topics) DiscoveryMessages(r *entity.Registry) ([]Message, error) {
	out := make([]Message, 0, len(r.List()))
	for _, d := range r.List() {
		payload, err := json.Marshal(t.Discovery(r, d))
		if err != nil {
			return nil, fmt.Errorf("encode discovery %s: %w", d.Key, err)
		}
		out = append(out, Message{Topic: t.Config(d.Kind, r.VIN(), d.Key), Payload: payload, Retain: true})
	}
	return out, nil
}

// StateMessages 车辆可用性和全部实体的状态与属性
func (t Topics) StateMessages(r *entity.Registry) ([]Message, error) {
	vin := r.VIN()
	out := []Message{{Topic: t.Availability(vin), Payload: []byte(availability(r)), Retain: true}}
	for _, d := range r.List() {
		view := d.View()
		switch d.Kind {
		case entity.KindButton:
			continue
		case entity.KindSensor, entity.KindBinarySensor, entity.KindSwitch, entity.KindClimate:
			out = append(out, Message{Topic: t.State(vin, d.Key), Payload: []byte(FormatState(view.State)), Retain: true})
		}
		attrs := view.Attributes
		if attrs == nil {
			attrs = map[string]any{}
		}
		payload, err := json.Marshal(attrs)
		if err != nil {
			return nil, fmt.Errorf("encode attributes %s: %w", d.Key, err)
		}
		out = append(out, Message{Topic: t.Attributes(vin, d.Key), Payload: payload, Retain: true})
	}
	return out, nil
}

func availability(r *entity.Registry) string {
	return boolPayload(r.Available(), PayloadOnline, PayloadOffline)
}

func boolPayload(b bool, on, off string) string {
	if b {
		return on
	}
	return off
}

// FormatState 实体状态转为 MQTT 负载
func FormatState(v any) string {
	switch s := v.(type) {
	case nil:
		return PayloadNone
	case string:
		return s
	case bool:
		return boolPayload(s, PayloadOn, PayloadOff)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	}
	if f := state.ToNumber(v); f != nil {
		return strconv.FormatFloat(*f, 'f', -1, 64)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// ResolveCommand 命令主题中的动作和负载转换为实体动作和参数
func ResolveCommand(action string, payload []byte) (string, any) {
	value := strings.TrimSpace(string(payload))
	switch action {
	case actionSet, actionPower:
		if strings.EqualFold(value, PayloadOn) {
			return entity.ActionTurnOn, nil
		}
		return entity.ActionTurnOff, nil
	case entity.ActionPress:
		return entity.ActionPress, nil
	}
	if value == "" {
		return action, nil
	}
	return action, value
}
