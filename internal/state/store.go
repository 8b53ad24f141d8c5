package state

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Domain 接口数据域
type Domain string

const (
	DomainInfo    Domain = "info"
	DomainStatus  Domain = "status"
	DomainMileage Domain = "mileage"
	DomainTire    Domain = "tire"
	DomainEnergy  Domain = "energy"
	DomainPhotos  Domain = "photos"
)

// Domains 全部数据域
var Domains = []Domain{DomainInfo, DomainStatus, DomainMileage, DomainTire, DomainEnergy, DomainPhotos}

// Payload 单个接口返回的原始数据
type Payload = map[string]any

// 充电状态码
var chargeStates = map[float64]string{
	10: "disconnected",
	11: "connected",
	50: "charging",
	70: "full",
}

// 空调模式
const (
	HVACOff  = "off"
	HVACAuto = "auto"
	HVACCool = "cool"
	HVACHeat = "heat"
)

// Store 单车最新数据
// 每个数据域整体替换，不做原地修改；读者拿到的 Payload 不会再被改写
type Store struct {
	mu       sync.RWMutex
	payloads map[Domain]Payload
	updated  map[Domain]time.Time
}

// NewStore 创建数据存储
func NewStore() *Store {
	return &Store{
		payloads: make(map[Domain]Payload),
		updated:  make(map[Domain]time.Time),
	}
}

// Replace 整体替换某个数据域
func (s *Store) Replace(d Domain, p Payload) {
	if p == nil {
		p = Payload{}
	}
	s.mu.Lock()
	s.payloads[d] = p
	s.updated[d] = time.Now()
	s.mu.Unlock()
}

// Payload 获取数据域，未获取过时返回空对象
func (s *Store) Payload(d Domain) Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.payloads[d]; ok {
		return p
	}
	return Payload{}
}

// Has 数据域是否有数据
func (s *Store) Has(d Domain) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payloads[d]) > 0
}

// UpdatedAt 数据域最近更新时间
func (s *Store) UpdatedAt(d Domain) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated[d]
}

// Snapshot 所有数据域的快照
func (s *Store) Snapshot() map[Domain]Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Domain]Payload, len(s.payloads))
	for d, p := range s.payloads {
		out[d] = p
	}
	return out
}

// ============ 车辆信息 ============

// Info 读取车辆静态信息字段
func (s *Store) Info(key string) any {
	return s.Payload(DomainInfo)[key]
}

// ModelDesc 车型描述，如 "Li L9 Max"
func (s *Store) ModelDesc() string {
	series := asString(s.Info("carSeries"))
	if series == "" {
		series = "LiXiang"
	}
	return strings.TrimSpace(series + " " + asString(s.Info("variableModel")))
}

// Manufacturer 品牌
func (s *Store) Manufacturer() string {
	for _, k := range []string{"brandNo", "brand"} {
		if v := asString(s.Info(k)); v != "" {
			return v
		}
	}
	return "LiXiang"
}

// Picture 车辆主图
func (s *Store) Picture() string {
	return asString(s.Info("mainPictureUrl"))
}

// SoftwareVersion OTA 基线版本
func (s *Store) SoftwareVersion() string {
	return asString(obj(s.Payload(DomainStatus), "otaUpgradeInfo")["baseVersion"])
}

// ============ 在线状态 ============

// OnlineStatus 车辆在线状态（小写）
func (s *Store) OnlineStatus() string {
	vos := obj(s.Payload(DomainStatus), "vehOnlineStatus")
	sta := orEmpty(vos["deviceStatus"], nil)
	if sta == nil {
		sta = vos["status"]
	}
	return strings.ToLower(asString(sta))
}

// StatusAttrs 在线状态附加属性
func (s *Store) StatusAttrs() map[string]any {
	status := s.Payload(DomainStatus)
	info := s.Payload(DomainInfo)
	adt := copyMap(obj(status, "vehOnlineStatus"))
	for _, k := range []string{
		"vehicleNickname", "plateNumber", "seriesNo", "materialNumber", "carModel",
		"color", "interiorName", "wheelName", "deviceId", "electricPedal",
	} {
		adt[k] = info[k]
	}
	for _, k := range []string{
		"vehPowerMode", "remoteStartStatus", "caseCoverStatus", "keyInCarWarning",
		"forgetCloseDoorWarning", "vehRealtimeAlarm", "vehRealtimeMaint", "otaUpgradeInfo",
	} {
		if v, ok := status[k]; ok {
			adt[k] = v
		} else {
			adt[k] = map[string]any{}
		}
	}
	return adt
}

// ============ 充电与续航 ============

func (s *Store) chargeSetting() map[string]any {
	return obj(s.Payload(DomainStatus), "chargeSetting")
}

// Charging 充电状态：已知状态码映射为文本，未知状态码原样返回，缺失时返回 nil
func (s *Store) Charging() any {
	code := ToNumber(obj(s.chargeSetting(), "chargeStatus")["chargeStatus"])
	if code == nil {
		return nil
	}
	if label, ok := chargeStates[*code]; ok {
		return label
	}
	return *code
}

// ChargeAttrs 充电附加属性
func (s *Store) ChargeAttrs() map[string]any {
	cs := s.chargeSetting()
	adt := make(map[string]any)
	for k, v := range obj(cs, "chargeStatus") {
		adt[k] = Value(ToNumber(v))
	}
	adt["chargingFaults"] = orEmpty(cs["chargingFaults"], []any{})
	adt["chargingTarget"] = orEmpty(cs["chargingTarget"], map[string]any{})
	adt["batteryWarmSwitch"] = orEmpty(cs["batteryWarmSwitch"], map[string]any{})
	return adt
}

// EnduranceAttrs 续航附加属性
func (s *Store) EnduranceAttrs() map[string]any {
	return copyMap(obj(s.chargeSetting(), "enduranceStatus"))
}

// Battery 剩余电量（%）
func (s *Store) Battery() *float64 {
	return ToNumber(obj(s.chargeSetting(), "enduranceStatus")["residueBattery"])
}

// FuelLevel 剩余油量（%）
func (s *Store) FuelLevel() *float64 {
	return ToNumber(obj(s.chargeSetting(), "enduranceStatus")["residueFuel"])
}

// Endurance 综合续航（km），电续航或油续航未知时返回 nil
func (s *Store) Endurance() *float64 {
	es := obj(s.chargeSetting(), "enduranceStatus")
	batt := ToNumber(es["batteryEndurance"])
	fuel := ToNumber(es["fuelEndurance"])
	if batt == nil || fuel == nil {
		return nil
	}
	total := *batt + *fuel
	return &total
}

// ============ 车门与车窗 ============

func (s *Store) doors() map[string]any {
	return obj(s.Payload(DomainStatus), "doorSwitchStatus")
}

// DoorsOpenCount 打开的车门数量
func (s *Store) DoorsOpenCount() int {
	cnt := 0
	for _, v := range s.doors() {
		if d, ok := v.(map[string]any); ok && Truthy(d["isOpen"]) {
			cnt++
		}
	}
	return cnt
}

// DoorsOpenAttrs 各车门开关状态
func (s *Store) DoorsOpenAttrs() map[string]any {
	adt := make(map[string]any)
	for k, v := range s.doors() {
		d, _ := v.(map[string]any)
		adt[k] = map[string]any{
			"isOpen":     d["isOpen"],
			"actionTime": d["actionTime"],
		}
	}
	return adt
}

// DoorsUnlockedCount 未上锁的车门数量
func (s *Store) DoorsUnlockedCount() int {
	cnt := 0
	for _, v := range s.doors() {
		if d, ok := v.(map[string]any); ok && !Truthy(d["isLock"]) {
			cnt++
		}
	}
	return cnt
}

// DoorsUnlockedAttrs 各车门锁状态
func (s *Store) DoorsUnlockedAttrs() map[string]any {
	adt := make(map[string]any)
	for k, v := range s.doors() {
		d, _ := v.(map[string]any)
		adt[k] = map[string]any{
			"isLock":   d["isLock"],
			"lockTime": d["lockTime"],
		}
	}
	return adt
}

// DoorLocked 所有车门均已上锁
func (s *Store) DoorLocked() bool {
	return s.DoorsUnlockedCount() == 0
}

// WindowsOpenCount 打开的车窗数量
func (s *Store) WindowsOpenCount() int {
	cnt := 0
	for _, v := range obj(s.Payload(DomainStatus), "windowSwitchStatus") {
		if w, ok := v.(map[string]any); ok && Truthy(w["openStatus"]) {
			cnt++
		}
	}
	return cnt
}

// WindowsAttrs 车窗原始状态
func (s *Store) WindowsAttrs() map[string]any {
	return copyMap(obj(s.Payload(DomainStatus), "windowSwitchStatus"))
}

// ============ 温度与空调 ============

func (s *Store) temperature() map[string]any {
	return obj(s.Payload(DomainStatus), "temperatureStatus")
}

// IndoorTemperature 车内温度（℃）
func (s *Store) IndoorTemperature() *float64 {
	return ToNumber(s.temperature()["indoorTemperature"])
}

// OutdoorTemperature 车外温度（℃）
func (s *Store) OutdoorTemperature() *float64 {
	return ToNumber(s.temperature()["outdoorTemperature"])
}

// PM25 车内 PM2.5
func (s *Store) PM25() *float64 {
	return ToNumber(s.temperature()["airPollutionIndex"])
}

// ACStatus 空调原始状态
func (s *Store) ACStatus() map[string]any {
	return copyMap(obj(s.Payload(DomainStatus), "airConditioningStatus"))
}

// ACValue 读取空调状态字段的 value
func (s *Store) ACValue(key string) *float64 {
	return ToNumber(obj(s.Payload(DomainStatus), "airConditioningStatus", key)["value"])
}

// ACOn 空调是否开启
func (s *Store) ACOn() bool {
	v := s.ACValue("acOffStatus")
	return v != nil && *v != 0
}

// TargetTemperature 空调设定温度
func (s *Store) TargetTemperature() *float64 {
	return s.ACValue("acFLTempStatus")
}

// FanSpeed 空调风量
func (s *Store) FanSpeed() *float64 {
	return s.ACValue("acWindSpeed")
}

// HVACMode 空调模式，无法判断时返回空串
func (s *Store) HVACMode() string {
	switch {
	case Truthy(Value(s.ACValue("acAutoStatus"))):
		return HVACAuto
	case Truthy(Value(s.ACValue("acCoolReq"))):
		return HVACCool
	case Truthy(Value(s.ACValue("acHeatReq"))):
		return HVACHeat
	case !s.ACOn():
		return HVACOff
	}
	return ""
}

// WheelWarm 方向盘加热状态
func (s *Store) WheelWarm() float64 {
	return NumberOr(s.WheelWarmAttrs()["warmOnOff"], 0)
}

// WheelWarmAttrs 方向盘加热原始状态
func (s *Store) WheelWarmAttrs() map[string]any {
	return copyMap(obj(s.Payload(DomainStatus), "wheelWarmStatus"))
}

// ============ 位置 ============

// Location 车辆定位
type Location struct {
	Point
	Altitude  any       `json:"altitude"`
	Direction any       `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
}

// Location 当前定位，无有效经纬度时 ok 为 false
func (s *Store) Location() (loc Location, ok bool) {
	ls := obj(s.Payload(DomainStatus), "locationStatus")
	lat := ToNumber(ls["lat"])
	lon := ToNumber(ls["lon"])
	loc.Altitude = ls["alt"]
	loc.Direction = ls["dir"]
	if ct := ToNumber(ls["ct"]); ct != nil && *ct != 0 {
		loc.Timestamp = time.UnixMilli(int64(*ct))
	}
	if lat == nil || lon == nil {
		return loc, false
	}
	loc.Lat, loc.Lon = *lat, *lon
	return loc, true
}

// LocationAttrs 定位附加属性
func (s *Store) LocationAttrs() map[string]any {
	loc, _ := s.Location()
	var ts any
	if !loc.Timestamp.IsZero() {
		ts = loc.Timestamp
	}
	return map[string]any{
		"direction": loc.Direction,
		"altitude":  loc.Altitude,
		"timestamp": ts,
	}
}

// Gear 档位
func (s *Store) Gear() any {
	return obj(s.Payload(DomainStatus), "travelStatus")["gear"]
}

// ============ 胎压与里程 ============

// TireAlarmCount 胎压告警数量，字段缺失时为 0
func (s *Store) TireAlarmCount() *float64 {
	tire := s.Payload(DomainTire)
	v, ok := tire["alarmCount"]
	if !ok {
		zero := 0.0
		return &zero
	}
	return ToNumber(v)
}

// TireAttrs 胎压附加属性（展开 tireAlarmState）
func (s *Store) TireAttrs() map[string]any {
	tad := copyMap(s.Payload(DomainTire))
	nested, _ := tad["tireAlarmState"].(map[string]any)
	delete(tad, "tireAlarmState")
	for k, v := range nested {
		tad[k] = v
	}
	return tad
}

// Mileage 总里程（km）
func (s *Store) Mileage() *float64 {
	return ToNumber(s.Payload(DomainMileage)["totalMileage"])
}

// MileageAttrs 里程附加属性
func (s *Store) MileageAttrs() map[string]any {
	return copyMap(s.Payload(DomainMileage))
}

// ============ 月度能耗 ============

// MonthlyElec 本月电耗（kWh）
func (s *Store) MonthlyElec() *float64 {
	return ToNumber(s.Payload(DomainEnergy)["elecEnergy"])
}

// MonthlyElecAttrs 本月电耗附加属性
func (s *Store) MonthlyElecAttrs() map[string]any {
	e := s.Payload(DomainEnergy)
	return map[string]any{
		"travelMileage": e["travelMileage"],
		"elecMileage":   e["elecMileage"],
		"elecEnergy":    e["elecEnergy"],
		"avgElecEnergy": e["avgElecEnergy"],
		"dailyList":     dailyList(e),
	}
}

// MonthlyFuel 本月油耗（L）
func (s *Store) MonthlyFuel() *float64 {
	return ToNumber(s.Payload(DomainEnergy)["fuelConsumption"])
}

// MonthlyFuelAttrs 本月油耗附加属性
func (s *Store) MonthlyFuelAttrs() map[string]any {
	e := s.Payload(DomainEnergy)
	return map[string]any{
		"travelMileage":      e["travelMileage"],
		"hybridMileage":      e["hybridMileage"],
		"fuelConsumption":    e["fuelConsumption"],
		"avgFuelConsumption": e["avgFuelConsumption"],
		"dailyList":          dailyList(e),
	}
}

func dailyList(e Payload) any {
	if v, ok := e["dailyList"]; ok {
		return v
	}
	return []any{}
}

// ============ 停车照片 ============

// PhotoURLs 停车照片地址列表
func (s *Store) PhotoURLs() []string {
	pics, _ := s.Payload(DomainPhotos)["pictures"].([]any)
	urls := make([]string, 0, len(pics))
	for _, p := range pics {
		m, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if u := asString(m["photoUrl"]); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// PhotoTime 照片拍摄时间
func (s *Store) PhotoTime() time.Time {
	if ts := ToNumber(s.Payload(DomainPhotos)["picTimestamp"]); ts != nil && *ts != 0 {
		return time.UnixMilli(int64(*ts))
	}
	return time.Time{}
}

// PhotoAttrs 照片附加属性
func (s *Store) PhotoAttrs() map[string]any {
	adt := copyMap(s.Payload(DomainPhotos))
	if ts := s.PhotoTime(); !ts.IsZero() {
		adt["timestamp"] = ts
	} else {
		adt["timestamp"] = nil
	}
	return adt
}

// String 便于日志输出
func (s *Store) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("Store{domains=%d}", len(s.payloads))
}
