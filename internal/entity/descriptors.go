package entity

import (
	"context"
	"fmt"

	"github.com/langchou/lxgazer/internal/service"
	"github.com/langchou/lxgazer/internal/state"
)

// HA 设备类型与单位
const (
	classBattery     = "battery"
	classTemperature = "temperature"
	classPM25        = "pm25"
	classEnergy      = "energy"

	stateMeasurement     = "measurement"
	stateTotal           = "total"
	stateTotalIncreasing = "total_increasing"

	unitKm      = "km"
	unitPercent = "%"
	unitCelsius = "°C"
	unitPM25    = "µg/m³"
	unitKWh     = "kWh"
	unitLiters  = "L"

	cameraIdle    = "idle"
	sourceTypeGPS = "gps"
)

// HVACModes 空调支持的模式
var HVACModes = []string{state.HVACOff, state.HVACAuto, state.HVACCool, state.HVACHeat}

// FanModes 空调风量档位（只读）
var FanModes = []int{1, 2, 3, 4, 5, 6, 7}

func number(f func() *float64) func() any {
	return func() any { return state.Value(f()) }
}

func descriptors(v *service.Vehicle) []*Descriptor {
	s := v.Store()
	var out []*Descriptor
	out = append(out, sensors(s)...)
	out = append(out, switches(v)...)
	out = append(out, buttons(v)...)
	out = append(out, climate(v), camera(v), tracker(v))
	return out
}

func sensors(s *state.Store) []*Descriptor {
	return []*Descriptor{
		{
			Key:     "status",
			Kind:    KindSensor,
			Icon:    "mdi:car",
			Picture: s.Picture,
			State:   func() any { return s.OnlineStatus() },
			Attrs:   s.StatusAttrs,
		},
		{
			Key:        "mileage",
			Kind:       KindSensor,
			Icon:       "mdi:gauge",
			Unit:       unitKm,
			StateClass: stateTotal,
			State:      number(s.Mileage),
			Attrs:      s.MileageAttrs,
		},
		{
			Key:        "endurance",
			Kind:       KindSensor,
			Icon:       "mdi:speedometer",
			Unit:       unitKm,
			StateClass: stateMeasurement,
			State:      number(s.Endurance),
			Attrs:      s.EnduranceAttrs,
		},
		{
			Key:   "charge",
			Kind:  KindSensor,
			Icon:  "mdi:ev-station",
			State: s.Charging,
			Attrs: s.ChargeAttrs,
		},
		{
			Key:         "battery",
			Kind:        KindSensor,
			DeviceClass: classBattery,
			Unit:        unitPercent,
			StateClass:  stateMeasurement,
			State:       number(s.Battery),
		},
		{
			Key:        "fuel_level",
			Kind:       KindSensor,
			Unit:       unitPercent,
			StateClass: stateMeasurement,
			State:      number(s.FuelLevel),
		},
		{
			Key:   "door_opened",
			Kind:  KindSensor,
			Icon:  "mdi:car-door",
			State: func() any { return s.DoorsOpenCount() },
			Attrs: s.DoorsOpenAttrs,
		},
		{
			Key:   "door_unlocked",
			Kind:  KindSensor,
			Icon:  "mdi:car-door-lock",
			State: func() any { return s.DoorsUnlockedCount() },
			Attrs: s.DoorsUnlockedAttrs,
		},
		{
			Key:   "window_opened",
			Kind:  KindSensor,
			Icon:  "mdi:dock-window",
			State: func() any { return s.WindowsOpenCount() },
			Attrs: s.WindowsAttrs,
		},
		{
			Key:         "indoor_temperature",
			Kind:        KindSensor,
			DeviceClass: classTemperature,
			Unit:        unitCelsius,
			StateClass:  stateMeasurement,
			State:       number(s.IndoorTemperature),
		},
		{
			Key:         "outdoor_temperature",
			Kind:        KindSensor,
			DeviceClass: classTemperature,
			Unit:        unitCelsius,
			StateClass:  stateMeasurement,
			State:       number(s.OutdoorTemperature),
		},
		{
			Key:         "pm25",
			Kind:        KindSensor,
			DeviceClass: classPM25,
			Unit:        unitPM25,
			StateClass:  stateMeasurement,
			State:       number(s.PM25),
		},
		{
			Key:   "gear",
			Kind:  KindSensor,
			Icon:  "mdi:cog",
			State: s.Gear,
		},
		{
			Key:   "tire_alarm",
			Kind:  KindSensor,
			Icon:  "mdi:tire",
			State: number(s.TireAlarmCount),
			Attrs: s.TireAttrs,
		},
		{
			Key:         "monthly_elec",
			Kind:        KindSensor,
			DeviceClass: classEnergy,
			Unit:        unitKWh,
			Icon:        "mdi:car-electric",
			StateClass:  stateTotalIncreasing,
			State:       number(s.MonthlyElec),
			Attrs:       s.MonthlyElecAttrs,
		},
		{
			Key:        "monthly_fuel",
			Kind:       KindSensor,
			Unit:       unitLiters,
			Icon:       "mdi:gas-station",
			StateClass: stateTotalIncreasing,
			State:      number(s.MonthlyFuel),
			Attrs:      s.MonthlyFuelAttrs,
		},
	}
}

func switches(v *service.Vehicle) []*Descriptor {
	s := v.Store()
	return []*Descriptor{
		{
			// 开关打开表示有车门未锁
			Key:   "door_lock",
			Kind:  KindSwitch,
			Icon:  "mdi:lock",
			State: func() any { return !s.DoorLocked() },
			Attrs: s.DoorsUnlockedAttrs,
			Actions: map[string]Action{
				ActionTurnOn:  command(v.Unlock),
				ActionTurnOff: command(v.Lock),
			},
		},
		{
			Key:   "wheel_warm",
			Kind:  KindSwitch,
			Icon:  "mdi:steering",
			State: func() any { return s.WheelWarm() != 0 },
			Attrs: s.WheelWarmAttrs,
			Actions: map[string]Action{
				ActionTurnOn:  command(v.WheelWarmOn),
				ActionTurnOff: command(v.WheelWarmOff),
			},
		},
	}
}

func buttons(v *service.Vehicle) []*Descriptor {
	return []*Descriptor{
		{
			Key:     "find",
			Kind:    KindButton,
			Icon:    "mdi:car-search",
			Actions: map[string]Action{ActionPress: command(v.RemoteSearch)},
		},
		{
			Key:     "take_photo",
			Kind:    KindButton,
			Icon:    "mdi:camera",
			Actions: map[string]Action{ActionPress: command(v.TakePhoto)},
		},
	}
}

func climate(v *service.Vehicle) *Descriptor {
	s := v.Store()
	return &Descriptor{
		Key:  "ac",
		Kind: KindClimate,
		Unit: unitCelsius,
		State: func() any {
			if m := s.HVACMode(); m != "" {
				return m
			}
			return nil
		},
		Attrs: func() map[string]any {
			adt := s.ACStatus()
			adt["hvac_modes"] = HVACModes
			adt["fan_modes"] = FanModes
			adt["fan_mode"] = state.Value(s.FanSpeed())
			adt["current_temperature"] = state.Value(s.IndoorTemperature())
			adt["temperature"] = state.Value(s.TargetTemperature())
			adt["min_temp"] = service.MinTemperature
			adt["max_temp"] = service.MaxTemperature
			adt["target_temp_step"] = service.TemperatureStep
			return adt
		},
		Actions: map[string]Action{
			ActionTurnOn:  command(v.ClimateOn),
			ActionTurnOff: command(v.ClimateOff),
			ActionSetTemperature: func(ctx context.Context, value any) (bool, error) {
				t := state.ToNumber(value)
				if t == nil || !service.ValidTemperature(*t) {
					return false, fmt.Errorf("temperature %v: %w", value, ErrInvalidValue)
				}
				return v.SetTemperature(ctx, *t), nil
			},
			ActionSetHVACMode: func(ctx context.Context, value any) (bool, error) {
				mode, _ := value.(string)
				for _, m := range HVACModes {
					if m == mode {
						return v.SetHVACMode(ctx, mode), nil
					}
				}
				return false, fmt.Errorf("hvac mode %v: %w", value, ErrInvalidValue)
			},
		},
	}
}

func camera(v *service.Vehicle) *Descriptor {
	s := v.Store()
	return &Descriptor{
		Key:  "photos",
		Kind: KindCamera,
		State: func() any {
			if len(s.PhotoURLs()) == 0 {
				return nil
			}
			return cameraIdle
		},
		Attrs: s.PhotoAttrs,
	}
}

// tracker 状态为逆地理编码地址，没有地址时为经纬度
func tracker(v *service.Vehicle) *Descriptor {
	s := v.Store()
	t := v.Tracker()
	return &Descriptor{
		Key:  "location",
		Kind: KindDeviceTracker,
		State: func() any {
			loc, ok := s.Location()
			if !ok {
				return nil
			}
			if addr := t.Address(); addr != nil && addr.FormattedAddress != "" {
				return addr.FormattedAddress
			}
			return fmt.Sprintf("%.6f,%.6f", loc.Lat, loc.Lon)
		},
		Attrs: func() map[string]any {
			adt := t.Attrs()
			adt["source_type"] = sourceTypeGPS
			if loc, ok := s.Location(); ok {
				adt["latitude"] = loc.Lat
				adt["longitude"] = loc.Lon
			}
			if b := s.Battery(); b != nil {
				adt["battery_level"] = int(*b)
			}
			return adt
		},
	}
}

func command(fn func(ctx context.Context) bool) Action {
	return func(ctx context.Context, _ any) (bool, error) {
		return fn(ctx), nil
	}
}
