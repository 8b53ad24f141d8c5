package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) Payload {
	t.Helper()
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(s), &p))
	return p
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{"nil", nil, nil},
		{"sentinel number", float64(-2147483648), nil},
		{"sentinel string", "-2147483648", nil},
		{"sentinel padded", " -2147483648 ", nil},
		{"zero", float64(0), ptr(0)},
		{"zero string", "0", ptr(0)},
		{"decimal string", "12.5", ptr(12.5)},
		{"int", 42, ptr(42)},
		{"garbage", "abc", nil},
		{"bool", true, nil},
		{"map", map[string]any{}, nil},
		{"json number", json.Number("3"), ptr(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToNumber(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func ptr(f float64) *float64 { return &f }

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy("1"))
	assert.True(t, Truthy(float64(1)))
	assert.True(t, Truthy(true))
	assert.False(t, Truthy("0"))
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy("-2147483648"))
}

func TestChargingMapping(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Charging())

	for code, want := range map[string]any{
		"10": "disconnected",
		"11": "connected",
		"50": "charging",
		"70": "full",
		"99": float64(99),
	} {
		s.Replace(DomainStatus, decode(t, `{"chargeSetting":{"chargeStatus":{"chargeStatus":"`+code+`"}}}`))
		assert.Equal(t, want, s.Charging(), code)
	}

	s.Replace(DomainStatus, decode(t, `{"chargeSetting":{"chargeStatus":{"chargeStatus":-2147483648}}}`))
	assert.Nil(t, s.Charging())
}

func TestChargeAttrs(t *testing.T) {
	s := NewStore()
	s.Replace(DomainStatus, decode(t, `{"chargeSetting":{
		"chargeStatus":{"chargeStatus":"50","chargePower":"-2147483648","remainTime":30},
		"chargingFaults":[]
	}}`))

	adt := s.ChargeAttrs()
	assert.Equal(t, float64(50), adt["chargeStatus"])
	assert.Nil(t, adt["chargePower"])
	assert.Equal(t, float64(30), adt["remainTime"])
	assert.Equal(t, []any{}, adt["chargingFaults"])
	assert.Equal(t, map[string]any{}, adt["chargingTarget"])
}

func TestEndurance(t *testing.T) {
	s := NewStore()
	s.Replace(DomainStatus, decode(t, `{"chargeSetting":{"enduranceStatus":{
		"batteryEndurance":"180","fuelEndurance":"820","residueBattery":"76","residueFuel":-2147483648
	}}}`))

	require.NotNil(t, s.Endurance())
	assert.Equal(t, float64(1000), *s.Endurance())
	assert.Equal(t, float64(76), *s.Battery())
	assert.Nil(t, s.FuelLevel())

	s.Replace(DomainStatus, decode(t, `{"chargeSetting":{"enduranceStatus":{"batteryEndurance":"180"}}}`))
	assert.Nil(t, s.Endurance())
}

func TestDoorsAndWindows(t *testing.T) {
	s := NewStore()
	assert.Equal(t, 0, s.DoorsOpenCount())
	assert.True(t, s.DoorLocked())

	s.Replace(DomainStatus, decode(t, `{
		"doorSwitchStatus":{
			"fl":{"isOpen":"1","isLock":"0","actionTime":1},
			"fr":{"isOpen":"0","isLock":"1"},
			"rl":{"isOpen":"1","isLock":"1"}
		},
		"windowSwitchStatus":{"fl":{"openStatus":"1"},"fr":{"openStatus":"0"}}
	}`))

	assert.Equal(t, 2, s.DoorsOpenCount())
	assert.Equal(t, 1, s.DoorsUnlockedCount())
	assert.False(t, s.DoorLocked())
	assert.Equal(t, 1, s.WindowsOpenCount())
	assert.Equal(t, map[string]any{"isOpen": "1", "actionTime": float64(1)}, s.DoorsOpenAttrs()["fl"])
	assert.Equal(t, map[string]any{"isLock": "1", "lockTime": nil}, s.DoorsUnlockedAttrs()["fr"])
}

func TestHVACMode(t *testing.T) {
	s := NewStore()
	assert.Equal(t, HVACOff, s.HVACMode())

	s.Replace(DomainStatus, decode(t, `{"airConditioningStatus":{
		"acOffStatus":{"value":"1"},"acAutoStatus":{"value":"0"},"acCoolReq":{"value":"1"},
		"acFLTempStatus":{"value":"24.5"},"acWindSpeed":{"value":"3"}
	}}`))
	assert.Equal(t, HVACCool, s.HVACMode())
	assert.True(t, s.ACOn())
	assert.Equal(t, 24.5, *s.TargetTemperature())
	assert.Equal(t, float64(3), *s.FanSpeed())

	s.Replace(DomainStatus, decode(t, `{"airConditioningStatus":{"acOffStatus":{"value":"1"},"acAutoStatus":{"value":"1"}}}`))
	assert.Equal(t, HVACAuto, s.HVACMode())

	s.Replace(DomainStatus, decode(t, `{"airConditioningStatus":{"acOffStatus":{"value":"1"}}}`))
	assert.Equal(t, "", s.HVACMode())
}

func TestLocation(t *testing.T) {
	s := NewStore()
	_, ok := s.Location()
	assert.False(t, ok)
	assert.Nil(t, s.LocationAttrs()["timestamp"])

	s.Replace(DomainStatus, decode(t, `{"locationStatus":{"lat":"30.5","lon":"114.3","alt":"20","dir":"90","ct":1700000000000}}`))
	loc, ok := s.Location()
	require.True(t, ok)
	assert.Equal(t, 30.5, loc.Lat)
	assert.Equal(t, 114.3, loc.Lon)
	assert.Equal(t, time.UnixMilli(1700000000000), loc.Timestamp)
	assert.Equal(t, "90", s.LocationAttrs()["direction"])
}

func TestTireAttrsFlatten(t *testing.T) {
	s := NewStore()
	require.NotNil(t, s.TireAlarmCount())
	assert.Equal(t, float64(0), *s.TireAlarmCount())

	s.Replace(DomainTire, decode(t, `{"alarmCount":"2","tireAlarmState":{"fl":"low","fr":"ok"}}`))
	assert.Equal(t, float64(2), *s.TireAlarmCount())

	adt := s.TireAttrs()
	assert.Equal(t, "low", adt["fl"])
	assert.NotContains(t, adt, "tireAlarmState")
	assert.Contains(t, s.Payload(DomainTire), "tireAlarmState")
}

func TestEnergyAndMileage(t *testing.T) {
	s := NewStore()
	assert.Equal(t, []any{}, s.MonthlyElecAttrs()["dailyList"])

	s.Replace(DomainEnergy, decode(t, `{"elecEnergy":"120.5","fuelConsumption":"-2147483648","dailyList":[1]}`))
	s.Replace(DomainMileage, decode(t, `{"totalMileage":"12345"}`))
	assert.Equal(t, 120.5, *s.MonthlyElec())
	assert.Nil(t, s.MonthlyFuel())
	assert.Equal(t, []any{float64(1)}, s.MonthlyFuelAttrs()["dailyList"])
	assert.Equal(t, float64(12345), *s.Mileage())
}

func TestInfoAndStatus(t *testing.T) {
	s := NewStore()
	assert.Equal(t, "LiXiang", s.ModelDesc())
	assert.Equal(t, "LiXiang", s.Manufacturer())

	s.Replace(DomainInfo, decode(t, `{"carSeries":"Li L9","variableModel":"Max","brand":"LI","plateNumber":"A12345","mainPictureUrl":"http://p"}`))
	s.Replace(DomainStatus, decode(t, `{"vehOnlineStatus":{"deviceStatus":"ONLINE"},"otaUpgradeInfo":{"baseVersion":"5.2.0"}}`))
	assert.Equal(t, "Li L9 Max", s.ModelDesc())
	assert.Equal(t, "LI", s.Manufacturer())
	assert.Equal(t, "http://p", s.Picture())
	assert.Equal(t, "5.2.0", s.SoftwareVersion())
	assert.Equal(t, "online", s.OnlineStatus())

	adt := s.StatusAttrs()
	assert.Equal(t, "A12345", adt["plateNumber"])
	assert.Equal(t, map[string]any{}, adt["vehPowerMode"])
}

func TestPhotos(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.PhotoURLs())
	assert.True(t, s.PhotoTime().IsZero())

	s.Replace(DomainPhotos, decode(t, `{"picTimestamp":1700000000000,"pictures":[{"photoUrl":"a"},{"photoUrl":""},{"photoUrl":"b"}]}`))
	assert.Equal(t, []string{"a", "b"}, s.PhotoURLs())
	assert.Equal(t, time.UnixMilli(1700000000000), s.PhotoTime())
}

func TestReplaceKeepsReadersStable(t *testing.T) {
	s := NewStore()
	s.Replace(DomainMileage, Payload{"totalMileage": "1"})
	old := s.Payload(DomainMileage)
	s.Replace(DomainMileage, Payload{"totalMileage": "2"})
	assert.Equal(t, "1", old["totalMileage"])
	assert.False(t, s.UpdatedAt(DomainMileage).IsZero())
	assert.True(t, s.Has(DomainMileage))
	assert.False(t, s.Has(DomainTire))
}
