package entity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/lxgazer/internal/config"
	"github.com/langchou/lxgazer/internal/service"
	"github.com/langchou/lxgazer/internal/state"
)

const testVIN = "LW433B123N1000001"

type commandRecorder struct {
	mu     sync.Mutex
	bodies []map[string]any
}

func (c *commandRecorder) last() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bodies) == 0 {
		return nil
	}
	return c.bodies[len(c.bodies)-1]
}

func (c *commandRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func newTestRegistry(t *testing.T) (*Registry, *service.Vehicle, *commandRecorder) {
	t.Helper()
	rec := &commandRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/send-command") || strings.HasSuffix(r.URL.Path, "/take-photo") {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			rec.mu.Lock()
			rec.bodies = append(rec.bodies, body)
			rec.mu.Unlock()
		}
		_, _ = w.Write([]byte(`{"code":0}`))
	}))
	t.Cleanup(srv.Close)

	v := service.NewVehicle(config.CarConfig{VIN: testVIN, Name: "家里的 L9"}, service.Deps{
		Logger:  zap.NewNop(),
		Clock:   clock.NewMock(),
		BaseURL: srv.URL,
	})
	return Build(v), v, rec
}

func TestBuildDescriptors(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	counts := map[Kind]int{}
	for _, d := range r.List() {
		counts[d.Kind]++
	}
	assert.Equal(t, 16, counts[KindSensor])
	assert.Equal(t, 2, counts[KindSwitch])
	assert.Equal(t, 2, counts[KindButton])
	assert.Equal(t, 1, counts[KindClimate])
	assert.Equal(t, 1, counts[KindCamera])
	assert.Equal(t, 1, counts[KindDeviceTracker])
	assert.Empty(t, r.ByKind(KindBinarySensor))

	d, err := r.Get("battery")
	require.NoError(t, err)
	assert.Equal(t, "lixiang.LW433B_000001_battery", d.EntityID)
	assert.Equal(t, testVIN+"-battery", d.UniqueID)
	assert.Equal(t, "家里的 L9 battery", d.Name)
	assert.Equal(t, "battery", d.DeviceClass)
	assert.Equal(t, "%", d.Unit)
	assert.Equal(t, "measurement", d.StateClass)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestSensorState(t *testing.T) {
	r, v, _ := newTestRegistry(t)
	v.Store().Replace(state.DomainStatus, state.Payload{
		"chargeSetting": map[string]any{
			"enduranceStatus": map[string]any{"residueBattery": "-2147483648"},
		},
		"doorSwitchStatus": map[string]any{
			"fl": map[string]any{"isOpen": "1", "isLock": "0"},
			"fr": map[string]any{"isOpen": "0", "isLock": "1"},
		},
	})
	v.Store().Replace(state.DomainMileage, state.Payload{"totalMileage": "12345.6"})

	view := func(key string) View {
		d, err := r.Get(key)
		require.NoError(t, err)
		return d.View()
	}

	assert.Nil(t, view("battery").State)
	assert.Equal(t, 12345.6, view("mileage").State)
	assert.Equal(t, 1, view("door_opened").State)
	assert.Equal(t, true, view("door_lock").State)
	assert.Equal(t, float64(0), view("tire_alarm").State)
	assert.False(t, view("battery").Available)

	attrs := view("door_unlocked").Attributes
	assert.Contains(t, attrs, "fl")
}

func TestSwitchActions(t *testing.T) {
	r, _, rec := newTestRegistry(t)
	ctx := t.Context()

	ok, err := r.Do(ctx, "door_lock", ActionTurnOn, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "remote_central_lock_unlock", rec.last()["commandKey"])

	ok, err = r.Do(ctx, "door_lock", ActionTurnOff, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "remote_central_lock_lock", rec.last()["commandKey"])

	_, err = r.Do(ctx, "door_lock", ActionPress, nil)
	assert.ErrorIs(t, err, ErrUnsupportedAction)

	_, err = r.Do(ctx, "battery", ActionTurnOn, nil)
	assert.ErrorIs(t, err, ErrUnsupportedAction)
}

func TestButtonActions(t *testing.T) {
	r, _, rec := newTestRegistry(t)

	ok, err := r.Do(t.Context(), "find", ActionPress, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "remote_veh_search", rec.last()["commandKey"])

	ok, err = r.Do(t.Context(), "take_photo", ActionPress, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"vin": testVIN}, rec.last())
}

func TestClimateActions(t *testing.T) {
	r, _, rec := newTestRegistry(t)
	ctx := t.Context()

	data := func() map[string]any {
		d, _ := rec.last()["commandData"].(map[string]any)
		return d
	}

	ok, err := r.Do(ctx, "ac", ActionSetHVACMode, "cool")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"Type": "31", "Temp": "16.0"}, data())

	ok, err = r.Do(ctx, "ac", ActionSetTemperature, 24.5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"Type": "21", "Temp": "24.5"}, data())

	ok, err = r.Do(ctx, "ac", ActionSetTemperature, "25")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "25.0", data()["Temp"])

	n := rec.count()
	_, err = r.Do(ctx, "ac", ActionSetTemperature, 40.0)
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = r.Do(ctx, "ac", ActionSetHVACMode, "dry")
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, n, rec.count())
}

func TestClimateView(t *testing.T) {
	r, v, _ := newTestRegistry(t)
	v.Store().Replace(state.DomainStatus, state.Payload{
		"airConditioningStatus": map[string]any{
			"acOffStatus":    map[string]any{"value": "1"},
			"acAutoStatus":   map[string]any{"value": "1"},
			"acFLTempStatus": map[string]any{"value": "23"},
			"acWindSpeed":    map[string]any{"value": "3"},
		},
		"temperatureStatus": map[string]any{"indoorTemperature": "21.5"},
	})

	d, err := r.Get("ac")
	require.NoError(t, err)
	view := d.View()
	assert.Equal(t, "auto", view.State)
	assert.Equal(t, 23.0, view.Attributes["temperature"])
	assert.Equal(t, 3.0, view.Attributes["fan_mode"])
	assert.Equal(t, 21.5, view.Attributes["current_temperature"])
	assert.Equal(t, HVACModes, view.Attributes["hvac_modes"])
	assert.Equal(t, []string{"set_hvac_mode", "set_temperature", "turn_off", "turn_on"}, view.Actions)
}

func TestTrackerView(t *testing.T) {
	r, v, _ := newTestRegistry(t)
	d, err := r.Get("location")
	require.NoError(t, err)
	assert.Nil(t, d.View().State)

	v.Store().Replace(state.DomainStatus, state.Payload{
		"locationStatus": map[string]any{"lat": "30.5", "lon": "114.25", "ct": "1700000000000"},
	})
	view := d.View()
	assert.Equal(t, "30.500000,114.250000", view.State)
	assert.Equal(t, 30.5, view.Attributes["latitude"])
	assert.Equal(t, "gps", view.Attributes["source_type"])
}

func TestDevice(t *testing.T) {
	r, v, _ := newTestRegistry(t)
	v.Store().Replace(state.DomainInfo, state.Payload{"carSeries": "Li L9", "variableModel": "Max", "brand": "理想"})

	dev := r.Device()
	assert.Equal(t, []string{testVIN}, dev.Identifiers)
	assert.Equal(t, "家里的 L9", dev.Name)
	assert.Equal(t, "Li L9 Max", dev.Model)
	assert.Equal(t, "理想", dev.Manufacturer)
}

func TestVINSort(t *testing.T) {
	assert.Equal(t, "LW433B_000001", VINSort(testVIN))
	assert.Equal(t, "ABC_ABC", VINSort("ABC"))
}
