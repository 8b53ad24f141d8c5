package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/lxgazer/internal/config"
	"github.com/langchou/lxgazer/internal/models"
	"github.com/langchou/lxgazer/internal/state"
)

type fakeGeocoder struct {
	err   error
	calls int
}

func (f *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (*models.Address, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.Address{FormattedAddress: "湖北省武汉市江汉区", Provider: "amap"}, nil
}

type fakePositions struct {
	mu        sync.Mutex
	positions []*models.Position
}

func (f *fakePositions) Create(ctx context.Context, p *models.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions = append(f.positions, p)
	return nil
}

type message struct {
	typ  string
	data any
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []message
}

func (f *fakeNotifier) BroadcastMessage(msgType string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, message{typ: msgType, data: data})
}

func (f *fakeNotifier) ofType(typ string) []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message
	for _, m := range f.msgs {
		if m.typ == typ {
			out = append(out, m)
		}
	}
	return out
}

func locationStatus(lat, lon float64, ct int64) string {
	return fmt.Sprintf(`{"locationStatus":{"lat":%s,"lon":%s,"alt":"35","dir":"90","ct":%d},`+
		`"chargeSetting":{"enduranceStatus":{"residueBattery":"80"}}}`,
		strconv.FormatFloat(lat, 'f', -1, 64), strconv.FormatFloat(lon, 'f', -1, 64), ct)
}

func TestTrackerPipeline(t *testing.T) {
	var mu sync.Mutex
	var queries []url.Values
	traccar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Query())
		mu.Unlock()
	}))
	defer traccar.Close()

	api := newFakeAPI(t)
	geo := &fakeGeocoder{}
	positions := &fakePositions{}
	notifier := &fakeNotifier{}

	cfg := config.CarConfig{VIN: testVIN}
	cfg.Traccar.Host = traccar.URL
	cfg.Traccar.DeviceID = "lx01"
	v := NewVehicle(cfg, Deps{
		Logger:    zap.NewNop(),
		Clock:     mockAt(1),
		BaseURL:   api.srv.URL,
		Geocoder:  geo,
		Positions: positions,
		Notifier:  notifier,
	})

	// 第一个定位：转发但没有速度
	api.ok("status", locationStatus(30.0, 114.0, 1_700_000_000_000))
	require.NoError(t, v.Fast().Refresh(t.Context()))
	assert.Nil(t, v.Tracker().Speed())
	require.Len(t, positions.positions, 1)
	assert.Nil(t, positions.positions[0].Speed)
	assert.Equal(t, "湖北省武汉市江汉区", positions.positions[0].Address.FormattedAddress)

	// 定位时间没有前进：不处理
	require.NoError(t, v.Fast().Refresh(t.Context()))
	assert.Equal(t, 1, geo.calls)
	require.Len(t, positions.positions, 1)

	// 60 秒后向北移动 0.01 度（约 1.11 km）：约 66.7 km/h
	api.ok("status", locationStatus(30.01, 114.0, 1_700_000_060_000))
	require.NoError(t, v.Fast().Refresh(t.Context()))
	spd := v.Tracker().Speed()
	require.NotNil(t, spd)
	assert.InDelta(t, 66.7, *spd, 0.5)
	require.Len(t, positions.positions, 2)
	assert.Equal(t, 80.0, *positions.positions[1].BatteryLevel)

	mu.Lock()
	require.Len(t, queries, 2)
	assert.Equal(t, "lx01", queries[0].Get("id"))
	assert.Equal(t, "0", queries[0].Get("speed"))
	assert.Equal(t, "80", queries[1].Get("batt"))
	mu.Unlock()

	msgs := notifier.ofType(MsgTypeLocationChanged)
	require.Len(t, msgs, 2)
	data := msgs[1].data.(map[string]any)
	assert.Equal(t, testVIN, data["vin"])
	assert.Equal(t, 30.01, data["latitude"])

	attrs := v.Tracker().Attrs()
	assert.Equal(t, "湖北省武汉市江汉区", attrs["address"])
	assert.InDelta(t, 66.7, attrs["speed"].(float64), 0.5)
}

func TestTrackerGeocodeFailureStillForwards(t *testing.T) {
	api := newFakeAPI(t)
	geo := &fakeGeocoder{err: errors.New("quota exceeded")}
	positions := &fakePositions{}
	v, logs := newTestVehicle(t, api, mockAt(1), func(d *Deps) {
		d.Geocoder = geo
		d.Positions = positions
	})

	api.ok("status", locationStatus(30.0, 114.0, 1_700_000_000_000))
	require.NoError(t, v.Fast().Refresh(t.Context()))

	require.Len(t, positions.positions, 1)
	assert.Nil(t, positions.positions[0].Address)
	assert.Equal(t, 1, logs.FilterMessage("Reverse geocode failed").Len())
}

func TestTrackerIgnoresMissingLocation(t *testing.T) {
	api := newFakeAPI(t)
	positions := &fakePositions{}
	v, _ := newTestVehicle(t, api, mockAt(1), func(d *Deps) { d.Positions = positions })

	api.ok("status", `{"locationStatus":{"lat":-2147483648,"lon":114.0,"ct":1700000000000}}`)
	require.NoError(t, v.Fast().Refresh(t.Context()))
	assert.Empty(t, positions.positions)

	_, ok := v.Store().Location()
	assert.False(t, ok)
	assert.Equal(t, state.LinkPending, v.Machine().CurrentState())
}

func TestRelaysFor(t *testing.T) {
	assert.Empty(t, relaysFor(config.CarConfig{}))

	cfg := config.CarConfig{}
	cfg.Traccar.Host = "localhost:5055"
	cfg.Yingyan.AK = "ak"
	assert.Len(t, relaysFor(cfg), 1)

	cfg.Yingyan.ServiceID = "123"
	relays := relaysFor(cfg)
	require.Len(t, relays, 2)
	assert.Equal(t, "traccar", relays[0].Name())
	assert.Equal(t, "baidu_yingyan", relays[1].Name())
}
