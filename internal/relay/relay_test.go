package relay

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func testFix() Fix {
	return Fix{
		VIN:        "LW433B123N1000001",
		Lat:        30.5,
		Lon:        114.3,
		Time:       time.Unix(1700000000, 0),
		Altitude:   f(20),
		Heading:    f(90.7),
		Speed:      f(100),
		Battery:    f(76.9),
		Mileage:    f(12345),
		IndoorTemp: f(22.5),
	}
}

func TestTraccarQuery(t *testing.T) {
	q := NewTraccar("traccar.local:5055", "").Query(testFix())

	assert.Equal(t, "LW433B123N1000001", q.Get("id"))
	assert.Equal(t, "1700000000", q.Get("timestamp"))
	assert.Equal(t, "30.5", q.Get("lat"))
	assert.Equal(t, "114.3", q.Get("lon"))
	speed, err := strconv.ParseFloat(q.Get("speed"), 64)
	require.NoError(t, err)
	assert.InDelta(t, 53.9957, speed, 1e-6)
	assert.Equal(t, "76", q.Get("batt"))
	assert.Equal(t, "12345", q.Get("totalDistance"))
	assert.Equal(t, "22.5", q.Get("deviceTemp"))
	assert.Equal(t, "90.7", q.Get("heading"))
	// 未知读数不发送
	assert.False(t, q.Has("fuel"))
}

func TestTraccarSend(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		got = r.URL.Query()
	}))
	defer srv.Close()

	fix := testFix()
	fix.Speed = nil
	require.NoError(t, NewTraccar(srv.URL, "dev-1").Send(t.Context(), fix))
	assert.Equal(t, "dev-1", got.Get("id"))
	assert.Equal(t, "0", got.Get("speed"))
}

func TestYingyanForm(t *testing.T) {
	form := NewYingyan("ak", "123").Form(testFix())

	assert.Equal(t, "ak", form.Get("ak"))
	assert.Equal(t, "123", form.Get("service_id"))
	assert.Equal(t, "LW433B123N1000001", form.Get("entity_name"))
	assert.Equal(t, "1700000000", form.Get("loc_time"))
	assert.Equal(t, "20", form.Get("height"))
	assert.Equal(t, "90", form.Get("direction"))
	assert.Equal(t, "100", form.Get("speed"))
	assert.Equal(t, "wgs84", form.Get("coord_type_input"))
}

func TestYingyanSend(t *testing.T) {
	status := `{"status":0,"message":"成功"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "wgs84", r.PostForm.Get("coord_type_input"))
		_, _ = w.Write([]byte(status))
	}))
	defer srv.Close()

	y := NewYingyan("ak", "123")
	y.endpoint = srv.URL
	require.NoError(t, y.Send(t.Context(), testFix()))

	status = `{"status":3,"message":"参数错误"}`
	assert.ErrorContains(t, y.Send(t.Context(), testFix()), "参数错误")
}
