package lixiang

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *observer.ObservedLogs) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	core, logs := observer.New(zapcore.DebugLevel)
	c := NewClient(srv.URL, "LW433B123N1000001", Credentials{
		APIKey:   "key",
		APISign:  "sign",
		APIToken: "token",
		DeviceID: "device",
	}, zap.New(core))
	return c, logs
}

func TestSignerHeaders(t *testing.T) {
	s := NewSigner()
	s.now = func() time.Time { return time.UnixMilli(1700000000123) }

	body := []byte(`{"vin":"X"}`)
	h := s.Sign(body, "X", Credentials{APIKey: "k", APISign: "s", APIToken: "t", DeviceID: "d"})

	assert.Equal(t, ContentMD5(body), h.Get("Content-MD5"))
	assert.Equal(t, "1700000000123", h.Get("x-chj-timestamp"))
	assert.Equal(t, "k", h.Get("x-chj-key"))
	assert.Equal(t, "s", h.Get("x-chj-sign"))
	assert.Equal(t, "t", h.Get("x-chj-token"))
	assert.Equal(t, "d", h.Get("x-chj-deviceid"))
	assert.Equal(t, "X", h.Get("x-chj-vin"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.NotEqual(t, h.Get("x-chj-nonce"), h.Get("x-chj-traceid"))
}

func TestSignerFreshNonce(t *testing.T) {
	s := NewSigner()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		h := s.Sign(nil, "X", Credentials{})
		for _, k := range []string{"x-chj-nonce", "x-chj-traceid"} {
			v := h.Get(k)
			require.False(t, seen[v], "duplicate %s", k)
			seen[v] = true
		}
	}
}

func TestContentMD5Empty(t *testing.T) {
	// md5("") = d41d8cd98f00b204e9800998ecf8427e
	assert.Equal(t, "1B2M2Y8AsgTpgAmY7PhCfg==", ContentMD5(nil))
}

func TestURL(t *testing.T) {
	c := NewClient("https://api-app.lixiang.com/", "VIN", Credentials{}, zap.NewNop())
	assert.Equal(t, "https://api-app.lixiang.com/a/b", c.URL("/a/b"))
	assert.Equal(t, "https://api-app.lixiang.com/a/b", c.URL("a/b"))
	assert.Equal(t, "http://example.com/x", c.URL("http://example.com/x"))
	assert.Equal(t, "https://example.com/x", c.URL("https://example.com/x"))
}

func TestRequestMethodAndBody(t *testing.T) {
	var gotMethod, gotBody, gotMD5 string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotMD5 = r.Header.Get("Content-MD5")
		_, _ = w.Write([]byte(`{"code":0,"data":{"ok":true}}`))
	})

	res := c.Request(t.Context(), "/get", nil)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Empty(t, gotBody)
	assert.Equal(t, true, res["ok"])

	res = c.Request(t.Context(), "/post", map[string]any{"vin": "X", "commandKey": "k"})
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, `{"commandKey":"k","vin":"X"}`, gotBody)
	assert.Equal(t, ContentMD5([]byte(gotBody)), gotMD5)
	assert.Equal(t, true, res["ok"])

	c.Request(t.Context(), "/override", map[string]any{"a": 1}, WithMethod("put"))
	assert.Equal(t, http.MethodPut, gotMethod)
}

func TestRequestWithoutData(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"message":"ok"}`))
	})

	res := c.Request(t.Context(), "/x", nil)
	assert.Equal(t, "ok", res["message"])
}

func TestRequestTransportError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := NewClient("http://127.0.0.1:1", "VIN", Credentials{}, zap.New(core))

	res := c.Request(t.Context(), "/x", nil)
	assert.Empty(t, res)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestRequestHTTPError(t *testing.T) {
	c, logs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream down`))
	})

	res := c.Request(t.Context(), "/x", nil)
	assert.Empty(t, res)

	entries := logs.FilterMessage("Request api failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "upstream down", entries[0].ContextMap()["body"])
}

func TestRequestApplicationError(t *testing.T) {
	c, logs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":1001,"message":"token expired","data":{"partial":1}}`))
	})

	res := c.Request(t.Context(), "/x", nil)
	assert.Equal(t, float64(1), res["partial"])
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestRequestExtraHeaders(t *testing.T) {
	var got string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Debug")
		_, _ = w.Write([]byte(`{}`))
	})

	c.Request(t.Context(), "/x", nil, WithHeaders(map[string]string{"X-Debug": "1"}))
	assert.Equal(t, "1", got)
}

func TestSendCommandParams(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"code":0}`))
	})

	_, env := c.SendCommand(t.Context(), Command{Key: CommandACControl, Data: map[string]any{"Type": "22", "Temp": "26.0"}})
	assert.False(t, IsError(env))
	assert.Equal(t, c.VIN(), got["vin"])
	assert.Equal(t, CommandACControl, got["commandKey"])
	assert.Equal(t, map[string]any{"Type": "22", "Temp": "26.0"}, got["commandData"])

	_, _ = c.SendCommand(t.Context(), Command{Key: CommandSearch})
	_, ok := got["commandData"]
	assert.False(t, ok)
}

func TestFetchRejectsEnvelopeWithoutData(t *testing.T) {
	body := `{"code":0,"data":{"x":1}}`
	var mu sync.Mutex
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = w.Write([]byte(body))
	})
	setBody := func(b string) {
		mu.Lock()
		body = b
		mu.Unlock()
	}

	data, ok := c.Fetch(t.Context(), "/x")
	require.True(t, ok)
	assert.Equal(t, Payload{"x": float64(1)}, data)

	for _, b := range []string{
		`{"code":401,"message":"token expired","data":null}`,
		`{"code":7,"data":{"x":1}}`,
		`{"code":0,"data":{}}`,
		`{"code":0}`,
		`{}`,
	} {
		setBody(b)
		_, ok := c.Fetch(t.Context(), "/x")
		assert.False(t, ok, b)
	}
}

func TestIsError(t *testing.T) {
	assert.False(t, IsError(Payload{}))
	assert.False(t, IsError(Payload{"code": float64(0)}))
	assert.False(t, IsError(Payload{"code": "0"}))
	assert.True(t, IsError(Payload{"code": float64(7)}))
	assert.True(t, IsError(Payload{"code": "E01"}))
}
