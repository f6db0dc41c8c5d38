package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg *Config) *httptest.Server {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
		cfg.Apps.TokenTTL = time.Hour
	}
	tokens := NewTokenStore(cfg.Redis, cfg.Apps.TokenTTL, cfg.RateLimit.RequestsPerSecond)
	t.Cleanup(func() { tokens.Close() })

	srv := NewServer(cfg, tokens, NewEnricher(""), NewForwarder(cfg.Kafka))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func validate(t *testing.T, ts *httptest.Server, appID string) deviceValidateResponse {
	t.Helper()
	resp := postJSON(t, ts.URL+"/v1/device/validate", map[string]any{
		"appID": appID,
		"uuid":  "dev-1",
	}, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out deviceValidateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestDeviceValidate_IssuesToken(t *testing.T) {
	ts := newTestServer(t, nil)

	out := validate(t, ts, "app-1")
	assert.NotEmpty(t, out.SDKToken)
	assert.NotEmpty(t, out.UserID)

	again := validate(t, ts, "app-1")
	assert.NotEqual(t, out.SDKToken, again.SDKToken)
}

func TestDeviceValidate_RejectsBadRequests(t *testing.T) {
	cfg := &Config{}
	cfg.Apps.IDs = []string{"known-app"}
	cfg.Apps.TokenTTL = time.Hour
	ts := newTestServer(t, cfg)

	resp := postJSON(t, ts.URL+"/v1/device/validate", map[string]any{"uuid": "dev-1"}, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/v1/device/validate", map[string]any{
		"appID": "other-app", "uuid": "dev-1",
	}, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTrackedEndpoints_RequireToken(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/v1/event/track", "/v1/user/update", "/v1/session/conclude"} {
		resp := postJSON(t, ts.URL+path, map[string]any{"name": "x"}, nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	out := validate(t, ts, "app-1")
	for _, path := range []string{"/v1/event/track", "/v1/user/update", "/v1/session/conclude"} {
		resp := postJSON(t, ts.URL+path, map[string]any{"name": "x"},
			map[string]string{"x-sdk-token": out.SDKToken})
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestTokenStore_RedisBacked(t *testing.T) {
	mr := miniredis.RunT(t)

	store := NewTokenStore(RedisConfig{Addr: mr.Addr()}, time.Hour, 0)
	defer store.Close()

	token, userID, err := store.Issue(context.Background(), "app-1", "dev-1")
	require.NoError(t, err)

	got, err := store.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = store.Validate(context.Background(), "bogus")
	require.Error(t, err)

	mr.FastForward(2 * time.Hour)
	_, err = store.Validate(context.Background(), token)
	require.Error(t, err)
}

func TestRateLimit(t *testing.T) {
	cfg := &Config{}
	cfg.Apps.TokenTTL = time.Hour
	cfg.RateLimit.RequestsPerSecond = 2
	ts := newTestServer(t, cfg)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp := postJSON(t, ts.URL+"/v1/device/validate", map[string]any{
			"appID": "app-1", "uuid": "dev-1",
		}, nil)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestTriggerPreview(t *testing.T) {
	ts := newTestServer(t, nil)

	expire := time.Now().Add(time.Hour).UnixMilli()
	payload := `{
		"id": "tr-1",
		"expireAt": ` + strconv.FormatInt(expire, 10) + `,
		"ian": {
			"cont": {"w": 1080, "h": 1920},
			"layers": [{"elems": [{"t": 2, "w": 400, "h": 80, "txt": {"text": "Hi"}}]}]
		}
	}`

	resp := postJSON(t, ts.URL+"/v1/trigger/preview", map[string]any{
		"viewport": map[string]any{"w": 1280, "h": 800},
		"payload":  json.RawMessage(payload),
	}, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		TriggerID string          `json:"triggerID"`
		Root      json.RawMessage `json:"root"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "tr-1", out.TriggerID)
	assert.NotEmpty(t, out.Root)
}

func TestTriggerPreview_ExpiredAndMalformed(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/trigger/preview", map[string]any{
		"viewport": map[string]any{"w": 1280, "h": 800},
		"payload":  json.RawMessage(`{"id": "x", "expireAt": 1, "ian": {"cont": {}}}`),
	}, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusGone, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/v1/trigger/preview", map[string]any{
		"viewport": map[string]any{"w": 1280, "h": 800},
		"payload":  json.RawMessage(`{"nope": true}`),
	}, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestTrackedEndpoints_NullBodyIsBadRequest(t *testing.T) {
	ts := newTestServer(t, nil)
	out := validate(t, ts, "app-1")

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/event/track", strings.NewReader("null"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-sdk-token", out.SDKToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTriggerPreview_CustomHostPositioning(t *testing.T) {
	ts := newTestServer(t, nil)

	expire := time.Now().Add(time.Hour).UnixMilli()
	payload := `{
		"id": "tr-1",
		"expireAt": ` + strconv.FormatInt(expire, 10) + `,
		"ian": {"cont": {"w": 1080, "h": 1920, "cover": true}, "layers": []}
	}`

	position := func(customHost bool) string {
		resp := postJSON(t, ts.URL+"/v1/trigger/preview", map[string]any{
			"viewport":   map[string]any{"w": 1280, "h": 800},
			"customHost": customHost,
			"payload":    json.RawMessage(payload),
		}, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out struct {
			Root struct {
				Style struct {
					Position string `json:"position"`
				} `json:"style"`
			} `json:"root"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out.Root.Style.Position
	}

	assert.Equal(t, "fixed", position(false))
	assert.Equal(t, "absolute", position(true))
}
