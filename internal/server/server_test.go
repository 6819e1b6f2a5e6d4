package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernandezvara/gamekit"
	"github.com/fernandezvara/gamekit/internal/config"
	"github.com/fernandezvara/gamekit/kv"
	"github.com/fernandezvara/gamekit/proxy"
)

type fakeDatabase struct {
	healthy bool
}

func (f fakeDatabase) Health(ctx context.Context) gamekit.HealthStatus {
	st := gamekit.HealthStatus{Healthy: f.healthy, Endpoint: "db:3306"}
	if !f.healthy {
		st.Error = "connection refused"
	}
	return st
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context) error {
	return f.err
}

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		Addr:            "127.0.0.1:0",
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: time.Second,
		CORSOrigins:     "*",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		deps       Deps
		wantCode   int
		wantStatus string
	}{
		{"no dependencies", Deps{}, http.StatusOK, "ok"},
		{"all healthy", Deps{Database: fakeDatabase{healthy: true}, Redis: fakePinger{}}, http.StatusOK, "ok"},
		{"database down", Deps{Database: fakeDatabase{}, Redis: fakePinger{}}, http.StatusServiceUnavailable, "degraded"},
		{"redis down", Deps{Database: fakeDatabase{healthy: true}, Redis: fakePinger{err: errors.New("dial tcp: refused")}}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(testConfig(), tt.deps, discardLogger())
			rec := get(t, srv.Handler(), "/health", nil)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, tt.deps.Database != nil, body.Database != nil)
			assert.Equal(t, tt.deps.Redis != nil, body.Redis != nil)
		})
	}
}

func TestHealth_RedisError(t *testing.T) {
	srv := New(testConfig(), Deps{Redis: fakePinger{err: errors.New("dial tcp: refused")}}, discardLogger())
	rec := get(t, srv.Handler(), "/health", nil)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Redis)
	assert.False(t, body.Redis.Healthy)
	assert.Equal(t, "dial tcp: refused", body.Redis.Error)
}

func TestRequestID(t *testing.T) {
	srv := New(testConfig(), Deps{}, discardLogger())

	rec := get(t, srv.Handler(), "/health", http.Header{RequestIDHeader: {"req-123"}})
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	rec = get(t, srv.Handler(), "/health", nil)
	generated := rec.Header().Get(RequestIDHeader)
	require.NotEmpty(t, generated)
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)
}

func TestRequestID_SetsCaller(t *testing.T) {
	var caller string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller = proxy.CallerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/games/A1", nil)
	req.Header.Set("x-request-id", "req-777")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "req-777", caller)

	get(t, h, "/games/A1", nil)
	_, err := uuid.Parse(caller)
	assert.NoError(t, err, "a generated id should become the caller")
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	srv := New(testConfig(), Deps{Database: fakeDatabase{}}, logger)
	get(t, srv.Handler(), "/health", http.Header{RequestIDHeader: {"req-log"}})

	out := buf.String()
	assert.Contains(t, out, `"msg":"http request"`)
	assert.Contains(t, out, `"path":"/health"`)
	assert.Contains(t, out, `"status":503`)
	assert.Contains(t, out, `"request_id":"req-log"`)
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gamekit_test_total",
		Help: "Test counter.",
	})
	registry.MustRegister(counter)
	counter.Add(3)

	srv := New(testConfig(), Deps{Gatherer: registry}, discardLogger())
	rec := get(t, srv.Handler(), "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gamekit_test_total 3")
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.CORSOrigins = "https://games.example.com, https://admin.example.com"
	srv := New(cfg, Deps{}, discardLogger())

	req := httptest.NewRequest(http.MethodOptions, "/games", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/games", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginList(t *testing.T) {
	assert.Equal(t, []string{"*"}, originList(""))
	assert.Equal(t, []string{"*"}, originList("*"))
	assert.Equal(t, []string{"a", "b"}, originList("a, b"))
}

func TestKVRoutes(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := kv.DefaultConfig()
	cfg.Addr = mr.Addr()
	client, err := kv.NewClient(cfg)
	require.NoError(t, err)
	svc := kv.NewService(client, discardLogger())
	t.Cleanup(func() { _ = svc.Close() })

	srv := New(testConfig(), Deps{KV: svc, Redis: svc}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/redis/set?key=lobby&value=open", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, srv.Handler(), "/redis/get?key=lobby", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "open", rec.Body.String())

	rec = get(t, srv.Handler(), "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServe_Shutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(testConfig(), Deps{}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
