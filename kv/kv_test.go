package kv

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	client, err := NewClient(cfg)
	require.NoError(t, err)

	svc := NewService(client, discardLogger())
	t.Cleanup(func() { _ = svc.Close() })
	return svc, mr
}

func TestParseNodes(t *testing.T) {
	assert.Equal(t, []string{"a:26379", "b:26379"}, ParseNodes(" a:26379, ,b:26379 "))
	assert.Nil(t, ParseNodes(""))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"standalone", Config{Mode: Standalone, Addr: "localhost:6379"}, nil},
		{"standalone without addr", Config{Mode: Standalone}, ErrInvalidConfig},
		{"sentinel", Config{Mode: Sentinel, SentinelMaster: "mymaster", SentinelNodes: []string{"s1:26379"}}, nil},
		{"sentinel mixed case", Config{Mode: "Sentinel", SentinelMaster: "mymaster", SentinelNodes: []string{"s1:26379"}}, nil},
		{"sentinel without master", Config{Mode: Sentinel, SentinelNodes: []string{"s1:26379"}}, ErrInvalidConfig},
		{"cluster", Config{Mode: Cluster, ClusterNodes: []string{"n1:7000", "n2:7000"}}, nil},
		{"cluster without nodes", Config{Mode: Cluster}, ErrInvalidConfig},
		{"negative pool", Config{Mode: Standalone, Addr: "x:1", PoolSize: -1}, ErrInvalidConfig},
		{"unknown mode", Config{Mode: "replica"}, ErrUnsupportedMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestNewClient_Modes(t *testing.T) {
	cluster, err := NewClient(Config{Mode: Cluster, ClusterNodes: []string{"n1:7000"}, PoolSize: 4})
	require.NoError(t, err)
	defer cluster.Close()
	_, ok := cluster.(*redis.ClusterClient)
	assert.True(t, ok, "cluster mode should build a cluster client")

	sentinel, err := NewClient(Config{Mode: Sentinel, SentinelMaster: "mymaster", SentinelNodes: []string{"s1:26379"}})
	require.NoError(t, err)
	defer sentinel.Close()
	_, ok = sentinel.(*redis.Client)
	assert.True(t, ok, "sentinel mode should build a failover client")

	standalone, err := NewClient(DefaultConfig())
	require.NoError(t, err)
	defer standalone.Close()
	client, ok := standalone.(*redis.Client)
	require.True(t, ok)
	assert.Equal(t, 8, client.Options().PoolSize)

	_, err = NewClient(Config{Mode: "replica"})
	assert.True(t, errors.Is(err, ErrUnsupportedMode))
}

func TestService_SetGet(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetValue(ctx, "game:G1", "slots"))
	stored, err := mr.Get("game:G1")
	require.NoError(t, err)
	assert.Equal(t, "slots", stored)
	assert.Zero(t, mr.TTL("game:G1"), "values have no expiry")

	value, ok, err := svc.GetValue(ctx, "game:G1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "slots", value)

	_, ok, err = svc.GetValue(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, svc.Ping(ctx))
}

func TestService_ServerDown(t *testing.T) {
	svc, mr := newTestService(t)
	mr.Close()

	ctx := context.Background()
	assert.Error(t, svc.SetValue(ctx, "k", "v"))
	_, _, err := svc.GetValue(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, svc.Ping(ctx))
}

func TestHandler(t *testing.T) {
	svc, _ := newTestService(t)
	r := mux.NewRouter()
	NewHandler(svc, discardLogger()).RegisterRoutes(r)

	do := func(method, target string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
		return rr
	}

	rr := do(http.MethodPost, "/redis/set?key=greeting&value=hello")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Success: greeting -> hello", rr.Body.String())

	rr = do(http.MethodGet, "/redis/get?key=greeting")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hello", rr.Body.String())

	rr = do(http.MethodGet, "/redis/get?key=nothing")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(http.MethodPost, "/redis/set?value=orphan")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(http.MethodGet, "/redis/get")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(http.MethodGet, "/redis/set?key=a&value=b")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandler_ServerDown(t *testing.T) {
	svc, mr := newTestService(t)
	r := mux.NewRouter()
	NewHandler(svc, discardLogger()).RegisterRoutes(r)
	mr.Close()

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/redis/get?key=a", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
