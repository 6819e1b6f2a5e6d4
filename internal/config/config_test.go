package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernandezvara/gamekit/endpoint"
	"github.com/fernandezvara/gamekit/kv"
	"github.com/fernandezvara/gamekit/pool"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	ep := cfg.Database.Endpoint()
	assert.Equal(t, endpoint.Default().Addr(), ep.Addr())
	assert.Equal(t, endpoint.MySQL, ep.Driver)
	assert.Equal(t, "ngp_web", ep.Database)
	assert.True(t, ep.KeepAlive)
	require.NoError(t, ep.Validate())

	policy := cfg.Database.Pool.Policy()
	assert.Equal(t, 2, policy.InitialSize)
	assert.Equal(t, 10, policy.MaxSize)
	assert.Equal(t, 10*time.Second, policy.MaxIdleTime)
	assert.Equal(t, 60*time.Second, policy.MaxLifeTime)
	assert.Equal(t, pool.ValidateRemote, policy.ValidationDepth)
	assert.Equal(t, "SELECT 1", policy.ValidationQuery)
	require.NoError(t, policy.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "standalone", cfg.Redis.Mode)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GAMEKIT_DATABASE_HOST", "db.internal")
	t.Setenv("GAMEKIT_DATABASE_POOL_MAX_SIZE", "25")
	t.Setenv("GAMEKIT_QUERY_SLOW_THRESHOLD", "250ms")
	t.Setenv("GAMEKIT_REDIS_MODE", "cluster")
	t.Setenv("GAMEKIT_REDIS_CLUSTER_NODES", "n1:7000,n2:7000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 25, cfg.Database.Pool.MaxSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Query.SlowThreshold)

	redisCfg := cfg.Redis.KV()
	assert.Equal(t, kv.Cluster, redisCfg.Mode)
	assert.Equal(t, []string{"n1:7000", "n2:7000"}, redisCfg.ClusterNodes)
	require.NoError(t, redisCfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamekit.yaml")
	yaml := `
database:
  driver: postgres
  host: pg.local
  port: 5432
  name: games
  pool:
    max_size: 4
    initial_size: 1
    validation_depth: local
redis:
  mode: sentinel
  sentinel_master: mymaster
  sentinel_nodes: "s1:26379, s2:26379"
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	ep := cfg.Database.Endpoint()
	assert.Equal(t, endpoint.Postgres, ep.Driver)
	assert.Equal(t, "pg.local:5432", ep.Addr())
	assert.Equal(t, "pp", ep.Username, "unset keys keep their defaults")

	policy := cfg.Database.Pool.Policy()
	assert.Equal(t, 4, policy.MaxSize)
	assert.Equal(t, pool.ValidateLocal, policy.ValidationDepth)

	redisCfg := cfg.Redis.KV()
	assert.Equal(t, kv.Sentinel, redisCfg.Mode)
	assert.Equal(t, []string{"s1:26379", "s2:26379"}, redisCfg.SentinelNodes)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_Gamekit(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Query.SlowThreshold = time.Second
	cfg.Query.MaxLoggedRows = 5

	gk := cfg.Gamekit(nil)
	assert.Equal(t, "gamekit", gk.Pool.Name)
	assert.True(t, gk.LogQueries)
	assert.Equal(t, time.Second, gk.LogSlowQueries)
	assert.Equal(t, 5, gk.MaxLoggedRows)
	assert.Equal(t, 100, gk.MaxCapturedRows)
	assert.Equal(t, "ngp_web", gk.Endpoint.Database)
	assert.Same(t, os.Stdout, gk.QueryConsole)

	cfg.Query.Console = false
	assert.Nil(t, cfg.Gamekit(nil).QueryConsole)
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger, err = LogConfig{}.NewLogger(&buf)
	require.NoError(t, err)
	logger.Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")

	_, err = LogConfig{Level: "loud"}.NewLogger(&buf)
	assert.Error(t, err)
	_, err = LogConfig{Format: "xml"}.NewLogger(&buf)
	assert.Error(t, err)
}
