package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func write(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func noDotEnv(t *testing.T) map[string]string {
	return map[string]string{"EK_ENV_FILE": filepath.Join(t.TempDir(), "missing.env")}
}

func TestLoad_DefaultsNeedKey(t *testing.T) {
	t.Parallel()
	_, err := load(nil, envOf(noDotEnv(t)))
	require.ErrorContains(t, err, "jwt")

	cfg, err := load([]string{"--jwt-key", "k"}, envOf(noDotEnv(t)))
	require.NoError(t, err)
	want := Default()
	want.JWTKey = "k"
	require.Equal(t, want, cfg)
}

func TestLoad_Precedence(t *testing.T) {
	t.Parallel()
	file := write(t, "ek.yaml", `
grpc_addr: ":9000"
http_addr: ":9001"
jwt_key: from-file
access_ttl: 1h
storage: memory
realtime:
  mode: redis
  redis_addr: "redis:6379"
  redis_db: 2
policy:
  enforce_acl_disjoint: false
limits:
  max_page_size: 25
`)
	env := noDotEnv(t)
	env["EK_CONFIG"] = file
	env["EK_JWT_KEY"] = "from-env"
	env["EK_MAX_PAGE_SIZE"] = "50"

	cfg, err := load([]string{"--max-page-size=75", "--dev"}, envOf(env))
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.GRPCAddr)
	require.Equal(t, ":9001", cfg.HTTPAddr)
	require.Equal(t, time.Hour, cfg.AccessTTL)
	require.Equal(t, StorageMemory, cfg.Storage)
	require.Equal(t, RealtimeRedis, cfg.Realtime.Mode)
	require.Equal(t, "redis:6379", cfg.Realtime.RedisAddr)
	require.Equal(t, 2, cfg.Realtime.RedisDB)
	require.False(t, cfg.Policy.EnforceACLDisjoint)
	require.Equal(t, "from-env", cfg.JWTKey, "env beats file")
	require.Equal(t, 75, cfg.Limits.MaxPageSize, "flags beat env")
	require.True(t, cfg.Dev)
	require.Equal(t, 128, cfg.Limits.MaxIDLength, "untouched fields keep defaults")
}

func TestLoad_ConfigFlagBeatsEnv(t *testing.T) {
	t.Parallel()
	a := write(t, "a.yaml", "jwt_key: a\n")
	b := write(t, "b.yaml", "jwt_key: b\n")
	env := noDotEnv(t)
	env["EK_CONFIG"] = a

	cfg, err := load([]string{"--config", b}, envOf(env))
	require.NoError(t, err)
	require.Equal(t, "b", cfg.JWTKey)
}

func TestLoad_DotEnv(t *testing.T) {
	t.Parallel()
	dot := write(t, ".env", "EK_JWT_KEY=dotenv\nEK_STORAGE=memory\n")
	env := map[string]string{"EK_ENV_FILE": dot, "EK_STORAGE": "postgres"}

	cfg, err := load(nil, envOf(env))
	require.NoError(t, err)
	require.Equal(t, "dotenv", cfg.JWTKey)
	require.Equal(t, StoragePostgres, cfg.Storage, "real environment wins over .env")
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	env := noDotEnv(t)
	env["EK_CONFIG"] = write(t, "bad.yaml", "no_such_field: 1\n")
	_, err := load([]string{"--jwt-key=k"}, envOf(env))
	require.ErrorContains(t, err, "config file")

	env = noDotEnv(t)
	env["EK_ACCESS_TTL"] = "soon"
	_, err = load([]string{"--jwt-key=k"}, envOf(env))
	require.ErrorContains(t, err, "EK_ACCESS_TTL")

	_, err = load([]string{"--jwt-key=k", "--bogus"}, envOf(noDotEnv(t)))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := Default()
	base.JWTKey = "k"
	require.NoError(t, base.Validate())

	cases := map[string]func(c *Config){
		"ttl":            func(c *Config) { c.AccessTTL = 0 },
		"page size":      func(c *Config) { c.Limits.MaxPageSize = 0 },
		"half tls":       func(c *Config) { c.TLSKey = "" },
		"plaintext":      func(c *Config) { c.TLSCert, c.TLSKey = "", "" },
		"storage":        func(c *Config) { c.Storage = "sqlite" },
		"dsn":            func(c *Config) { c.DSN = "" },
		"realtime":       func(c *Config) { c.Realtime.Mode = "kafka" },
		"redis addr":     func(c *Config) { c.Realtime.Mode, c.Realtime.RedisAddr = RealtimeRedis, "" },
		"pg on memory":   func(c *Config) { c.Storage, c.Realtime.Mode = StorageMemory, RealtimePostgres },
		"limiter window": func(c *Config) { c.Limiter.Window = 0 },
	}
	for name, mutate := range cases {
		c := base
		mutate(&c)
		require.Error(t, c.Validate(), name)
	}

	dev := base
	dev.TLSCert, dev.TLSKey, dev.Dev = "", "", true
	require.NoError(t, dev.Validate())
	require.False(t, dev.TLS())
}
