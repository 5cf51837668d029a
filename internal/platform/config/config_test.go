package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := load("", envLookup(nil))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, "customers", cfg.Store.Table)
	assert.Empty(t, cfg.Redis.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.Seed.OnStart)
	assert.False(t, cfg.Server.TrustProxyHeaders)
	assert.Equal(t, 2*time.Second, cfg.Redis.PingTimeout)
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := load("", envLookup(map[string]string{
		"CUSTOMERS_ADDR":          ":9090",
		"CUSTOMERS_STORE_DRIVER":  "postgres",
		"CUSTOMERS_DATABASE_URL":  "postgres://localhost/customers",
		"CUSTOMERS_KAFKA_BROKERS": "kafka-1:9092, kafka-2:9092,",
		"CUSTOMERS_SEED_ON_START": "true",
		"CUSTOMERS_SEED_COUNT":    "5",
		"CUSTOMERS_CACHE_TTL":     "90s",

		"CUSTOMERS_TRUST_PROXY_HEADERS": "true",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Seed.OnStart)
	assert.Equal(t, 5, cfg.Seed.Count)
	assert.Equal(t, 90*time.Second, cfg.Redis.CacheTTL)
	assert.True(t, cfg.Server.TrustProxyHeaders)
}

func TestFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customers.toml")
	content := `
[server]
addr = ":7070"
shutdown_timeout = "3s"

[store]
driver = "sqlite"
dsn = "/var/lib/customers.db"
table = "people"

[redis]
ping_timeout = "500ms"

[kafka]
brokers = ["localhost:9092"]

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := load(path, envLookup(map[string]string{
		"CUSTOMERS_ADDR": ":6060",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Server.Addr, "env wins over file")
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, StoreSQLite, cfg.Store.Driver)
	assert.Equal(t, "people", cfg.Store.Table)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 500*time.Millisecond, cfg.Redis.PingTimeout)
}

func TestValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":     {"CUSTOMERS_STORE_DRIVER": "mongo"},
		"postgres needs dsn": {"CUSTOMERS_STORE_DRIVER": "postgres"},
		"bad table name":     {"CUSTOMERS_TABLE": "customers; DROP TABLE x"},
		"bad bool":           {"CUSTOMERS_SEED_ON_START": "maybe"},
		"bad duration":       {"CUSTOMERS_CACHE_TTL": "soon"},
		"negative seed":      {"CUSTOMERS_SEED_COUNT": "-1"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := load("", envLookup(env))
			require.Error(t, err)
		})
	}
}

func TestMissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "absent.toml"), envLookup(nil))
	require.Error(t, err)
}
