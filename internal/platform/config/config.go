package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const envPrefix = "CUSTOMERS_"

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Config is the full process configuration.
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Redis  RedisConfig
	Kafka  KafkaConfig
	Seed   SeedConfig
	Log    LogConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	RequestTimeout    time.Duration
	ShutdownTimeout   time.Duration

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool
}

// StoreConfig selects and tunes the customer record store.
type StoreConfig struct {
	Driver          string
	DSN             string
	Table           string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig enables the read-through cache when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingTimeout  time.Duration
	CacheTTL     time.Duration
	KeyPrefix    string
}

// KafkaConfig enables event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	ClientID          string
	ProduceTimeout    time.Duration
	Partitions        int32
	ReplicationFactor int16
}

// SeedConfig controls the optional sample-data task run before serving.
type SeedConfig struct {
	OnStart bool
	Count   int
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			RequestTimeout:    30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Store: StoreConfig{
			Driver:          StoreMemory,
			Table:           "customers",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PingTimeout:  2 * time.Second,
			CacheTTL:     5 * time.Minute,
			KeyPrefix:    "customers:",
		},
		Kafka: KafkaConfig{
			Topic:             "customer-events",
			ClientID:          "customers",
			ProduceTimeout:    10 * time.Second,
			Partitions:        3,
			ReplicationFactor: 1,
		},
		Seed: SeedConfig{
			Count: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, then the optional TOML file at
// path, then CUSTOMERS_* environment variables.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

// FromEnv builds a Config from defaults and environment variables only.
func FromEnv() (Config, error) {
	return load("", os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the process cannot run with.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres, StoreSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("store dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if !tableNamePattern.MatchString(c.Store.Table) {
		return fmt.Errorf("invalid store table name %q", c.Store.Table)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when brokers are set")
	}
	if c.Seed.Count < 0 {
		return fmt.Errorf("seed count must not be negative")
	}
	return nil
}

// fileConfig mirrors Config for TOML decoding; durations are strings such
// as "5s".
type fileConfig struct {
	Server struct {
		Addr              string `toml:"addr"`
		ReadHeaderTimeout string `toml:"read_header_timeout"`
		RequestTimeout    string `toml:"request_timeout"`
		ShutdownTimeout   string `toml:"shutdown_timeout"`
		TrustProxyHeaders bool   `toml:"trust_proxy_headers"`
	} `toml:"server"`
	Store struct {
		Driver          string `toml:"driver"`
		DSN             string `toml:"dsn"`
		Table           string `toml:"table"`
		MaxOpenConns    int    `toml:"max_open_conns"`
		MaxIdleConns    int    `toml:"max_idle_conns"`
		ConnMaxLifetime string `toml:"conn_max_lifetime"`
	} `toml:"store"`
	Redis struct {
		URL         string `toml:"url"`
		PoolSize    int    `toml:"pool_size"`
		PingTimeout string `toml:"ping_timeout"`
		CacheTTL    string `toml:"cache_ttl"`
		KeyPrefix   string `toml:"key_prefix"`
	} `toml:"redis"`
	Kafka struct {
		Brokers           []string `toml:"brokers"`
		Topic             string   `toml:"topic"`
		ClientID          string   `toml:"client_id"`
		Partitions        int32    `toml:"partitions"`
		ReplicationFactor int16    `toml:"replication_factor"`
	} `toml:"kafka"`
	Seed struct {
		OnStart bool `toml:"on_start"`
		Count   int  `toml:"count"`
	} `toml:"seed"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.Server.Addr, fc.Server.Addr)
	cfg.Server.TrustProxyHeaders = cfg.Server.TrustProxyHeaders || fc.Server.TrustProxyHeaders
	setString(&cfg.Store.Driver, fc.Store.Driver)
	setString(&cfg.Store.DSN, fc.Store.DSN)
	setString(&cfg.Store.Table, fc.Store.Table)
	setInt(&cfg.Store.MaxOpenConns, fc.Store.MaxOpenConns)
	setInt(&cfg.Store.MaxIdleConns, fc.Store.MaxIdleConns)
	setString(&cfg.Redis.URL, fc.Redis.URL)
	setInt(&cfg.Redis.PoolSize, fc.Redis.PoolSize)
	setString(&cfg.Redis.KeyPrefix, fc.Redis.KeyPrefix)
	if len(fc.Kafka.Brokers) > 0 {
		cfg.Kafka.Brokers = fc.Kafka.Brokers
	}
	setString(&cfg.Kafka.Topic, fc.Kafka.Topic)
	setString(&cfg.Kafka.ClientID, fc.Kafka.ClientID)
	if fc.Kafka.Partitions > 0 {
		cfg.Kafka.Partitions = fc.Kafka.Partitions
	}
	if fc.Kafka.ReplicationFactor > 0 {
		cfg.Kafka.ReplicationFactor = fc.Kafka.ReplicationFactor
	}
	cfg.Seed.OnStart = cfg.Seed.OnStart || fc.Seed.OnStart
	setInt(&cfg.Seed.Count, fc.Seed.Count)
	setString(&cfg.Log.Level, fc.Log.Level)
	setString(&cfg.Log.Format, fc.Log.Format)

	durations := []struct {
		dst *time.Duration
		raw string
		key string
	}{
		{&cfg.Server.ReadHeaderTimeout, fc.Server.ReadHeaderTimeout, "server.read_header_timeout"},
		{&cfg.Server.RequestTimeout, fc.Server.RequestTimeout, "server.request_timeout"},
		{&cfg.Server.ShutdownTimeout, fc.Server.ShutdownTimeout, "server.shutdown_timeout"},
		{&cfg.Store.ConnMaxLifetime, fc.Store.ConnMaxLifetime, "store.conn_max_lifetime"},
		{&cfg.Redis.PingTimeout, fc.Redis.PingTimeout, "redis.ping_timeout"},
		{&cfg.Redis.CacheTTL, fc.Redis.CacheTTL, "redis.cache_ttl"},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.raw, d.key); err != nil {
			return err
		}
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, _ := lookup(envPrefix + key)
		return strings.TrimSpace(v)
	}

	setString(&cfg.Server.Addr, get("ADDR"))
	setString(&cfg.Store.Driver, get("STORE_DRIVER"))
	setString(&cfg.Store.DSN, get("DATABASE_URL"))
	setString(&cfg.Store.Table, get("TABLE"))
	setString(&cfg.Redis.URL, get("REDIS_URL"))
	setString(&cfg.Redis.KeyPrefix, get("REDIS_KEY_PREFIX"))
	if brokers := get("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}
	setString(&cfg.Kafka.Topic, get("KAFKA_TOPIC"))
	setString(&cfg.Log.Level, get("LOG_LEVEL"))
	setString(&cfg.Log.Format, get("LOG_FORMAT"))

	if v := get("TRUST_PROXY_HEADERS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sTRUST_PROXY_HEADERS: %w", envPrefix, err)
		}
		cfg.Server.TrustProxyHeaders = b
	}
	if v := get("SEED_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSEED_ON_START: %w", envPrefix, err)
		}
		cfg.Seed.OnStart = b
	}
	if v := get("SEED_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sSEED_COUNT: %w", envPrefix, err)
		}
		cfg.Seed.Count = n
	}
	if err := setDuration(&cfg.Redis.CacheTTL, get("CACHE_TTL"), envPrefix+"CACHE_TTL"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Server.ShutdownTimeout, get("SHUTDOWN_TIMEOUT"), envPrefix+"SHUTDOWN_TIMEOUT"); err != nil {
		return err
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, raw, key string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
