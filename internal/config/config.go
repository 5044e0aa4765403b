// Package config loads relay settings from a YAML file, an optional .env
// file and RELAY_* environment variables, in that order of precedence.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RELAY_"

// Config is the full runtime configuration.
type Config struct {
	DevIDs []int64           `mapstructure:"dev_ids"`
	Admins map[int64][]int64 `mapstructure:"admins"`
	Log    LogConfig         `mapstructure:"log"`
	HTTP   HTTPConfig        `mapstructure:"http"`
	Store  StoreConfig       `mapstructure:"store"`
	Lock   LockConfig        `mapstructure:"lock"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type StoreConfig struct {
	Driver string      `mapstructure:"driver"`
	Redis  RedisConfig `mapstructure:"redis"`
	SQLite struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"sqlite"`

	Encryption EncryptionConfig `mapstructure:"encryption"`

	// Redact lists regular expressions; matching session data keys are
	// masked in session listings.
	Redact []string `mapstructure:"redact"`
}

// EncryptionConfig holds base64 encoded AES-256 keys. An empty Key disables
// encryption at rest.
type EncryptionConfig struct {
	Key          string   `mapstructure:"key"`
	FallbackKeys []string `mapstructure:"fallback_keys"`
}

// Decode returns the raw active and fallback keys.
func (e EncryptionConfig) Decode() (active []byte, fallback [][]byte, err error) {
	active, err = decodeKey(e.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("store.encryption.key: %w", err)
	}
	for i, k := range e.FallbackKeys {
		raw, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("store.encryption.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, raw)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(raw))
	}
	return raw, nil
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type LockConfig struct {
	// Distributed adds a Redis lock on top of the in-process one. Requires
	// the redis store driver.
	Distributed bool          `mapstructure:"distributed"`
	TTL         time.Duration `mapstructure:"ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	c := Config{
		Log:  LogConfig{Level: "info", Format: "text"},
		HTTP: HTTPConfig{Addr: ":8080"},
		Store: StoreConfig{
			Driver: "memory",
			Redis:  RedisConfig{Addr: "localhost:6379", Prefix: "relay:session:"},
		},
		Lock: LockConfig{TTL: 30 * time.Second},
	}
	c.Store.SQLite.Path = "relay.db"
	return c
}

// envKeys maps environment variables (without prefix) to config paths.
var envKeys = map[string]string{
	"DEV_IDS":          "dev_ids",
	"LOG_LEVEL":        "log.level",
	"LOG_FORMAT":       "log.format",
	"HTTP_ADDR":        "http.addr",
	"STORE_DRIVER":     "store.driver",
	"REDIS_ADDR":       "store.redis.addr",
	"REDIS_PASSWORD":   "store.redis.password",
	"REDIS_DB":         "store.redis.db",
	"REDIS_PREFIX":     "store.redis.prefix",
	"REDIS_TTL":        "store.redis.ttl",
	"SQLITE_PATH":      "store.sqlite.path",
	"ENCRYPTION_KEY":   "store.encryption.key",
	"STORE_REDACT":     "store.redact",
	"LOCK_DISTRIBUTED": "lock.distributed",
	"LOCK_TTL":         "lock.ttl",
}

// Load reads path (may be empty) and applies .env and environment overrides
// on top of Default.
func Load(path string) (Config, error) {
	raw := map[string]any{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	applyEnv(raw, os.LookupEnv)

	cfg := Default()
	if err := decode(raw, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(raw map[string]any, lookup func(string) (string, bool)) {
	for key, path := range envKeys {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		setPath(raw, strings.Split(path, "."), v)
	}
}

func setPath(m map[string]any, parts []string, v any) {
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}

func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Lock.Distributed && c.Store.Driver != "redis" {
		return errors.New("lock.distributed requires the redis store driver")
	}
	if c.Lock.TTL <= 0 {
		return errors.New("lock.ttl must be positive")
	}
	if c.Store.Encryption.Key != "" {
		if _, _, err := c.Store.Encryption.Decode(); err != nil {
			return err
		}
	} else if len(c.Store.Encryption.FallbackKeys) > 0 {
		return errors.New("store.encryption.fallback_keys requires store.encryption.key")
	}
	for _, p := range c.Store.Redact {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("store.redact: %w", err)
		}
	}
	return nil
}
