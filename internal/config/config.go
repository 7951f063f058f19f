// Package config loads the sketchy configuration.
//
// Sources are applied in order: built-in defaults, a YAML (or JSON) file,
// then SKETCHY_* environment variables. Command-line flags are applied last
// by the commands themselves.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/aretw0/sketchy/internal/logging"
	"github.com/aretw0/sketchy/pkg/persistence/middleware"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no explicit path is given. Its absence is not an error.
const DefaultFile = "sketchy.yaml"

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ProviderConfig struct {
	Analyze    string `mapstructure:"analyze"`
	Regenerate string `mapstructure:"regenerate"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// StoreConfig selects where the workflow record lives.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // memory | file | redis
	Dir    string `mapstructure:"dir"`
	Key    string `mapstructure:"key"`

	// EncryptionKey is a base64 AES-256 key. Empty disables encryption.
	EncryptionKey string `mapstructure:"encryption_key"`

	Redis RedisConfig `mapstructure:"redis"`
}

// ServerConfig configures the development backend.
type ServerConfig struct {
	Addr               string        `mapstructure:"addr"`
	Store              string        `mapstructure:"store"` // memory | redis
	ArtifactTTL        time.Duration `mapstructure:"artifact_ttl"`
	MaxDimension       int           `mapstructure:"max_dimension"`
	MaxUploadDimension int           `mapstructure:"max_upload_dimension"`
	MaxUploadBytes     int64         `mapstructure:"max_upload_bytes"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config is the whole configuration.
type Config struct {
	API       APIConfig      `mapstructure:"api"`
	Providers ProviderConfig `mapstructure:"providers"`
	Store     StoreConfig    `mapstructure:"store"`
	Server    ServerConfig   `mapstructure:"server"`
	Log       LogConfig      `mapstructure:"log"`
	Metrics   MetricsConfig  `mapstructure:"metrics"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080/api/v1",
			Timeout: 2 * time.Minute,
		},
		Providers: ProviderConfig{
			Analyze:    "openai",
			Regenerate: "stabilityai",
		},
		Store: StoreConfig{
			Driver: "file",
			Dir:    ".sketchy/state",
			Key:    "sketchyState",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "sketchy:",
			},
		},
		Server: ServerConfig{
			Addr:               ":8080",
			Store:              "memory",
			ArtifactTTL:        24 * time.Hour,
			MaxDimension:       2048,
			MaxUploadDimension: 4096,
			MaxUploadBytes:     32 << 20,
		},
		Log: LogConfig{Level: "info"},
	}
}

// envBindings maps environment variables to config paths.
var envBindings = map[string]string{
	"SKETCHY_API_BASE_URL":                "api.base_url",
	"SKETCHY_API_TIMEOUT":                 "api.timeout",
	"SKETCHY_PROVIDERS_ANALYZE":           "providers.analyze",
	"SKETCHY_PROVIDERS_REGENERATE":        "providers.regenerate",
	"SKETCHY_STORE_DRIVER":                "store.driver",
	"SKETCHY_STORE_DIR":                   "store.dir",
	"SKETCHY_STORE_KEY":                   "store.key",
	"SKETCHY_STORE_ENCRYPTION_KEY":        "store.encryption_key",
	"SKETCHY_STORE_REDIS_ADDR":            "store.redis.addr",
	"SKETCHY_STORE_REDIS_PASSWORD":        "store.redis.password",
	"SKETCHY_STORE_REDIS_DB":              "store.redis.db",
	"SKETCHY_STORE_REDIS_PREFIX":          "store.redis.prefix",
	"SKETCHY_STORE_REDIS_TTL":             "store.redis.ttl",
	"SKETCHY_SERVER_ADDR":                 "server.addr",
	"SKETCHY_SERVER_STORE":                "server.store",
	"SKETCHY_SERVER_ARTIFACT_TTL":         "server.artifact_ttl",
	"SKETCHY_SERVER_MAX_DIMENSION":        "server.max_dimension",
	"SKETCHY_SERVER_MAX_UPLOAD_DIMENSION": "server.max_upload_dimension",
	"SKETCHY_SERVER_MAX_UPLOAD_BYTES":     "server.max_upload_bytes",
	"SKETCHY_LOG_LEVEL":                   "log.level",
	"SKETCHY_METRICS_ADDR":                "metrics.addr",
}

// Load reads the configuration from path (or DefaultFile when path is empty)
// and the environment.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	raw, err := readFile(path)
	if err != nil {
		return cfg, err
	}

	for env, key := range envBindings {
		if v, ok := lookup(env); ok {
			setPath(raw, key, v)
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(raw); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, cfg.Validate()
}

func readFile(path string) (map[string]any, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// JSON is valid YAML, so one parser covers both.
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return raw, nil
}

func setPath(m map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
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

// Validate checks the values that would otherwise fail late.
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "memory", "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	switch c.Server.Store {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("server.store: unknown driver %q", c.Server.Store))
	}
	if c.Store.EncryptionKey != "" {
		if _, err := middleware.DecodeKey(c.Store.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("store.encryption_key: %w", err))
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Server.MaxDimension <= 0 || c.Server.MaxUploadDimension < c.Server.MaxDimension {
		errs = append(errs, fmt.Errorf("server: max_upload_dimension (%d) must be >= max_dimension (%d) > 0",
			c.Server.MaxUploadDimension, c.Server.MaxDimension))
	}

	return errors.Join(errs...)
}
