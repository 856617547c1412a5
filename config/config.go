// Package config loads roboforge configuration. Precedence: built-in
// defaults, then an optional YAML file, then environment variables. The
// two service credentials only come from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/roboforge/types"
)

// Environment variable names.
const (
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvMeshyAPIKey  = "MESHY_AI_API_KEY"
	EnvDataDir      = "ROBOFORGE_DATA_DIR"
	EnvAddr         = "ROBOFORGE_ADDR"
	EnvRedisAddr    = "ROBOFORGE_REDIS_ADDR"
)

// Config is the complete roboforge configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Meshy     MeshyConfig     `yaml:"meshy"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// GeminiConfig configures the multimodal generation service client.
type GeminiConfig struct {
	APIKey     string        `yaml:"-"` // environment only, never from file
	BaseURL    string        `yaml:"base_url"`
	StatsModel string        `yaml:"stats_model"`
	ImageModel string        `yaml:"image_model"`
	Timeout    time.Duration `yaml:"timeout"`
}

// MeshyConfig configures the 3D asset service client.
type MeshyConfig struct {
	APIKey          string        `yaml:"-"` // environment only, never from file
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxPollAttempts int           `yaml:"max_poll_attempts"`
}

// StorageConfig locates local assets and the results database.
type StorageConfig struct {
	DataDir      string `yaml:"data_dir"`
	DatabaseFile string `yaml:"database_file"` // relative to DataDir unless absolute
}

// RedisConfig configures the optional Redis progress fan-out.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Gemini: GeminiConfig{
			Timeout: 120 * time.Second,
		},
		Meshy: MeshyConfig{
			Timeout:         60 * time.Second,
			MaxPollAttempts: 120,
		},
		Storage: StorageConfig{
			DataDir:      "data",
			DatabaseFile: "robots.db",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "roboforge:pipeline",
		},
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "roboforge",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty), and finally the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Gemini.APIKey = os.Getenv(EnvGeminiAPIKey)
	c.Meshy.APIKey = os.Getenv(EnvMeshyAPIKey)
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Redis.Enabled = true
		c.Redis.Addr = v
	}
}

// Validate checks that both service credentials are present. A missing
// credential is fatal and surfaced verbatim; nothing retries it.
func (c Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return types.Errorf(types.ErrConfigMissing, "%s not set", EnvGeminiAPIKey)
	}
	if c.Meshy.APIKey == "" {
		return types.Errorf(types.ErrConfigMissing, "%s not set", EnvMeshyAPIKey)
	}
	return nil
}

// DatabasePath resolves the database file against the data directory.
func (c Config) DatabasePath() string {
	if len(c.Storage.DatabaseFile) > 0 && os.IsPathSeparator(c.Storage.DatabaseFile[0]) {
		return c.Storage.DatabaseFile
	}
	return c.Storage.DataDir + string(os.PathSeparator) + c.Storage.DatabaseFile
}
