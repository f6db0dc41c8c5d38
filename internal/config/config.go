package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries everything the SDK needs at construction time. Hosts
// either fill the struct directly or load it from a YAML file.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Backend  BackendConfig  `yaml:"backend"`
	Session  SessionConfig  `yaml:"session"`
	Storage  StorageConfig  `yaml:"storage"`
	Collect  CollectConfig  `yaml:"collect"`
	Renderer RendererConfig `yaml:"renderer"`
}

type AppConfig struct {
	ID string `yaml:"id"`
}

type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	// Timeout applies per request; zero means DefaultRequestTimeout.
	Timeout time.Duration `yaml:"timeout"`
	// AuthRetryInterval is the fixed delay between failed device
	// registration attempts. Zero means DefaultAuthRetryInterval.
	AuthRetryInterval time.Duration `yaml:"auth_retry_interval"`
}

type SessionConfig struct {
	// IdleThreshold is the inactivity window after which the session is
	// considered over. Zero means DefaultIdleThreshold.
	IdleThreshold time.Duration `yaml:"idle_threshold"`
}

type StorageConfig struct {
	// Backend selects the durable store: "memory", "file" or "redis".
	Backend string `yaml:"backend"`
	// Path is the store file location when Backend is "file".
	Path string `yaml:"path"`
	// Redis settings when Backend is "redis".
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// KeyPrefix namespaces the hash holding SDK state.
	KeyPrefix string `yaml:"key_prefix"`
}

type CollectConfig struct {
	// ProbeTimeout bounds how long Collect waits for any single probe.
	// Zero means DefaultProbeTimeout.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

type RendererConfig struct {
	// Margin reserved on every side of the viewport, in device pixels.
	Margin float64 `yaml:"margin"`
	// CustomHost means overlays mount inside a host-provided container
	// rather than the window, so covering roots position absolute
	// instead of fixed.
	CustomHost bool `yaml:"custom_host"`
}

const (
	DefaultBaseURL           = "https://api.letscooee.com"
	DefaultRequestTimeout    = 15 * time.Second
	DefaultAuthRetryInterval = 30 * time.Second
	DefaultIdleThreshold     = 30 * time.Minute
	DefaultProbeTimeout      = 2 * time.Second
	DefaultMargin            = 16.0
)

// Load reads a YAML config file, expanding ${ENV} references before
// unmarshalling, then applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = DefaultBaseURL
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = DefaultRequestTimeout
	}
	if c.Backend.AuthRetryInterval == 0 {
		c.Backend.AuthRetryInterval = DefaultAuthRetryInterval
	}
	if c.Session.IdleThreshold == 0 {
		c.Session.IdleThreshold = DefaultIdleThreshold
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Collect.ProbeTimeout == 0 {
		c.Collect.ProbeTimeout = DefaultProbeTimeout
	}
	if c.Renderer.Margin == 0 {
		c.Renderer.Margin = DefaultMargin
	}
}
