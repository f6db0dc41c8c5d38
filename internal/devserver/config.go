package devserver

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config drives the development backend. It is loaded from YAML with
// ${ENV} references expanded.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Apps      AppsConfig      `yaml:"apps"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	GeoIP     GeoIPConfig     `yaml:"geoip"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	HTTPPort int `yaml:"http_port"`
}

type AppsConfig struct {
	// IDs lists the application ids accepted by device validation.
	// Empty means every id is accepted, which suits local development.
	IDs []string `yaml:"ids"`
	// TokenTTL bounds how long an issued SDK token stays valid.
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type KafkaConfig struct {
	Brokers []string          `yaml:"brokers"`
	Topics  map[string]string `yaml:"topics"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type GeoIPConfig struct {
	DatabasePath string `yaml:"database_path"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
}

// LoadConfig reads a YAML config file, expanding environment variable
// references before unmarshalling.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Apps.TokenTTL == 0 {
		cfg.Apps.TokenTTL = 24 * time.Hour
	}
	return &cfg, nil
}
