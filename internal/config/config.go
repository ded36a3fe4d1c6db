package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rpggio/caseload/internal/domain/tier"
	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Transport   TransportConfig   `yaml:"transport"`
	DB          DBConfig          `yaml:"db"`
	Log         LogConfig         `yaml:"log"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Auth        AuthConfig        `yaml:"auth"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Tiers       []tier.Plan       `yaml:"tiers"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"` // "stdio" or "http"
}

type DBConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type CoordinatorConfig struct {
	CallTimeout      time.Duration `yaml:"call_timeout"`
	AutoConsultation bool          `yaml:"auto_consultation"`
}

type AuthConfig struct {
	Enabled       bool          `yaml:"enabled"`
	DefaultClinic string        `yaml:"default_clinic"`
	DefaultRole   string        `yaml:"default_role"`
	KeyCacheTTL   time.Duration `yaml:"key_cache_ttl"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: "stdio",
		},
		DB: DBConfig{
			Driver: "sqlite",
			Path:   "caseload.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Coordinator: CoordinatorConfig{
			CallTimeout:      5 * time.Second,
			AutoConsultation: true,
		},
		Auth: AuthConfig{
			DefaultClinic: "default",
			DefaultRole:   "clinic_admin",
			KeyCacheTTL:   time.Minute,
		},
	}
}

// Load reads a .env file, an optional YAML file and environment variables,
// in that order of increasing precedence over the defaults.
func Load() (Config, error) {
	envFile := os.Getenv("CASELOAD_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CASELOAD_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid transport mode %q", c.Transport.Mode)
	}
	switch c.DB.Driver {
	case "sqlite":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("invalid db driver %q", c.DB.Driver)
	}
	if c.Coordinator.CallTimeout <= 0 {
		return fmt.Errorf("coordinator.call_timeout must be positive")
	}
	return nil
}

// Catalog returns the tier catalog, with configured plans replacing the
// defaults of the same tier.
func (c Config) Catalog() (*tier.Catalog, error) {
	if len(c.Tiers) == 0 {
		return tier.Default(), nil
	}
	plans := append(append([]tier.Plan{}, tier.DefaultPlans...), c.Tiers...)
	return tier.NewCatalog(plans...)
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("CASELOAD_SERVER_HOST", &cfg.Server.Host)
	setString("CASELOAD_TRANSPORT_MODE", &cfg.Transport.Mode)
	setString("CASELOAD_DB_DRIVER", &cfg.DB.Driver)
	setString("CASELOAD_DB_PATH", &cfg.DB.Path)
	setString("CASELOAD_DB_DSN", &cfg.DB.DSN)
	setString("CASELOAD_LOG_LEVEL", &cfg.Log.Level)
	setString("CASELOAD_LOG_PATH", &cfg.Log.Path)
	setString("CASELOAD_DEFAULT_CLINIC", &cfg.Auth.DefaultClinic)
	setString("CASELOAD_DEFAULT_ROLE", &cfg.Auth.DefaultRole)
	setString("CASELOAD_METRICS_ADDR", &cfg.Metrics.Addr)

	if v := os.Getenv("CASELOAD_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CASELOAD_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("CASELOAD_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CASELOAD_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = enabled
	}
	if v := os.Getenv("CASELOAD_AUTO_CONSULTATION"); v != "" {
		auto, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CASELOAD_AUTO_CONSULTATION: %w", err)
		}
		cfg.Coordinator.AutoConsultation = auto
	}
	if v := os.Getenv("CASELOAD_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid CASELOAD_CALL_TIMEOUT: %w", err)
		}
		cfg.Coordinator.CallTimeout = d
	}
	if v := os.Getenv("CASELOAD_KEY_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid CASELOAD_KEY_CACHE_TTL: %w", err)
		}
		cfg.Auth.KeyCacheTTL = d
	}
	return nil
}
