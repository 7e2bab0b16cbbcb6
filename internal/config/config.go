// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend kinds.
const (
	BackendPostgres = "postgres"
	BackendREST     = "rest"
	BackendMemory   = "memory"
)

// DefaultJobQueue is used when rabbitmq.queue is empty.
const DefaultJobQueue = "maintenance_jobs"

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	// Backend is the store whose collections are probed and smoke tested.
	// APIKey is only ever read from the environment.
	Backend struct {
		Kind   string `yaml:"kind"`
		URL    string `yaml:"url"`
		APIKey string `yaml:"-"`
		Limit  int    `yaml:"limit"`
	} `yaml:"backend"`

	RabbitMQ struct {
		URL   string `yaml:"url"`
		Queue string `yaml:"queue"`
	} `yaml:"rabbitmq"`

	Workers int `yaml:"workers"`

	Auth struct {
		JWTSecret string `yaml:"-"`
	} `yaml:"auth"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Environment overrides. Secrets have no yaml counterpart.
const (
	EnvDatabaseURL = "HRTOOL_DATABASE_URL"
	EnvBackendKind = "HRTOOL_BACKEND_KIND"
	EnvBackendURL  = "HRTOOL_BACKEND_URL"
	EnvBackendKey  = "HRTOOL_BACKEND_KEY"
	EnvRabbitURL   = "HRTOOL_RABBITMQ_URL"
	EnvWorkers     = "HRTOOL_WORKERS"
	EnvJWTSecret   = "HRTOOL_JWT_SECRET"
	EnvLogLevel    = "HRTOOL_LOG_LEVEL"
	EnvServerAddr  = "HRTOOL_SERVER_ADDR"
)

func (c *Config) setDefaults() {
	c.Server.Addr = ":8080"
	c.Backend.Kind = BackendPostgres
	c.Backend.Limit = 100
	c.RabbitMQ.Queue = DefaultJobQueue
	c.Workers = 2
	c.Log.Level = "info"
	c.Log.Format = "console"
}

// LoadConfig applies defaults, then the yaml file at path (skipped when the
// file does not exist), then .env and process environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.setDefaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// .env is optional; real environment variables take precedence over it.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString(&c.Database.URL, EnvDatabaseURL)
	setString(&c.Backend.Kind, EnvBackendKind)
	setString(&c.Backend.URL, EnvBackendURL)
	setString(&c.Backend.APIKey, EnvBackendKey)
	setString(&c.RabbitMQ.URL, EnvRabbitURL)
	setString(&c.Auth.JWTSecret, EnvJWTSecret)
	setString(&c.Log.Level, EnvLogLevel)
	setString(&c.Server.Addr, EnvServerAddr)

	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks the settings required by the selected backend.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend.Kind {
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, fmt.Errorf("database.url (or %s) is required for the postgres backend", EnvDatabaseURL))
		}
	case BackendREST:
		if c.Backend.URL == "" {
			errs = append(errs, fmt.Errorf("backend.url (or %s) is required for the rest backend", EnvBackendURL))
		}
		if c.Backend.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s is required for the rest backend", EnvBackendKey))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown backend kind %q", c.Backend.Kind))
	}
	if c.Workers < 1 {
		errs = append(errs, errors.New("workers must be at least 1"))
	}
	return errors.Join(errs...)
}
