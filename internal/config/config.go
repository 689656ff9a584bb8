package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"
)

// Config is the root configuration of the entitystore binary
type Config struct {
	Logger     LoggerConfig     `yaml:"logger"`
	Server     ServerConfig     `yaml:"http-server"`
	Store      StoreConfig      `yaml:"store"`
	ChangeFeed ChangeFeedConfig `yaml:"changefeed"`
}

type LoggerConfig struct {
	Level string `yaml:"level" env:"ENTITYSTORE_LOG_LEVEL"`
	JSON  bool   `yaml:"json" env:"ENTITYSTORE_LOG_JSON"`
}

type ServerConfig struct {
	Port              int           `yaml:"port" env:"ENTITYSTORE_HTTP_PORT"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"ENTITYSTORE_HTTP_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"ENTITYSTORE_HTTP_SHUTDOWN_TIMEOUT"`
}

// StoreConfig selects the backend and the repository policies.
// Properties are handed to the backend as store.Metadata.
type StoreConfig struct {
	Backend      string            `yaml:"backend" env:"ENTITYSTORE_BACKEND"`
	Properties   map[string]string `yaml:"properties" env:"ENTITYSTORE_BACKEND_PROPERTIES"`
	Concurrency  string            `yaml:"concurrency" env:"ENTITYSTORE_CONCURRENCY"`
	Upsert       bool              `yaml:"upsert" env:"ENTITYSTORE_UPSERT"`
	StrictDelete bool              `yaml:"strict_delete" env:"ENTITYSTORE_STRICT_DELETE"`
}

type ChangeFeedConfig struct {
	Enabled bool     `yaml:"enabled" env:"ENTITYSTORE_CHANGEFEED_ENABLED"`
	Brokers []string `yaml:"brokers" env:"ENTITYSTORE_CHANGEFEED_BROKERS"`
	Topic   string   `yaml:"topic" env:"ENTITYSTORE_CHANGEFEED_TOPIC"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "INFO",
			JSON:  false,
		},
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Store: StoreConfig{
			Backend:     "inmemory",
			Properties:  map[string]string{},
			Concurrency: "none",
		},
		ChangeFeed: ChangeFeedConfig{
			Topic: "entitystore.changes",
		},
	}
}

// Load reads the YAML file at path on top of Default and applies
// ENTITYSTORE_* environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Info("config file not found, using default config", "path", path)
	case err != nil:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks the values Load can not type check
func (c Config) Validate() error {
	switch strings.ToUpper(c.Logger.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid log level %q", c.Logger.Level)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.Server.Port)
	}

	switch c.Store.Concurrency {
	case "none", "optimistic":
	default:
		return fmt.Errorf("invalid concurrency %q, want none or optimistic", c.Store.Concurrency)
	}

	if c.ChangeFeed.Enabled && (len(c.ChangeFeed.Brokers) == 0 || c.ChangeFeed.Topic == "") {
		return errors.New("changefeed needs brokers and a topic")
	}
	return nil
}

// SlogLevel maps the configured level to a slog.Level
func (c LoggerConfig) SlogLevel() slog.Level {
	switch strings.ToUpper(c.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
