package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds the server settings. Values come from Default, then the
// optional YAML file, then the environment.
type Config struct {
	Port           string        `yaml:"port" env:"PORT"`
	LogLevel       string        `yaml:"log_level" env:"LOG_LEVEL"`
	SweepInterval  time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`

	WebSocket WebSocketConfig `yaml:"websocket"`
	NATS      NATSConfig      `yaml:"nats"`
}

type WebSocketConfig struct {
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"WS_WRITE_TIMEOUT"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"WS_READ_TIMEOUT"`
	PingInterval   time.Duration `yaml:"ping_interval" env:"WS_PING_INTERVAL"`
	MaxMessageSize int64         `yaml:"max_message_size" env:"WS_MAX_MESSAGE_SIZE"`
}

// NATSConfig configures the optional event bus. An empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url" env:"NATS_URL"`
	Stream        string `yaml:"stream" env:"NATS_STREAM"`
	SubjectPrefix string `yaml:"subject_prefix" env:"NATS_SUBJECT_PREFIX"`
}

func Default() Config {
	return Config{
		Port:           "8080",
		LogLevel:       "info",
		SweepInterval:  time.Minute,
		AllowedOrigins: []string{"*"},
		WebSocket: WebSocketConfig{
			WriteTimeout:   10 * time.Second,
			ReadTimeout:    60 * time.Second,
			PingInterval:   30 * time.Second,
			MaxMessageSize: 64 * 1024,
		},
		NATS: NATSConfig{
			Stream:        "SONGDUEL_EVENTS",
			SubjectPrefix: "songduel.events",
		},
	}
}

// Load builds the configuration. path may be empty. A .env file in the
// working directory, if present, is loaded into the environment first.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate rejects settings the server cannot run with
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket read timeout (%s) must exceed ping interval (%s)", c.WebSocket.ReadTimeout, c.WebSocket.PingInterval)
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("websocket max message size must be positive, got %d", c.WebSocket.MaxMessageSize)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel
func (c Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// EventBusEnabled reports whether a NATS URL was configured
func (c Config) EventBusEnabled() bool {
	return c.NATS.URL != ""
}
