// Package config loads aquaguard settings from defaults, an optional config
// file, a .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the aquaguard binaries
type Config struct {
	Backend   BackendConfig   `mapstructure:"backend"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

// BackendConfig describes the REST backend the dashboard talks to
type BackendConfig struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
}

// TelegramConfig holds the chat view credentials
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// OpenAIConfig holds the free-text agent credentials. An empty key disables it.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// StoreConfig locates the local complaint and report database
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig selects the zap level and encoder
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SimulatorConfig drives cmd/simulator
type SimulatorConfig struct {
	Devices  int           `mapstructure:"devices"`
	Interval time.Duration `mapstructure:"interval"`
}

// GetDefaultConfig returns the built-in defaults
func GetDefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:     "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Path: filepath.Join("data", "aquaguard.db"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Simulator: SimulatorConfig{
			Devices:  3,
			Interval: 10 * time.Second,
		},
	}
}

const envPrefix = "AQUAGUARD"

// envBindings maps configuration keys to the environment variables that set them.
// When several names are listed the first one that is set wins.
var envBindings = map[string][]string{
	"backend.url":         {"AQUAGUARD_BACKEND_URL", "REACT_APP_BACKEND_URL"},
	"backend.timeout":     {"AQUAGUARD_BACKEND_TIMEOUT"},
	"backend.retry_count": {"AQUAGUARD_BACKEND_RETRY_COUNT"},
	"telegram.token":      {"TELEGRAM_BOT_TOKEN"},
	"openai.api_key":      {"OPENAI_API_KEY"},
	"store.path":          {"AQUAGUARD_DB_PATH"},
	"log.level":           {"LOG_LEVEL"},
	"log.format":          {"LOG_FORMAT"},
	"simulator.devices":   {"SIMULATOR_DEVICES"},
	"simulator.interval":  {"SIMULATOR_INTERVAL"},
}

// LoadConfig loads configuration from path/config.yaml, path/.env and the
// environment. Missing files are not an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "."
	}

	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	defaults := GetDefaultConfig()
	v.SetDefault("backend.url", defaults.Backend.URL)
	v.SetDefault("backend.timeout", defaults.Backend.Timeout)
	v.SetDefault("backend.retry_count", defaults.Backend.RetryCount)
	v.SetDefault("telegram.token", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("store.path", defaults.Store.Path)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("simulator.devices", defaults.Simulator.Devices)
	v.SetDefault("simulator.interval", defaults.Simulator.Interval)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// every key is also readable as AQUAGUARD_<KEY>, e.g. AQUAGUARD_STORE_PATH
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if cfg.Backend.URL == "" {
		cfg.Backend.URL = defaults.Backend.URL
	}
	cfg.Backend.URL = strings.TrimRight(cfg.Backend.URL, "/")
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = defaults.Backend.Timeout
	}
	if cfg.Backend.RetryCount < 0 {
		cfg.Backend.RetryCount = 0
	}

	return &cfg, nil
}
