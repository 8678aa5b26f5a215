package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const DEFAULT_SUPPORT_URL = "https://github.com/sensor-dashboard/sensor-dashboard"
const QR_IMAGE_SIZE = 256

type Config struct {
	// Secret key for signing session tokens. Must be set in production.
	Secret     string `mapstructure:"secret"`
	NonceStore string `mapstructure:"nonce_store"`
	// Interval in seconds between expired nonce sweeps.
	NonceJanitorInterval uint   `mapstructure:"nonce_janitor_interval"`
	LogLevel             string `mapstructure:"log_level"`
	LogFormat            string `mapstructure:"log_format"` // "json" or "text"

	ListenAddress string `mapstructure:"listen_address"`

	// Comma separated list of allowed CIDR networks. Empty means allow all.
	AllowedNetworks string `mapstructure:"allowed_networks"`

	// Optional YAML permission table overriding the built-in one.
	PolicyFile string `mapstructure:"policy_file"`

	// User authentication TTL in days.
	UserAuthTTL uint `mapstructure:"user_auth_ttl"`

	// Number of entries shown on the history page.
	HistoryLimit int `mapstructure:"history_limit"`
	// Number of recent history entries scanned when discovering MAC addresses.
	DiscoveryLimit int `mapstructure:"discovery_limit"`

	// Login attempts allowed per minute per client, and burst size.
	LoginRate  float64 `mapstructure:"login_rate"`
	LoginBurst int     `mapstructure:"login_burst"`

	BaseURL    string `mapstructure:"base_url"` // Base URL for the application. May be relative, e.g. /dashboard/, or absolute.
	SupportURL string `mapstructure:"support_url"`

	Storage Storage `mapstructure:"storage"`

	MQTT MQTTConfig `mapstructure:"mqtt"`
}

var Cfg *Config

// Check if running in Docker container by checking for the presence of /.dockerenv file
func runningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

func getConfigPath() string {
	if runningInDocker() {
		return "/app/instance"
	}
	return "./instance"
}

// LoadConfig reads configuration from config file and environment variables and returns a Config struct.
func LoadConfig(configFile ...string) (*Config, error) {
	var cfg Config

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(getConfigPath())
	v.AddConfigPath(".")

	for _, path := range configFile {
		if path != "" {
			v.SetConfigFile(path)
		}
	}

	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	// storage.local.path -> STORAGE_LOCAL_PATH
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
		slog.Debug("No config file found, using defaults and environment")
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Convert relative sqlite path to absolute instance folder
	if cfg.Storage.SQLite != nil && cfg.Storage.SQLite.Path != "" {
		if cfg.Storage.SQLite.Path == ":memory:" {
			// In-memory database, do nothing
		} else if !os.IsPathSeparator(cfg.Storage.SQLite.Path[0]) {
			cfg.Storage.SQLite.Path = fmt.Sprintf("%s/%s", getConfigPath(), strings.TrimPrefix(cfg.Storage.SQLite.Path, "./"))
		}
	}

	if cfg.HistoryLimit <= 0 {
		slog.Warn("HISTORY_LIMIT must be positive", slog.Int("actual", cfg.HistoryLimit))
		cfg.HistoryLimit = defaults["history_limit"].(int)
	}

	// Warn if secret is missing - this is a critical security setting for production
	if cfg.Secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("SECRET configuration variable is required in production")
		} else {
			slog.Warn("Secret is not set. Do not use in production.")
		}
	}

	return &cfg, nil
}
