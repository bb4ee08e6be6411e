// Package config provides configuration management for the dashboard backend.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Broker        BrokerConfig       `mapstructure:"broker"`
	Stream        StreamConfig       `mapstructure:"stream"`
	Quotes        QuotesConfig       `mapstructure:"quotes"`
	Instruments   InstrumentsConfig  `mapstructure:"instruments"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Credentials   Credentials        `mapstructure:"-"` // Loaded separately
}

// BrokerConfig holds upstream broker API configuration.
type BrokerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	QuoteBatchMax  int           `mapstructure:"quote_batch_max"`
	SessionPath    string        `mapstructure:"session_path"`
}

// StreamConfig holds push-channel configuration.
type StreamConfig struct {
	URL            string        `mapstructure:"url"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// QuotesConfig holds quote polling configuration.
type QuotesConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// InstrumentsConfig holds instrument master cache configuration.
type InstrumentsConfig struct {
	MasterURL string        `mapstructure:"master_url"`
	TTL       time.Duration `mapstructure:"ttl"`
	DBPath    string        `mapstructure:"db_path"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// Credentials holds upstream API credentials.
type Credentials struct {
	ClientID    string `mapstructure:"client_id"`
	SecretKey   string `mapstructure:"secret_key"`
	RedirectURI string `mapstructure:"redirect_uri"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/tradebridge"
	}
	return filepath.Join(home, ".config", "tradebridge")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// A .env in the working directory takes lowest precedence; missing is fine.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// No config file: run on defaults.
	}

	return v.Unmarshal(target)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("broker.base_url", "https://api.fyers.in/api/v3")
	v.SetDefault("broker.request_timeout", 10*time.Second)
	v.SetDefault("broker.quote_batch_max", 50)
	v.SetDefault("broker.session_path", filepath.Join(DefaultConfigDir(), "session.json"))
	v.SetDefault("stream.url", "wss://api.fyers.in/socket/v3/data")
	v.SetDefault("stream.reconnect_delay", 5*time.Second)
	v.SetDefault("quotes.poll_interval", 5*time.Second)
	v.SetDefault("instruments.master_url", "https://public.fyers.in/sym_details/NSE_CM_sym_master.json")
	v.SetDefault("instruments.ttl", 24*time.Hour)
	v.SetDefault("instruments.db_path", filepath.Join(DefaultConfigDir(), "instruments.db"))
	v.SetDefault("notifications.enabled", false)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Credentials may come entirely from the environment.
			return nil
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BROKER_CLIENT_ID"); v != "" {
		cfg.Credentials.ClientID = v
	}
	if v := os.Getenv("BROKER_SECRET_KEY"); v != "" {
		cfg.Credentials.SecretKey = v
	}
	if v := os.Getenv("BROKER_REDIRECT_URI"); v != "" {
		cfg.Credentials.RedirectURI = v
	}
	if v := os.Getenv("BROKER_BASE_URL"); v != "" {
		cfg.Broker.BaseURL = v
	}
	if v := os.Getenv("BROKER_STREAM_URL"); v != "" {
		cfg.Stream.URL = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Broker.BaseURL == "" {
		return fmt.Errorf("broker.base_url must be set")
	}
	if c.Broker.RequestTimeout <= 0 {
		return fmt.Errorf("broker.request_timeout must be positive")
	}
	if c.Broker.QuoteBatchMax <= 0 {
		return fmt.Errorf("broker.quote_batch_max must be positive")
	}
	if c.Stream.ReconnectDelay <= 0 {
		return fmt.Errorf("stream.reconnect_delay must be positive")
	}
	if c.Instruments.TTL <= 0 {
		return fmt.Errorf("instruments.ttl must be positive")
	}
	return nil
}
