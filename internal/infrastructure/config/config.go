package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Local   LocalConfig   `mapstructure:"local"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Session SessionConfig `mapstructure:"session"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Log     LogConfig     `mapstructure:"log"`
}

// LocalConfig points at the on-device SQLite store.
type LocalConfig struct {
	Path string `mapstructure:"path"`
}

// RemoteConfig holds remote database configuration
type RemoteConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Name           string        `mapstructure:"name"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	SSLMode        string        `mapstructure:"sslmode"`
	LogSQL         bool          `mapstructure:"log_sql"`
	MaxConns       int32         `mapstructure:"max_conns"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SessionConfig describes how the signed-in user is resolved.
type SessionConfig struct {
	Token  string `mapstructure:"token"`
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	ChunkSize         int           `mapstructure:"chunk_size"`
	RelationBatchSize int           `mapstructure:"relation_batch_size"`
	Concurrency       int           `mapstructure:"concurrency"`
	Interval          time.Duration `mapstructure:"interval"`
	HistoryEnabled    bool          `mapstructure:"history_enabled"`
	WatchDebounce     time.Duration `mapstructure:"watch_debounce"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	setDefaults()

	// Enable reading from environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read configuration file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("local.path", "./vocsync.db")

	// Remote defaults
	viper.SetDefault("remote.host", "localhost")
	viper.SetDefault("remote.port", 5432)
	viper.SetDefault("remote.name", "vocsync")
	viper.SetDefault("remote.user", "postgres")
	viper.SetDefault("remote.password", "postgres")
	viper.SetDefault("remote.sslmode", "disable")
	viper.SetDefault("remote.log_sql", false)
	viper.SetDefault("remote.max_conns", 10)
	viper.SetDefault("remote.request_timeout", 10*time.Second)

	viper.SetDefault("session.token", "")
	viper.SetDefault("session.secret", "")
	viper.SetDefault("session.issuer", "vocsync")

	// Sync defaults
	viper.SetDefault("sync.chunk_size", 50)
	viper.SetDefault("sync.relation_batch_size", 100)
	viper.SetDefault("sync.concurrency", 1)
	viper.SetDefault("sync.interval", 5*time.Minute)
	viper.SetDefault("sync.history_enabled", true)
	viper.SetDefault("sync.watch_debounce", 500*time.Millisecond)

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.max_size_mb", 20)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age_days", 28)
}

// RemoteURL returns the PostgreSQL connection string
func (c *Config) RemoteURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Remote.User, c.Remote.Password),
		Host:     fmt.Sprintf("%s:%d", c.Remote.Host, c.Remote.Port),
		Path:     "/" + c.Remote.Name,
		RawQuery: url.Values{"sslmode": []string{c.Remote.SSLMode}}.Encode(),
	}
	return u.String()
}
