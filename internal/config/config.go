// Package config loads application configuration from an optional YAML file
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Database drivers accepted in DBDriver.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Log formats accepted in LogFormat.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds the application configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DBDriver   string `yaml:"db_driver"`
	DBPath     string `yaml:"db_path"`
	DBDSN      string `yaml:"db_dsn"`

	// EncryptionKey is the base64-encoded active key. It may be empty, in
	// which case credential operations fail until one is configured.
	EncryptionKey string `yaml:"encryption_key"`

	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`

	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	SecureCookies bool   `yaml:"secure_cookies"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		ListenAddr: "127.0.0.1:8080",
		DBDriver:   DriverSQLite,
		DBPath:     "infrapanel.db",
		LogLevel:   "info",
		LogFormat:  LogFormatText,
	}
}

// HasEncryptionKey returns true when an active encryption key is configured.
func (c *Config) HasEncryptionKey() bool {
	return c.EncryptionKey != ""
}

// HasBootstrapAdmin returns true when both bootstrap admin fields are set.
func (c *Config) HasBootstrapAdmin() bool {
	return c.AdminUsername != "" && c.AdminPassword != ""
}

// Load builds a Config from defaults, then the YAML file named by
// INFRAPANEL_CONFIG (if set), then INFRAPANEL_* environment variables, and
// validates the result. Environment variables always win over the file.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("INFRAPANEL_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("INFRAPANEL_CONFIG %q: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges a YAML file into c. Unknown keys are rejected.
func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"INFRAPANEL_LISTEN_ADDR":    &c.ListenAddr,
		"INFRAPANEL_DB_DRIVER":      &c.DBDriver,
		"INFRAPANEL_DB_PATH":        &c.DBPath,
		"INFRAPANEL_DB_DSN":         &c.DBDSN,
		"INFRAPANEL_ENCRYPTION_KEY": &c.EncryptionKey,
		"INFRAPANEL_ADMIN_USERNAME": &c.AdminUsername,
		"INFRAPANEL_ADMIN_PASSWORD": &c.AdminPassword,
		"INFRAPANEL_LOG_LEVEL":      &c.LogLevel,
		"INFRAPANEL_LOG_FORMAT":     &c.LogFormat,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("INFRAPANEL_SECURE_COOKIES"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("INFRAPANEL_SECURE_COOKIES has invalid boolean %q: %w", v, err)
		}
		c.SecureCookies = parsed
	}
	return nil
}

func (c *Config) validate() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("db path is required for the sqlite driver")
		}
	case DriverMySQL:
		if c.DBDSN == "" {
			return errors.New("INFRAPANEL_DB_DSN is required for the mysql driver")
		}
	default:
		return fmt.Errorf("unsupported db driver %q: expected %s or %s", c.DBDriver, DriverSQLite, DriverMySQL)
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return fmt.Errorf("unsupported log format %q: expected %s or %s", c.LogFormat, LogFormatText, LogFormatJSON)
	}

	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		return errors.New("INFRAPANEL_ADMIN_USERNAME and INFRAPANEL_ADMIN_PASSWORD must be set together")
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// NewLogger returns a slog.Logger writing to w in the configured format and level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
