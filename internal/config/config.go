// Package config loads the immutable process configuration: TOML file first,
// then POSTGRES_* environment overrides matching the original deployment
// contract. The resulting value is constructed once at startup and passed by
// reference; nothing mutates it afterwards.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
	Audit    AuditConfig    `toml:"audit"`
}

type DatabaseConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	Name              string `toml:"name"`
	User              string `toml:"user"`
	Password          string `toml:"password"`
	ConnectTimeoutSec int    `toml:"connect_timeout_sec"`
	QueryTimeoutSec   int    `toml:"query_timeout_sec"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type AuditConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:              "localhost",
			Port:              5432,
			Name:              "analytics_db",
			User:              "analytics_user",
			Password:          "analytics_password",
			ConnectTimeoutSec: 10,
			QueryTimeoutSec:   30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Audit: AuditConfig{
			Enabled: false,
			Path:    "datagate_audit.db",
		},
	}
}

// Load reads the config file (datagate.toml by default), then applies
// environment overrides. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = "datagate.toml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid POSTGRES_PORT %q: %w", v, err)
		}
		cfg.Database.Port = port
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DATAGATE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// DSN renders the PostgreSQL connection URL. Credentials are URL-escaped, so
// passwords with special characters survive intact.
func (c *Config) DSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Database.User, c.Database.Password),
		Host:   net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port)),
		Path:   "/" + c.Database.Name,
	}
	if c.Database.ConnectTimeoutSec > 0 {
		q := url.Values{}
		q.Set("connect_timeout", strconv.Itoa(c.Database.ConnectTimeoutSec))
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// QueryTimeout bounds a single statement execution.
func (c *Config) QueryTimeout() time.Duration {
	if c.Database.QueryTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Database.QueryTimeoutSec) * time.Second
}
