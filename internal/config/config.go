// Package config loads and validates Bunsho YAML configuration.
// It applies defaults so the daemon can rely on fully populated values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Location is an administrator-configured named root directory.
// Clients address locations by their index in the config array.
type Location struct {
	Name string `yaml:"name"`
	Dir  string `yaml:"dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds token signing secrets and lifetimes.
type AuthConfig struct {
	AccessTokenSecret  string        `yaml:"access_token_secret"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl"`
}

// Config mirrors the bunsho.yaml schema.
type Config struct {
	Log       LogConfig  `yaml:"log"`
	HTTP      HTTPConfig `yaml:"http"`
	DB        DBConfig   `yaml:"db"`
	Auth      AuthConfig `yaml:"auth"`
	Locations []Location `yaml:"locations"`
}

// Load reads a YAML config file, applies defaults, and validates it.
// It returns a fully populated Config or a descriptive error.
func Load(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, errors.New("config path is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	applyDefaults(&c)
	if err := validate(&c); err != nil {
		return Config{}, err
	}
	c.DB.Path = strings.TrimSpace(c.DB.Path)
	for i := range c.Locations {
		c.Locations[i].Dir = filepath.Clean(strings.TrimSpace(c.Locations[i].Dir))
	}
	return c, nil
}

// applyDefaults populates zero-values with sane defaults.
func applyDefaults(c *Config) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.HTTP.Host == "" {
		c.HTTP.Host = "127.0.0.1"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8000
	}
	if c.DB.Path == "" {
		c.DB.Path = "./data/bunsho.db"
	}
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = 24 * time.Hour
	}
}

// validate performs basic sanity checks for required fields and ranges.
// It does not mutate the config.
func validate(c *Config) error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port is invalid")
	}
	if strings.TrimSpace(c.DB.Path) == "" {
		return errors.New("db.path is required")
	}
	if c.Auth.AccessTokenSecret == "" {
		return errors.New("auth.access_token_secret is required")
	}
	if c.Auth.RefreshTokenSecret == "" {
		return errors.New("auth.refresh_token_secret is required")
	}
	if c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		return errors.New("auth token secrets must differ")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("auth token lifetimes must be positive")
	}
	if len(c.Locations) == 0 {
		return errors.New("at least one location is required")
	}
	seen := make(map[string]bool, len(c.Locations))
	for i, loc := range c.Locations {
		if strings.TrimSpace(loc.Name) == "" {
			return fmt.Errorf("locations[%d].name is required", i)
		}
		if seen[loc.Name] {
			return fmt.Errorf("duplicate location name %q", loc.Name)
		}
		seen[loc.Name] = true
		dir := filepath.Clean(strings.TrimSpace(loc.Dir))
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("locations[%d].dir must be absolute", i)
		}
		if filepath.Dir(dir) == dir {
			return fmt.Errorf("locations[%d].dir cannot be the filesystem root", i)
		}
	}
	return nil
}
