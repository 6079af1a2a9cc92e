// Package config loads the application configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"budgetchef/internal/platform/logger"
)

const (
	defaultHTTPAddr = ":8080"
	defaultOrigin   = "http://localhost:8081"
)

// Config represents the application configuration.
type Config struct {
	DatabaseURL  string        `yaml:"database_url"`
	HTTPAddr     string        `yaml:"http_addr"`
	AllowOrigins []string      `yaml:"allow_origins"`
	Log          logger.Config `yaml:"log"`
}

// Load reads the YAML file at path. A missing file is not an error as long as
// DATABASE_URL is set in the environment; environment variables override the
// file. A .env file next to path fills in variables the process does not set.
func Load(path string) (*Config, error) {
	var cfg Config

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// env only
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	cfg.applyDefaults()

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is not set in %s or DATABASE_URL", path)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = defaultHTTPAddr
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{defaultOrigin}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
