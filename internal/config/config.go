// Package config loads the bdoc YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/bdoc/core/errors"
	"github.com/FocuswithJustin/bdoc/core/reconcile"
	"github.com/FocuswithJustin/bdoc/internal/logging"
)

// Config holds all bdoc configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
	// APIKey enables X-API-Key authentication when set.
	APIKey            string `yaml:"api_key"`
	RateLimitRequests int    `yaml:"rate_limit_requests"` // per minute, 0 disables
	RateLimitBurst    int    `yaml:"rate_limit_burst"`
	TLSCertFile       string `yaml:"tls_cert_file"`
	TLSKeyFile        string `yaml:"tls_key_file"`
}

// StoreConfig locates the document store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig selects level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ReconcileConfig holds the default merge policies.
type ReconcileConfig struct {
	NewAnnotations      reconcile.NewAnnotationPolicy      `yaml:"new_annotations"`
	ExistingAnnotations reconcile.ExistingAnnotationPolicy `yaml:"existing_annotations"`
}

func (c *Config) defaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 32 << 20
	}
	if c.Server.RateLimitRequests > 0 && c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 10
	}
	if c.Store.Path == "" {
		c.Store.Path = "bdoc.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// Load reads a YAML config file and fills in defaults. An empty path
// returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read config", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &errors.ParseError{Format: "YAML", Path: path, Message: err.Error(), Err: err}
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Server.Port > 65535 {
		return errors.NewValidation("server.port", fmt.Sprintf("port %d out of range", c.Server.Port))
	}
	if c.Server.APIKey != "" && len(c.Server.APIKey) < 16 {
		return errors.NewValidation("server.api_key", fmt.Sprintf("API key must be at least 16 characters (got %d)", len(c.Server.APIKey)))
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return errors.NewValidation("server.tls_cert_file", "TLS needs both a certificate and a key file")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return errors.NewValidation("logging.level", err.Error())
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return errors.NewValidation("logging.format", err.Error())
	}
	return c.ReconcileOptions().Validate()
}

// ReconcileOptions returns the merge options configured as defaults.
func (c *Config) ReconcileOptions() reconcile.Options {
	opts := reconcile.DefaultOptions()
	opts.NewAnnotations = c.Reconcile.NewAnnotations
	opts.ExistingAnnotations = c.Reconcile.ExistingAnnotations
	return opts
}

// InitLogging applies the logging section to the global logger.
func (c *Config) InitLogging() error {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}
