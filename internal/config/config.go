// Package config loads the service configuration from an optional YAML
// file with environment variable overrides, and validates all settings on
// startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/JonMunkholm/loggerimport/internal/importer"
	"github.com/JonMunkholm/loggerimport/internal/record"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Metadata MetadataConfig `yaml:"metadata"`
	Import   ImportConfig   `yaml:"import"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port int    `yaml:"port" env:"SERVER_PORT" env-default:"8080"`

	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"0s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`

	// ShutdownTimeout bounds the graceful shutdown, including the wait for
	// running imports.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`

	// RequestTimeout is the middleware timeout for non-import requests.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" env-default:"60s"`
}

// MetadataConfig locates the logger metadata files.
type MetadataConfig struct {
	// Dir holds one .json, .yaml or .yml file per logger.
	Dir string `yaml:"dir" env:"METADATA_DIR" env-default:"metadata"`
}

// ImportConfig holds import processing settings.
type ImportConfig struct {
	MaxFileSize   int64         `yaml:"max_file_size" env:"IMPORT_MAX_FILE_SIZE" env-default:"104857600"`
	MaxConcurrent int           `yaml:"max_concurrent" env:"IMPORT_MAX_CONCURRENT" env-default:"4"`
	MaxWaitTime   time.Duration `yaml:"max_wait_time" env:"IMPORT_MAX_WAIT_TIME" env-default:"30s"`
	Timeout       time.Duration `yaml:"timeout" env:"IMPORT_TIMEOUT" env-default:"10m"`

	// Encoding of logger files: ascii, utf8 or latin1.
	Encoding string `yaml:"encoding" env:"IMPORT_ENCODING" env-default:"utf8"`

	// IgnoreNoTableMatch skips files of unconfigured tables instead of
	// failing them.
	IgnoreNoTableMatch bool `yaml:"ignore_no_table_match" env:"IMPORT_IGNORE_NO_TABLE_MATCH" env-default:"false"`

	// StrictTypecheck fails rows whose columns have no declared type.
	StrictTypecheck bool `yaml:"strict_typecheck" env:"IMPORT_STRICT_TYPECHECK" env-default:"false"`
}

// SecurityConfig holds API access settings.
type SecurityConfig struct {
	// APIKeys are accepted in the X-API-Key header of import requests. No
	// keys disables the check.
	APIKeys []string `yaml:"api_keys" env:"API_KEYS" env-separator:","`

	// TrustedProxies are the CIDRs whose X-Real-IP and X-Forwarded-For
	// headers are believed.
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES" env-separator:","`

	// RateLimit is the number of requests per minute allowed per client
	// IP; 0 disables rate limiting.
	RateLimit int `yaml:"rate_limit" env:"RATE_LIMIT" env-default:"100"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`

	// Format is the log format: text or json.
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Options converts the import settings to importer options. The
// configuration must have been validated.
func (c *ImportConfig) Options() importer.Options {
	opts := importer.DefaultOptions()
	if enc, err := importer.ParseEncoding(c.Encoding); err == nil {
		opts.Encoding = enc
	}
	opts.MaxFileSize = c.MaxFileSize
	opts.Concurrency = c.MaxConcurrent
	opts.IgnoreNoTableMatch = c.IgnoreNoTableMatch
	if c.StrictTypecheck {
		opts.CheckMode = record.RequireTypes
	}
	return opts
}
