// Package config loads the proxy configuration from defaults, an optional
// config file and IMAGE_PROXY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. IMAGE_PROXY_PORT.
const EnvPrefix = "IMAGE_PROXY"

// Config is the complete runtime configuration.
type Config struct {
	Listen string `mapstructure:"listen"`
	Port   int    `mapstructure:"port"`

	// MaxRequestBytes caps the bytes buffered for one request header.
	MaxRequestBytes int `mapstructure:"max_request_bytes"`
	// ReadChunkSize is the size of each socket read.
	ReadChunkSize int `mapstructure:"read_chunk_size"`
	// ReadTimeout closes connections that stall before a full request
	// arrives. Zero disables it.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// MaxFieldBytes bounds each request field (operation, parameter, url).
	MaxFieldBytes int `mapstructure:"max_field_bytes"`

	// Workers is the number of concurrent dispatches. Zero runs every
	// dispatch on the event loop itself.
	Workers int `mapstructure:"workers"`

	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	MaxImageBytes int64         `mapstructure:"max_image_bytes"`

	// MaxPixels bounds width*height of decoded inputs and of resize and
	// rotate outputs.
	MaxPixels int `mapstructure:"max_pixels"`

	JPEGQuality      int    `mapstructure:"jpeg_quality"`
	RotateBackground string `mapstructure:"rotate_background"`
	GridColor        string `mapstructure:"grid_color"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:           "0.0.0.0",
		Port:             8080,
		MaxRequestBytes:  64 * 1024,
		ReadChunkSize:    64 * 1024,
		ReadTimeout:      30 * time.Second,
		MaxFieldBytes:    2048,
		Workers:          4,
		FetchTimeout:     30 * time.Second,
		MaxImageBytes:    32 << 20,
		MaxPixels:        25_000_000,
		JPEGQuality:      95,
		RotateBackground: "#000000",
		GridColor:        "#FF0000",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// New returns a viper instance seeded with the defaults and wired to the
// environment. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()
	v.SetDefault("listen", d.Listen)
	v.SetDefault("port", d.Port)
	v.SetDefault("max_request_bytes", d.MaxRequestBytes)
	v.SetDefault("read_chunk_size", d.ReadChunkSize)
	v.SetDefault("read_timeout", d.ReadTimeout)
	v.SetDefault("max_field_bytes", d.MaxFieldBytes)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("fetch_timeout", d.FetchTimeout)
	v.SetDefault("max_image_bytes", d.MaxImageBytes)
	v.SetDefault("max_pixels", d.MaxPixels)
	v.SetDefault("jpeg_quality", d.JPEGQuality)
	v.SetDefault("rotate_background", d.RotateBackground)
	v.SetDefault("grid_color", d.GridColor)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path (any format viper knows;
// empty means none) into v and returns the validated result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Address is the host:port the listener binds.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Listen, strconv.Itoa(c.Port))
}

// Validate checks ranges and returns the first *Error found.
func (c *Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return &Error{Field: "port", Message: "must be between 0 and 65535"}
	case c.MaxRequestBytes < 64:
		return &Error{Field: "max_request_bytes", Message: "must be at least 64"}
	case c.ReadChunkSize <= 0:
		return &Error{Field: "read_chunk_size", Message: "must be positive"}
	case c.ReadTimeout < 0:
		return &Error{Field: "read_timeout", Message: "must not be negative"}
	case c.MaxFieldBytes <= 0:
		return &Error{Field: "max_field_bytes", Message: "must be positive"}
	case c.Workers < 0:
		return &Error{Field: "workers", Message: "must not be negative"}
	case c.FetchTimeout < 0:
		return &Error{Field: "fetch_timeout", Message: "must not be negative"}
	case c.MaxImageBytes <= 0:
		return &Error{Field: "max_image_bytes", Message: "must be positive"}
	case c.MaxPixels <= 0:
		return &Error{Field: "max_pixels", Message: "must be positive"}
	case c.JPEGQuality < 1 || c.JPEGQuality > 100:
		return &Error{Field: "jpeg_quality", Message: "must be between 1 and 100"}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return &Error{Field: "logging.format", Message: "must be text or json"}
	}
	return nil
}

// Error reports an invalid configuration field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

// IsConfigError reports whether err is a validation failure.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}
