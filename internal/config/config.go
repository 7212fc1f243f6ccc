// Package config loads the server configuration.
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/avelsen/vision-consensus/internal/media"
	"github.com/avelsen/vision-consensus/internal/runner"
)

// Config is the vision-consensus-server configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `mapstructure:"listen"`
	// Models are queried for every request.
	Models []string `mapstructure:"models"`
	// DefaultMode applies when a request carries no mode field.
	DefaultMode string `mapstructure:"default_mode"`
	// CallTimeout bounds one model call.
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	// MaxImageBytes caps one uploaded image.
	MaxImageBytes int64  `mapstructure:"max_image_bytes"`
	LogLevel      string `mapstructure:"log_level"`
}

// Load reads a YAML config file and applies defaults. An empty path yields
// the default configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.StringToTimeDurationHookFunc()
	}); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if len(c.Models) == 0 {
		c.Models = []string{"gpt-4o", "claude-sonnet-4-5"}
	}
	if c.DefaultMode == "" {
		c.DefaultMode = string(runner.ModeIndividual)
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 120 * time.Second
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = media.DefaultMaxBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if _, err := runner.ParseMode(c.DefaultMode); err != nil {
		return fmt.Errorf("default_mode: %w", err)
	}
	return nil
}
