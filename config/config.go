// Package config loads the renderer's settings from defaults, an optional
// YAML file and RENDERCORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "RENDERCORE"

type Config struct {
	Viewport ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	Frame    FrameConfig    `mapstructure:"frame" yaml:"frame"`
	Scroll   ScrollConfig   `mapstructure:"scroll" yaml:"scroll"`
	Fonts    FontsConfig    `mapstructure:"fonts" yaml:"fonts"`
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Trace    TraceConfig    `mapstructure:"trace" yaml:"trace"`
	DarkMode bool           `mapstructure:"dark_mode" yaml:"dark_mode"`
}

type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

type FrameConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

type ScrollConfig struct {
	Step float64 `mapstructure:"step" yaml:"step"`
}

// FontsConfig selects a system font family. Empty uses the embedded Go
// fonts.
type FontsConfig struct {
	Family string `mapstructure:"family" yaml:"family"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	// File enables a rotated JSON log next to the console output.
	File       string `mapstructure:"file" yaml:"file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// TraceConfig names the Chrome trace-event output. Empty disables tracing.
type TraceConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("viewport.width", 800)
	v.SetDefault("viewport.height", 600)
	v.SetDefault("frame.interval", "16ms")
	v.SetDefault("scroll.step", 100.0)
	v.SetDefault("fonts.family", "")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", false)
	v.SetDefault("trace.file", "")
	v.SetDefault("dark_mode", false)
}

// Load reads path if given, otherwise ./rendercore.yaml when present.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("rendercore")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", c.Viewport.Width, c.Viewport.Height)
	}
	if c.Frame.Interval <= 0 {
		return fmt.Errorf("frame.interval must be positive, got %s", c.Frame.Interval)
	}
	if c.Scroll.Step <= 0 {
		return fmt.Errorf("scroll.step must be positive, got %v", c.Scroll.Step)
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	return nil
}
