// Package config provides configuration loading for pika.
package config

import (
	"fmt"
	"strings"

	"github.com/shamspias/pika"
)

// Config is the complete pika configuration.
type Config struct {
	Compression CompressionConfig `koanf:"compression"`
	Log         LogConfig         `koanf:"log"`
	Metrics     MetricsConfig     `koanf:"metrics"`
	Output      OutputConfig      `koanf:"output"`

	// Warnings lists values that Validate replaced.
	Warnings []string `koanf:"-"`
}

// CompressionConfig holds the default batch settings.
type CompressionConfig struct {
	Mode         string  `koanf:"mode"` // quality | target_size
	Quality      int     `koanf:"quality"`
	TargetSizeKB float64 `koanf:"target_size_kb"`
	MaxWidth     int     `koanf:"max_width"`
	MaxHeight    int     `koanf:"max_height"`
	LockAspect   bool    `koanf:"lock_aspect"`
	Format       string  `koanf:"format"`
	Resampler    string  `koanf:"resampler"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // console | json
}

// MetricsConfig configures the Prometheus textfile dump.
type MetricsConfig struct {
	// Textfile, when set, receives the registry in text exposition format
	// after every run.
	Textfile string `koanf:"textfile"`
}

// OutputConfig says where results go.
type OutputConfig struct {
	Dir string `koanf:"dir"`
	Zip bool   `koanf:"zip"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Compression: CompressionConfig{
			Mode:       "quality",
			Quality:    pika.DefaultQuality,
			LockAspect: true,
			Format:     "jpeg",
			Resampler:  "lanczos",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Output: OutputConfig{
			Dir: ".",
		},
	}
}

// Validate replaces invalid values with defaults and records a warning for
// each replacement. Bad settings never make a run fail.
func (c *Config) Validate() {
	def := Default()
	warn := func(format string, args ...any) {
		c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
	}

	cc := &c.Compression
	switch mode, err := pika.ParseMode(cc.Mode); {
	case err != nil:
		warn("compression.mode %q is invalid, using %q", cc.Mode, def.Compression.Mode)
		cc.Mode = def.Compression.Mode
	case mode == pika.GoalTargetSize:
		cc.Mode = "target_size"
	default:
		cc.Mode = "quality"
	}
	if cc.Quality < 1 || cc.Quality > 100 {
		warn("compression.quality %d is out of range 1..100, using %d", cc.Quality, def.Compression.Quality)
		cc.Quality = def.Compression.Quality
	}
	if cc.TargetSizeKB < 0 {
		warn("compression.target_size_kb %g is negative, ignoring", cc.TargetSizeKB)
		cc.TargetSizeKB = 0
	}
	if cc.Mode == "target_size" && cc.TargetSizeKB == 0 {
		warn("compression.mode is target_size but no target_size_kb is set, using quality mode")
		cc.Mode = "quality"
	}
	if cc.MaxWidth < 0 {
		warn("compression.max_width %d is negative, ignoring", cc.MaxWidth)
		cc.MaxWidth = 0
	}
	if cc.MaxHeight < 0 {
		warn("compression.max_height %d is negative, ignoring", cc.MaxHeight)
		cc.MaxHeight = 0
	}
	if _, err := pika.ParseFormat(cc.Format); err != nil {
		warn("compression.format %q is invalid, using %q", cc.Format, def.Compression.Format)
		cc.Format = def.Compression.Format
	}
	if _, err := pika.ParseResampler(cc.Resampler); err != nil {
		warn("compression.resampler %q is invalid, using %q", cc.Resampler, def.Compression.Resampler)
		cc.Resampler = def.Compression.Resampler
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
		c.Log.Level = strings.ToLower(c.Log.Level)
	default:
		warn("log.level %q is invalid, using %q", c.Log.Level, def.Log.Level)
		c.Log.Level = def.Log.Level
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
		c.Log.Format = strings.ToLower(c.Log.Format)
	default:
		warn("log.format %q is invalid, using %q", c.Log.Format, def.Log.Format)
		c.Log.Format = def.Log.Format
	}

	if c.Output.Dir == "" {
		c.Output.Dir = def.Output.Dir
	}
}

// Settings converts the compression section into batch settings.
// Call Validate first.
func (c *Config) Settings() pika.Settings {
	cc := c.Compression
	s := pika.DefaultSettings()
	if cc.Mode == "target_size" {
		s.Mode = pika.GoalTargetSize
	}
	s.Quality = cc.Quality
	s.TargetSizeKB = cc.TargetSizeKB
	s.MaxWidth = cc.MaxWidth
	s.MaxHeight = cc.MaxHeight
	s.LockAspect = cc.LockAspect
	if f, err := pika.ParseFormat(cc.Format); err == nil {
		s.Format = f
	}
	return s.Normalize()
}

// Resampler returns the configured resampling filter.
func (c *Config) Resampler() pika.Resampler {
	r, err := pika.ParseResampler(c.Compression.Resampler)
	if err != nil {
		return pika.Lanczos
	}
	return r
}
