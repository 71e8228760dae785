// Package config provides the configuration schema, loader, and hot-reload
// watcher for the slowscan encoder.
package config

import (
	"fmt"
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel converts l to the equivalent [slog.Level]. Unknown or empty
// levels map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Duration is a [time.Duration] that decodes from strings such as "5s" in
// both YAML and TOML files.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the root configuration structure. It is typically loaded with
// [Load] and starts from [Default], so omitted keys keep their defaults.
type Config struct {
	Log      LogConfig      `yaml:"log" toml:"log"`
	Encode   EncodeConfig   `yaml:"encode" toml:"encode"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Repeater RepeaterConfig `yaml:"repeater" toml:"repeater"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	// Level controls verbosity.
	Level LogLevel `yaml:"level" toml:"level"`

	// JSON switches from text to JSON log lines.
	JSON bool `yaml:"json" toml:"json"`
}

// EncodeConfig holds the default session parameters. CLI flags and HTTP
// query parameters override individual fields.
type EncodeConfig struct {
	// Mode is the registered mode name, e.g. "MartinM1".
	Mode string `yaml:"mode" toml:"mode"`

	// SampleRate is the output rate in Hz.
	SampleRate int `yaml:"sample_rate" toml:"sample_rate"`

	// Bits is the PCM sample width, 8 or 16.
	Bits int `yaml:"bits" toml:"bits"`

	// Channels is the number of identical output channels.
	Channels int `yaml:"channels" toml:"channels"`

	// VOX prepends the VOX tone burst.
	VOX bool `yaml:"vox" toml:"vox"`

	// FSKID is an optional station identifier appended after the image.
	FSKID string `yaml:"fskid" toml:"fskid"`
}

// ServerConfig holds settings for the HTTP encode service.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr" toml:"listen_addr"`

	// MaxImageBytes caps the size of uploaded images.
	MaxImageBytes int64 `yaml:"max_image_bytes" toml:"max_image_bytes"`

	// MaxImagePixels caps width*height as declared by the image header,
	// checked before decoding. Zero means the imageio default.
	MaxImagePixels int64 `yaml:"max_image_pixels" toml:"max_image_pixels"`

	// MaxConcurrent caps simultaneous encode requests. Zero means unlimited.
	MaxConcurrent int `yaml:"max_concurrent" toml:"max_concurrent"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// RepeaterConfig configures the directory repeater.
type RepeaterConfig struct {
	// WatchDir is polled for new images.
	WatchDir string `yaml:"watch_dir" toml:"watch_dir"`

	// OutputDir receives one WAV file per image. Empty means WatchDir.
	OutputDir string `yaml:"output_dir" toml:"output_dir"`

	// Interval is the polling period.
	Interval Duration `yaml:"interval" toml:"interval"`

	// SampleRate overrides Encode.SampleRate for repeated images when set.
	SampleRate int `yaml:"sample_rate" toml:"sample_rate"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: LogInfo},
		Encode: EncodeConfig{
			Mode:       "MartinM1",
			SampleRate: 48000,
			Bits:       16,
			Channels:   1,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			MaxImageBytes:   32 << 20,
			MaxImagePixels:  4096 * 4096,
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Repeater: RepeaterConfig{
			Interval:   Duration{2 * time.Second},
			SampleRate: 44100,
		},
	}
}
