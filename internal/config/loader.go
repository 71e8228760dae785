package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/slowscan/pkg/sstv"
)

// Format selects the file syntax of a configuration.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnknownFormat is returned for configuration files whose extension is
// neither YAML nor TOML.
var ErrUnknownFormat = errors.New("config: unknown file format")

// FormatForPath infers the syntax from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Load reads the configuration file at path and returns a validated [Config].
// The syntax is chosen by extension. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f, format)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a config from r on top of [Default] and validates
// the result. Unknown keys are rejected. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader, format Format) (*Config, error) {
	cfg := Default()
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("config: decode toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Log
	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}

	// Encode
	errs = append(errs, validateEncode("encode", cfg.Encode)...)

	// Server
	if cfg.Server.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.Server.ListenAddr); err != nil {
			errs = append(errs, fmt.Errorf("server.listen_addr %q is invalid: %w", cfg.Server.ListenAddr, err))
		}
	}
	if cfg.Server.MaxImageBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_image_bytes %d must be positive", cfg.Server.MaxImageBytes))
	}
	if cfg.Server.MaxImagePixels < 0 {
		errs = append(errs, fmt.Errorf("server.max_image_pixels %d must not be negative", cfg.Server.MaxImagePixels))
	}
	if cfg.Server.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("server.max_concurrent %d must not be negative", cfg.Server.MaxConcurrent))
	}
	if cfg.Server.ShutdownTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %s must not be negative", cfg.Server.ShutdownTimeout))
	}

	// Repeater
	if cfg.Repeater.Interval.Duration <= 0 {
		errs = append(errs, fmt.Errorf("repeater.interval %s must be positive", cfg.Repeater.Interval))
	}
	if r := cfg.Repeater.SampleRate; r != 0 && !validSampleRate(r) {
		errs = append(errs, fmt.Errorf("repeater.sample_rate %d is out of range [%d, %d]", r, MinSampleRate, MaxSampleRate))
	}

	return errors.Join(errs...)
}

// Sample rate and channel bounds accepted by [Validate].
const (
	MinSampleRate = 8000
	MaxSampleRate = 192000
	MaxChannels   = 8
)

func validSampleRate(r int) bool {
	return r >= MinSampleRate && r <= MaxSampleRate
}

// ValidateEncode checks a set of session parameters, e.g. after CLI flags or
// query parameters have been applied on top of the file values.
func ValidateEncode(enc EncodeConfig) error {
	return errors.Join(validateEncode("encode", enc)...)
}

// ValidateFormat checks everything in enc except the mode name, for callers
// that resolve modes against their own registry.
func ValidateFormat(enc EncodeConfig) error {
	return errors.Join(validateFormat("encode", enc)...)
}

func validateEncode(prefix string, enc EncodeConfig) []error {
	var errs []error
	if _, err := sstv.Lookup(enc.Mode); err != nil {
		errs = append(errs, fmt.Errorf("%s.mode %q is not a registered mode; valid values: %s",
			prefix, enc.Mode, strings.Join(sstv.DefaultRegistry().Names(), ", ")))
	}
	return append(errs, validateFormat(prefix, enc)...)
}

func validateFormat(prefix string, enc EncodeConfig) []error {
	var errs []error
	if !validSampleRate(enc.SampleRate) {
		errs = append(errs, fmt.Errorf("%s.sample_rate %d is out of range [%d, %d]", prefix, enc.SampleRate, MinSampleRate, MaxSampleRate))
	}
	if enc.Bits != 8 && enc.Bits != 16 {
		errs = append(errs, fmt.Errorf("%s.bits %d is invalid; valid values: 8, 16", prefix, enc.Bits))
	}
	if enc.Channels < 1 || enc.Channels > MaxChannels {
		errs = append(errs, fmt.Errorf("%s.channels %d is out of range [1, %d]", prefix, enc.Channels, MaxChannels))
	}
	if err := sstv.ValidateFSKID(enc.FSKID); err != nil {
		errs = append(errs, fmt.Errorf("%s.fskid: %w", prefix, err))
	}
	return errs
}

// decodeBytes is [LoadFromReader] over an in-memory file.
func decodeBytes(data []byte, format Format) (*Config, error) {
	return LoadFromReader(bytes.NewReader(data), format)
}
