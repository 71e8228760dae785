package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are applied; everything else
// is reported in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// EncodeChanged is true if any default session parameter changed.
	EncodeChanged bool
	NewEncode     EncodeConfig

	// RestartRequired lists changed keys that only take effect on restart.
	RestartRequired []string
}

// Empty reports whether d carries no changes at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.EncodeChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Log.Level != new.Log.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Log.Level
	}
	if old.Encode != new.Encode {
		d.EncodeChanged = true
		d.NewEncode = new.Encode
	}

	restart := []struct {
		key     string
		changed bool
	}{
		{"log.json", old.Log.JSON != new.Log.JSON},
		{"server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr},
		{"server.max_image_bytes", old.Server.MaxImageBytes != new.Server.MaxImageBytes},
		{"server.max_image_pixels", old.Server.MaxImagePixels != new.Server.MaxImagePixels},
		{"server.max_concurrent", old.Server.MaxConcurrent != new.Server.MaxConcurrent},
		{"server.shutdown_timeout", old.Server.ShutdownTimeout != new.Server.ShutdownTimeout},
		{"repeater", old.Repeater != new.Repeater},
	}
	for _, r := range restart {
		if r.changed {
			d.RestartRequired = append(d.RestartRequired, r.key)
		}
	}
	return d
}
