package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// VerificationMode is the process-wide default verification strategy.
type VerificationMode string

const (
	VerificationFast       VerificationMode = "fast"
	VerificationChecksum   VerificationMode = "checksum"
	VerificationVerifyAfter VerificationMode = "verify_after"
)

// Settings is the process-wide settings document (spec §6's
// settings.yaml). It is the single wrapper mechanism spec §9 standardizes
// on: every field has a default, and a partially-written file is merged
// over those defaults rather than leaving zero-valued gaps.
type Settings struct {
	DefaultBandwidthLimit int64            `yaml:"default_bandwidth_limit"`
	AutoStartOnLaunch     bool             `yaml:"auto_start_on_launch"`
	NetworkCheckInterval  int              `yaml:"network_check_interval"`
	MaxRetryAttempts      int              `yaml:"max_retry_attempts"`
	AutoRefreshInterval   int              `yaml:"auto_refresh_interval"`
	VerificationMode      VerificationMode `yaml:"verification_mode"`
}

// DefaultSettings returns the built-in defaults, grounded on the original
// implementation's DEFAULT_SETTINGS table.
func DefaultSettings() Settings {
	return Settings{
		DefaultBandwidthLimit: 0,
		AutoStartOnLaunch:     false,
		NetworkCheckInterval:  30,
		MaxRetryAttempts:      10,
		AutoRefreshInterval:   2,
		VerificationMode:      VerificationFast,
	}
}

// LoadSettings reads settings.yaml, merging any present fields over the
// defaults field-by-field. A missing file is not an error: it yields the
// defaults untouched.
func LoadSettings() (Settings, error) {
	settings := DefaultSettings()

	path, err := SettingsFile()
	if err != nil {
		return settings, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, err
	}

	var onDisk map[string]any
	if err := yaml.Unmarshal(raw, &onDisk); err != nil {
		return settings, err
	}
	mergeSettings(&settings, onDisk)
	return settings, nil
}

func mergeSettings(s *Settings, onDisk map[string]any) {
	if v, ok := onDisk["default_bandwidth_limit"]; ok {
		if n, ok := toInt64(v); ok {
			s.DefaultBandwidthLimit = n
		}
	}
	if v, ok := onDisk["auto_start_on_launch"]; ok {
		if b, ok := v.(bool); ok {
			s.AutoStartOnLaunch = b
		}
	}
	if v, ok := onDisk["network_check_interval"]; ok {
		if n, ok := toInt64(v); ok {
			s.NetworkCheckInterval = int(n)
		}
	}
	if v, ok := onDisk["max_retry_attempts"]; ok {
		if n, ok := toInt64(v); ok {
			s.MaxRetryAttempts = int(n)
		}
	}
	if v, ok := onDisk["auto_refresh_interval"]; ok {
		if n, ok := toInt64(v); ok {
			s.AutoRefreshInterval = int(n)
		}
	}
	if v, ok := onDisk["verification_mode"]; ok {
		if str, ok := v.(string); ok {
			s.VerificationMode = VerificationMode(str)
		}
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// Save writes the settings document to settings.yaml.
func (s Settings) Save() error {
	path, err := SettingsFile()
	if err != nil {
		return err
	}
	raw, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
