package config

import (
	"os"
	"testing"
)

func withTempDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BACKUPSUP_DATA_DIR", dir)
	return dir
}

func TestLoadSettings_DefaultsWhenFileMissing(t *testing.T) {
	withTempDataDir(t)

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s != DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", s)
	}
}

func TestSettings_SaveThenLoadRoundTrips(t *testing.T) {
	withTempDataDir(t)

	s := DefaultSettings()
	s.DefaultBandwidthLimit = 5000
	s.VerificationMode = VerificationChecksum
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if loaded.DefaultBandwidthLimit != 5000 || loaded.VerificationMode != VerificationChecksum {
		t.Fatalf("unexpected loaded settings: %+v", loaded)
	}
}

func TestLoadSettings_MergesPartialFileOverDefaults(t *testing.T) {
	dir := withTempDataDir(t)

	path, err := SettingsFile()
	if err != nil {
		t.Fatalf("SettingsFile: %v", err)
	}
	if err := os.WriteFile(path, []byte("max_retry_attempts: 2\n"), 0o644); err != nil {
		t.Fatalf("write settings file: %v", err)
	}
	_ = dir

	loaded, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	want := DefaultSettings()
	want.MaxRetryAttempts = 2
	if loaded != want {
		t.Fatalf("expected merged settings %+v, got %+v", want, loaded)
	}
}
