package config

import (
	"os"
	"path/filepath"
)

const dataDirEnvVar = "BACKUPSUP_DATA_DIR"

// DataDir resolves the single data directory all collaborators must use.
// Path construction belongs here alone (spec §9): an environment override
// (BACKUPSUP_DATA_DIR) takes precedence, then the app.data_dir
// configuration value, otherwise a fixed per-user default. The directory is
// created on first use.
func DataDir() (string, error) {
	dir := os.Getenv(dataDirEnvVar)
	if dir == "" && Cfg.App.DataDir != "" {
		dir = Cfg.App.DataDir
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "backup-manager")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// JobsFile returns the path to the Job Store's document.
func JobsFile() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "jobs.yaml"), nil
}

// SettingsFile returns the path to the process-wide settings document.
func SettingsFile() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.yaml"), nil
}

// LogsDir returns the directory for per-job transfer and deletion logs,
// creating it if absent.
func LogsDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	logsDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return "", err
	}
	return logsDir, nil
}

// DBPath returns the path to the SQLite-backed error/log index, creating
// its parent directory if absent.
func DBPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	dataSubdir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataSubdir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dataSubdir, "logs.db"), nil
}
