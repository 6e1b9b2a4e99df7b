package deletion

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/molotovsingh/personal-backup-tool/internal/errs"
)

func writeFile(t *testing.T, path string, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestPreFlightCheck_RejectsMissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := PreFlightCheck(filepath.Join(dir, "missing"), filepath.Join(dir, "dest"), false)
	if !errors.Is(err, errs.ErrPreFlight) {
		t.Fatalf("expected ErrPreFlight, got %v", err)
	}
}

func TestPreFlightCheck_RejectsEmptySource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.Mkdir(src, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	_, err := PreFlightCheck(src, filepath.Join(dir, "dest"), false)
	if !errors.Is(err, errs.ErrPreFlight) {
		t.Fatalf("expected ErrPreFlight for empty source, got %v", err)
	}
}

func TestPreFlightCheck_RejectsSameSourceAndDest(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.Mkdir(src, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	writeFile(t, filepath.Join(src, "a.txt"), "data")

	_, err := PreFlightCheck(src, src, false)
	if !errors.Is(err, errs.ErrPreFlight) {
		t.Fatalf("expected ErrPreFlight for identical paths, got %v", err)
	}
}

func TestPreFlightCheck_PassesWithSufficientSpace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dest := filepath.Join(dir, "dest")
	if err := os.Mkdir(src, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.Mkdir(dest, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	writeFile(t, filepath.Join(src, "a.txt"), "small file")

	result, err := PreFlightCheck(src, dest, false)
	if err != nil {
		t.Fatalf("PreFlightCheck: %v", err)
	}
	if !result.OK {
		t.Fatalf("expected OK result, got %+v", result)
	}
}

func TestPreFlightCheck_CloudDestinationSkipsSpaceCheck(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.Mkdir(src, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	writeFile(t, filepath.Join(src, "a.txt"), "data")

	result, err := PreFlightCheck(src, "remote:bucket/path", true)
	if err != nil {
		t.Fatalf("PreFlightCheck: %v", err)
	}
	if !result.OK || result.Warning == "" {
		t.Fatalf("expected OK with a warning for cloud dest, got %+v", result)
	}
}
