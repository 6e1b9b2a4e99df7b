package deletion

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFinalizePerFile_PrunesEmptyDirsAndLogsSummary(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(filepath.Join(src, "empty", "still-empty"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	nonEmpty := filepath.Join(src, "kept")
	if err := os.MkdirAll(nonEmpty, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeFile(t, filepath.Join(nonEmpty, "leftover.txt"), "still here")

	audit := NewAuditLog(filepath.Join(dir, "audit.log"))
	FinalizePerFile(src, audit, 5, 1024)

	if _, err := os.Stat(filepath.Join(src, "empty")); !os.IsNotExist(err) {
		t.Fatalf("expected empty directory tree pruned")
	}
	if _, err := os.Stat(nonEmpty); err != nil {
		t.Fatalf("expected non-empty directory preserved: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "audit.log"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 3 {
		t.Fatalf("expected START/DELETED-summary/END, got %d lines: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "START mode=per_file estimated_files=5") {
		t.Errorf("unexpected START line: %s", lines[0])
	}
	if !strings.Contains(lines[2], "END total_files=5 total_bytes=1024 errors=0") {
		t.Errorf("unexpected END line: %s", lines[2])
	}
}
