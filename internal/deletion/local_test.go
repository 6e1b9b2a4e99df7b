package deletion

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureTrailingSlash(t *testing.T) {
	cases := map[string]string{
		"/data/src":  "/data/src/",
		"/data/src/": "/data/src/",
	}
	for in, want := range cases {
		if got := ensureTrailingSlash(in); got != want {
			t.Errorf("ensureTrailingSlash(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLocalPipeline_DeleteVerifiedRemovesFilesAndReportsProgress(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(filepath.Join(src, "nested"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeFile(t, filepath.Join(src, "a.txt"), "hello")
	writeFile(t, filepath.Join(src, "nested", "b.txt"), "world!")

	audit := NewAuditLog(filepath.Join(dir, "audit.log"))
	p := NewLocalPipeline(src, filepath.Join(dir, "dest"), false, audit, nil)

	var calls int
	files, bytes, err := p.DeleteVerified(func(filesDeleted int, bytesDeleted int64) {
		calls++
	})
	if err != nil {
		t.Fatalf("DeleteVerified: %v", err)
	}
	if files != 2 {
		t.Fatalf("expected 2 files deleted, got %d", files)
	}
	if bytes != int64(len("hello")+len("world!")) {
		t.Fatalf("unexpected byte count: %d", bytes)
	}
	if calls != 2 {
		t.Fatalf("expected progress callback twice, got %d", calls)
	}

	if _, err := os.Stat(filepath.Join(src, "a.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected a.txt removed")
	}
}

func TestLocalPipeline_CleanupEmptyDirsPrunesDeepestFirst(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(filepath.Join(src, "a", "b"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	audit := NewAuditLog(filepath.Join(dir, "audit.log"))
	p := NewLocalPipeline(src, filepath.Join(dir, "dest"), false, audit, nil)
	p.CleanupEmptyDirs()

	if _, err := os.Stat(filepath.Join(src, "a")); !os.IsNotExist(err) {
		t.Fatalf("expected nested empty directories pruned")
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("expected source root preserved: %v", err)
	}
}

func TestAuditLog_WritesOneLinePerEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	audit := NewAuditLog(path)

	audit.LogStart("verify_then_delete", 3)
	audit.LogDeleted("/data/src/a.txt", 128, "")
	audit.LogVerification(true, "dry-run reported 0 outstanding changes")
	audit.LogEnd(1, 128, 0)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 4 {
		t.Fatalf("expected 4 audit lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "START mode=verify_then_delete estimated_files=3") {
		t.Errorf("unexpected START line: %s", lines[0])
	}
	if !strings.Contains(lines[3], "END total_files=1 total_bytes=128 errors=0") {
		t.Errorf("unexpected END line: %s", lines[3])
	}
}
