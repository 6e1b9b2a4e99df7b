package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/molotovsingh/personal-backup-tool/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *JobStore {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "jobs.yaml"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func sampleJob(id string) model.Job {
	now := time.Now()
	return model.Job{
		ID:        id,
		Name:      "nightly backup",
		Source:    "/data/src",
		Dest:      "/data/dst",
		Type:      model.TypeLocalCopy,
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

func TestJobStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	job := sampleJob("job-1")

	require.NoError(t, s.Save(job, -1))

	got, ok, err := s.Get("job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, job.Name, got.Name)
}

func TestJobStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Get("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJobStore_SaveUpdatesExisting(t *testing.T) {
	s := newTestStore(t)
	job := sampleJob("job-1")
	require.NoError(t, s.Save(job, -1))

	job.Status = model.StatusRunning
	job.Version = 2
	require.NoError(t, s.Save(job, 1))

	got, ok, err := s.Get("job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.StatusRunning, got.Status)
}

func TestJobStore_Delete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(sampleJob("job-1"), -1))

	removed, err := s.Delete("job-1")
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok, err := s.Get("job-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJobStore_DeleteMissingReturnsFalse(t *testing.T) {
	s := newTestStore(t)
	removed, err := s.Delete("nope")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestJobStore_RecoversFromBackupOnCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yaml")
	s, err := New(path, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(sampleJob("job-1"), -1))
	// Wait for the async writer to flush, then snapshot a good backup.
	waitForFile(t, path)
	require.NoError(t, copyFile(path, path+".bak"))

	// Corrupt the live file.
	require.NoError(t, os.WriteFile(path, []byte("not: [valid yaml"), 0o644))

	jobs, err := s.Load()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-1", jobs[0].ID)
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}
