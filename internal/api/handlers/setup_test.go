package handlers_test

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/molotovsingh/personal-backup-tool/internal/api"
	"github.com/molotovsingh/personal-backup-tool/internal/errorlog"
	"github.com/molotovsingh/personal-backup-tool/internal/fanout"
	"github.com/molotovsingh/personal-backup-tool/internal/logger"
	"github.com/molotovsingh/personal-backup-tool/internal/store"
	"github.com/molotovsingh/personal-backup-tool/internal/supervisor"
)

// testServer holds the components for API integration testing.
type testServer struct {
	Server     *httptest.Server
	Supervisor *supervisor.Supervisor
	Bus        *fanout.Bus
	Cleanup    func()
}

// setupTestServer initializes a test server backed by a temp-dir job store
// and error log, mirroring the real serve.go wiring.
func setupTestServer(t *testing.T) *testServer {
	logger.Init(logger.EnvironmentDevelopment, logger.LogLevelDebug, nil)

	dir := t.TempDir()

	jobStore, err := store.New(filepath.Join(dir, "jobs.yaml"), logger.Named("store.jobs"))
	require.NoError(t, err)

	errLog, err := errorlog.Open(filepath.Join(dir, "errors.db"), logger.Named("errorlog"))
	require.NoError(t, err)

	sup := supervisor.New(jobStore, logger.Named("supervisor"), dir, 3)
	bus := fanout.New(16)

	r := api.SetupRouter("development", api.RouterDeps{
		Supervisor: sup,
		Bus:        bus,
		ErrorLog:   errLog,
	})
	srv := httptest.NewServer(r)

	return &testServer{
		Server:     srv,
		Supervisor: sup,
		Bus:        bus,
		Cleanup: func() {
			srv.Close()
			jobStore.Close()
			errLog.Close()
		},
	}
}
