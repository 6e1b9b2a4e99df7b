package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/molotovsingh/personal-backup-tool/internal/api"
	"github.com/molotovsingh/personal-backup-tool/internal/config"
	"github.com/molotovsingh/personal-backup-tool/internal/errorlog"
	"github.com/molotovsingh/personal-backup-tool/internal/fanout"
	"github.com/molotovsingh/personal-backup-tool/internal/logger"
	"github.com/molotovsingh/personal-backup-tool/internal/monitor"
	"github.com/molotovsingh/personal-backup-tool/internal/store"
	"github.com/molotovsingh/personal-backup-tool/internal/supervisor"
)

// serveCmd wires up and runs the job supervisor daemon: the durable job
// store, the error event log, the supervisor, the subscriber fan-out, the
// event monitor, and the host-ward HTTP surface.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the supervisor daemon and HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		logger.Init(logger.Environment(config.Cfg.App.Environment), logger.LogLevel(config.Cfg.Log.Level), nil)
		log := logger.Named("cmd.serve")
		log.Info("starting backup-supervisord")

		jobsFile, err := config.JobsFile()
		if err != nil {
			log.Fatal("failed to resolve jobs file path", zap.Error(err))
		}
		logsDir, err := config.LogsDir()
		if err != nil {
			log.Fatal("failed to resolve logs dir", zap.Error(err))
		}
		dbPath, err := config.DBPath()
		if err != nil {
			log.Fatal("failed to resolve error log db path", zap.Error(err))
		}

		jobStore, err := store.New(jobsFile, logger.Named("store.jobs"))
		if err != nil {
			log.Fatal("failed to open job store", zap.Error(err))
		}
		defer jobStore.Close()

		errLog, err := errorlog.Open(dbPath, logger.Named("errorlog"))
		if err != nil {
			log.Fatal("failed to open error event log", zap.Error(err))
		}
		defer errLog.Close()

		maxRetries := config.Cfg.Retry.MaxRetries
		if maxRetries <= 0 {
			maxRetries = 3
		}

		sup := supervisor.New(jobStore, logger.Named("supervisor"), logsDir, maxRetries)
		if err := sup.RecoverCrashedJobs(); err != nil {
			log.Error("failed to recover crashed jobs", zap.Error(err))
		}

		bus := fanout.New(64)

		mon := monitor.New(sup, bus, errLog, logger.Named("monitor"))
		monCtx, cancelMon := context.WithCancel(context.Background())
		go mon.Run(monCtx)

		routerDeps := api.RouterDeps{
			Supervisor: sup,
			Bus:        bus,
			ErrorLog:   errLog,
		}
		r := api.SetupRouter(config.Cfg.App.Environment, routerDeps)

		addr := fmt.Sprintf("%s:%d", config.Cfg.Server.Host, config.Cfg.Server.Port)
		log.Info("server starting", zap.String("address", addr))

		srv := &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal("server failed to start", zap.Error(err))
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutdown signal received, stopping server")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}

		cancelMon()
		log.Info("server exiting")
	},
}
