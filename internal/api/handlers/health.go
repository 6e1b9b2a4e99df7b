package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	apictx "github.com/molotovsingh/personal-backup-tool/internal/api/context"
	"github.com/molotovsingh/personal-backup-tool/internal/logger"
	"github.com/molotovsingh/personal-backup-tool/internal/model"
	"github.com/molotovsingh/personal-backup-tool/internal/recovery"
)

// errLogDegrade wraps the error log's Stats query so a struggling C7 store
// degrades the health summary's error counts to zero instead of failing the
// whole endpoint (spec §4.8). Built lazily so it picks up the logger
// installed by logger.Init rather than the package-init-time default.
var (
	errLogDegradeOnce sync.Once
	errLogDegrade     *recovery.Degradable[model.Stats]
)

func getErrLogDegrade() *recovery.Degradable[model.Stats] {
	errLogDegradeOnce.Do(func() {
		errLogDegrade = recovery.NewDegradable("api.health", model.Stats{}, nil, logger.Named("api.health"))
	})
	return errLogDegrade
}

// healthSummary is the counts the host-ward surface exposes per spec §6:
// live engines, running jobs, unresolved errors, last-24h errors, and
// critical-error count.
type healthSummary struct {
	LiveEngines      int `json:"live_engines"`
	RunningJobs      int `json:"running_jobs"`
	UnresolvedErrors int `json:"unresolved_errors"`
	Errors24h        int `json:"errors_24h"`
	CriticalErrors   int `json:"critical_errors"`
}

// Health reports a summary of supervisor liveness and error state.
func Health(c *gin.Context) {
	sup, err := apictx.GetSupervisor(c)
	if err != nil {
		HandleError(c, err)
		return
	}

	jobs, err := sup.ListJobs()
	if err != nil {
		HandleError(c, err)
		return
	}
	running := 0
	for _, j := range jobs {
		if j.Status == model.StatusRunning {
			running++
		}
	}

	summary := healthSummary{
		LiveEngines: len(sup.LiveJobIDs()),
		RunningJobs: running,
	}

	if errLog, err := apictx.GetErrorLog(c); err == nil && errLog != nil {
		stats, _ := getErrLogDegrade().TryWithFallback(func() (model.Stats, error) {
			return errLog.Stats()
		}, false)
		summary.UnresolvedErrors = stats.Unresolved
		summary.Errors24h = stats.Recent24h
		summary.CriticalErrors = stats.BySeverity[string(model.SeverityCritical)]
	}

	c.JSON(http.StatusOK, summary)
}
