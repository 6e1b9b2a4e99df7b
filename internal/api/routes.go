// Package api provides the host-ward HTTP surface (§6): job CRUD and
// lifecycle operations, the subscriber fan-out's SSE transport, and a
// health summary. The HTML/GraphQL presentation layer is out of scope
// (spec §1) and lives outside this core.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/molotovsingh/personal-backup-tool/internal/api/handlers"
	"github.com/molotovsingh/personal-backup-tool/internal/errorlog"
	"github.com/molotovsingh/personal-backup-tool/internal/fanout"
	"github.com/molotovsingh/personal-backup-tool/internal/supervisor"
)

// RouterDeps contains all dependencies required for setting up API routes.
type RouterDeps struct {
	Supervisor *supervisor.Supervisor
	Bus        *fanout.Bus
	ErrorLog   *errorlog.Store
}

// RegisterAPIRoutes registers every host-ward route under the given group.
func RegisterAPIRoutes(router *gin.RouterGroup) {
	jobs := router.Group("/jobs")
	{
		jobs.GET("", handlers.ListJobs)
		jobs.POST("", handlers.CreateJob)
		jobs.GET("/:id", handlers.GetJob)
		jobs.DELETE("/:id", handlers.DeleteJob)
		jobs.POST("/:id/start", handlers.StartJob)
		jobs.POST("/:id/stop", handlers.StopJob)
	}

	router.GET("/events", handlers.Subscribe)
	router.GET("/health", handlers.Health)
}
