package context

import (
	"github.com/gin-gonic/gin"
	"github.com/molotovsingh/personal-backup-tool/internal/errorlog"
	"github.com/molotovsingh/personal-backup-tool/internal/fanout"
	"github.com/molotovsingh/personal-backup-tool/internal/supervisor"
)

// Middleware returns a gin middleware that sets the supervisor-core
// dependencies every handler needs.
func Middleware(sup *supervisor.Supervisor, bus *fanout.Bus, errLog *errorlog.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextKeySupervisor, sup)
		c.Set(ContextKeyBus, bus)
		c.Set(ContextKeyErrorLog, errLog)
		c.Next()
	}
}
