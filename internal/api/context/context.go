package context

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/molotovsingh/personal-backup-tool/internal/errorlog"
	"github.com/molotovsingh/personal-backup-tool/internal/fanout"
	"github.com/molotovsingh/personal-backup-tool/internal/supervisor"
)

func getContextValue[T any](c *gin.Context, key string) (T, error) {
	var zero T
	val, exists := c.Get(key)
	if !exists {
		return zero, errors.New(key + " not initialized")
	}
	return val.(T), nil
}

// GetSupervisor retrieves the Job Supervisor from the gin context.
func GetSupervisor(c *gin.Context) (*supervisor.Supervisor, error) {
	return getContextValue[*supervisor.Supervisor](c, ContextKeySupervisor)
}

// GetBus retrieves the Subscriber Fan-out bus from the gin context.
func GetBus(c *gin.Context) (*fanout.Bus, error) {
	return getContextValue[*fanout.Bus](c, ContextKeyBus)
}

// GetErrorLog retrieves the Error Event Log from the gin context.
func GetErrorLog(c *gin.Context) (*errorlog.Store, error) {
	return getContextValue[*errorlog.Store](c, ContextKeyErrorLog)
}
