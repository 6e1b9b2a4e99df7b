package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apictx "github.com/molotovsingh/personal-backup-tool/internal/api/context"
	"github.com/molotovsingh/personal-backup-tool/internal/api/handlers"
	"github.com/molotovsingh/personal-backup-tool/internal/logger"
)

// srvLog returns a named logger for the api.server package.
func srvLog() *zap.Logger {
	return logger.Named("api.server")
}

// SetupRouter creates and configures the Gin router with all middleware
// and routes for the host-ward JSON/SSE surface.
func SetupRouter(env string, deps RouterDeps) *gin.Engine {
	if env == "development" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(ginLogger(logger.Named("api.http")))
	r.Use(gin.Recovery())
	r.Use(apictx.Middleware(deps.Supervisor, deps.Bus, deps.ErrorLog))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.NoRoute(handlers.NotFoundHandler)

	apiGroup := r.Group("/api")
	RegisterAPIRoutes(apiGroup)

	return r
}

func ginLogger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if len(c.Errors) > 0 {
			for _, e := range c.Errors.Errors() {
				l.Error(e)
			}
			return
		}
		l.Info(path,
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
