package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suitelabs/conductor/internal/config"
)

// HealthCheck returns a minimal liveness response. No authentication,
// no system details.
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "healthy",
		})
	}
}

// HealthCheckDetailed returns full system information for operators
func HealthCheckDetailed(envCfg *config.EnvConfig, runtime *config.RuntimeManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := runtime.GetConfig()

		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"uptime":    time.Since(startTime).Seconds(),
			"mode":      envCfg.Env,
			"version":   getVersion(),
			"config": gin.H{
				"freeTierLimit": cfg.FreeTierLimit,
				"tierCount":     len(cfg.Tiers),
			},
		})
	}
}

func getVersion() gin.H {
	return gin.H{
		"version":   versionString,
		"buildTime": buildTime,
		"gitCommit": gitCommit,
	}
}

// Injected at build time via -ldflags, defaults for dev builds
var (
	versionString = "v0.0.0-dev"
	buildTime     = "unknown"
	gitCommit     = "unknown"
)

// SetVersionInfo sets version information (called from main)
func SetVersionInfo(version, build, commit string) {
	versionString = version
	buildTime = build
	gitCommit = commit
}

var startTime = time.Now()
