package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suitelabs/conductor/internal/config"
)

// CORSMiddleware sets CORS headers for browser clients
func CORSMiddleware(envCfg *config.EnvConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		// Development allows any localhost origin
		if envCfg.IsDevelopment() {
			if origin != "" && strings.Contains(origin, "localhost") {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		} else {
			c.Header("Access-Control-Allow-Origin", envCfg.CORSOrigin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, x-api-key")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
