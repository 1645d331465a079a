package middleware

import (
	"crypto/subtle"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suitelabs/conductor/internal/config"
)

// Context keys set by the auth middleware
const (
	ContextKeyClientName = "clientName"
)

// secureCompare performs a constant-time comparison of two strings
// to prevent timing attacks
func secureCompare(a, b string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// getAccessKey extracts the access key from the request
func getAccessKey(c *gin.Context) string {
	if key := c.GetHeader("x-api-key"); key != "" {
		return key
	}

	if auth := c.GetHeader("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	return ""
}

// AuthMiddleware validates the access key on every request. Health
// probes stay open; everything else needs the configured key. When no
// access key is configured the server runs open and says so once at
// startup, not here.
func AuthMiddleware(envCfg *config.EnvConfig, failureLimiter *AuthFailureRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		if path == "/health" || path == "/api/health" {
			c.Next()
			return
		}

		if envCfg.AccessKey == "" {
			c.Next()
			return
		}

		clientIP := c.ClientIP()

		if failureLimiter != nil && failureLimiter.IsBlocked(clientIP) {
			c.JSON(429, gin.H{
				"error":   "Too Many Requests",
				"message": "Too many failed authentication attempts, your IP is temporarily blocked",
			})
			c.Abort()
			return
		}

		providedKey := getAccessKey(c)
		if secureCompare(providedKey, envCfg.AccessKey) {
			if failureLimiter != nil {
				failureLimiter.ClearFailures(clientIP)
			}
			c.Set(ContextKeyClientName, "access-key")
			c.Next()
			return
		}

		if failureLimiter != nil {
			failureLimiter.RecordFailure(clientIP)
		}

		reason := "invalid key"
		if providedKey == "" {
			reason = "missing key"
		}
		log.Printf("🔒 [Auth] Rejected request | IP: %s | Path: %s | Time: %s | Reason: %s",
			clientIP, path, time.Now().Format(time.RFC3339), reason)

		c.JSON(401, gin.H{
			"error":   "Unauthorized",
			"message": "Invalid or missing access key",
		})
		c.Abort()
	}
}
