package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suitelabs/conductor/internal/config"
	"github.com/suitelabs/conductor/internal/ratelimit"
)

// RateLimitHandler exposes tier budget status and admin controls
type RateLimitHandler struct {
	tracker *ratelimit.Tracker
	runtime *config.RuntimeManager
}

// NewRateLimitHandler creates a rate limit handler
func NewRateLimitHandler(tracker *ratelimit.Tracker, runtime *config.RuntimeManager) *RateLimitHandler {
	return &RateLimitHandler{tracker: tracker, runtime: runtime}
}

// GetStatus returns the current budget status of every tier
// GET /api/ratelimit/status
func (h *RateLimitHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tiers": h.tracker.Snapshot(),
	})
}

// Reset zeroes all tier counters for today
// POST /api/ratelimit/reset
func (h *RateLimitHandler) Reset(c *gin.Context) {
	h.tracker.Reset()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tiers":   h.tracker.Snapshot(),
	})
}

// GetConfig returns the current runtime configuration
// GET /api/config
func (h *RateLimitHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.runtime.GetConfig())
}

// UpdateConfig replaces the runtime configuration. Validation happens
// inside the runtime manager; tier budgets propagate via its change
// callback.
// PUT /api/config
func (h *RateLimitHandler) UpdateConfig(c *gin.Context) {
	var cfg config.RuntimeConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if err := h.runtime.UpdateConfig(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"config":  h.runtime.GetConfig(),
	})
}
