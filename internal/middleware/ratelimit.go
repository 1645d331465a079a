package middleware

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suitelabs/conductor/internal/config"
)

// rateLimitEntry records request count for a single client
type rateLimitEntry struct {
	count     int
	windowEnd time.Time
}

// RateLimitInfo contains rate limit status information
type RateLimitInfo struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter throttles clients to a fixed requests-per-minute window.
// It supports hot-reload via UpdateConfig.
type RateLimiter struct {
	mu       sync.RWMutex
	entries  map[string]*rateLimitEntry
	window   time.Duration
	maxReqs  int
	enabled  bool
	stopChan chan struct{}
}

// NewRateLimiterWithConfig creates a rate limiter with the given configuration
func NewRateLimiterWithConfig(cfg config.EndpointRateLimit) *RateLimiter {
	rl := &RateLimiter{
		entries:  make(map[string]*rateLimitEntry),
		window:   time.Minute, // Fixed 1-minute window for RPM
		maxReqs:  cfg.RequestsPerMinute,
		enabled:  cfg.Enabled,
		stopChan: make(chan struct{}),
	}

	go rl.cleanup()
	return rl
}

// UpdateConfig updates the rate limiter configuration dynamically
func (rl *RateLimiter) UpdateConfig(cfg config.EndpointRateLimit) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.maxReqs = cfg.RequestsPerMinute
	rl.enabled = cfg.Enabled
	log.Printf("🔄 Rate limiter config updated: enabled=%v, rpm=%d", cfg.Enabled, cfg.RequestsPerMinute)
}

// cleanup periodically removes expired rate limit entries
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, entry := range rl.entries {
				if now.After(entry.windowEnd) {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopChan:
			return
		}
	}
}

// Stop stops the rate limiter
func (rl *RateLimiter) Stop() {
	close(rl.stopChan)
}

// getClientKey returns the client identifier for throttling purposes
func getClientKey(c *gin.Context) string {
	if name, exists := c.Get(ContextKeyClientName); exists {
		if s, ok := name.(string); ok && s != "" {
			return "client:" + s
		}
	}
	return "ip:" + c.ClientIP()
}

// Allow checks if a request is allowed
func (rl *RateLimiter) Allow(clientKey string) bool {
	return rl.Check(clientKey).Allowed
}

// Check checks the rate limit and returns detailed window info
func (rl *RateLimiter) Check(clientKey string) RateLimitInfo {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.enabled || rl.maxReqs <= 0 {
		return RateLimitInfo{Allowed: true, Limit: 0, Remaining: 0}
	}

	now := time.Now()
	entry, exists := rl.entries[clientKey]

	if !exists || now.After(entry.windowEnd) {
		windowEnd := now.Add(rl.window)
		rl.entries[clientKey] = &rateLimitEntry{
			count:     1,
			windowEnd: windowEnd,
		}
		return RateLimitInfo{
			Allowed:   true,
			Limit:     rl.maxReqs,
			Remaining: rl.maxReqs - 1,
			ResetAt:   windowEnd,
		}
	}

	if entry.count >= rl.maxReqs {
		return RateLimitInfo{
			Allowed:   false,
			Limit:     rl.maxReqs,
			Remaining: 0,
			ResetAt:   entry.windowEnd,
		}
	}

	entry.count++
	return RateLimitInfo{
		Allowed:   true,
		Limit:     rl.maxReqs,
		Remaining: rl.maxReqs - entry.count,
		ResetAt:   entry.windowEnd,
	}
}

// APIRateLimitMiddleware throttles API endpoints and exposes the window
// state through X-RateLimit-* headers
func APIRateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil {
			c.Next()
			return
		}

		clientKey := getClientKey(c)
		info := rl.Check(clientKey)

		if info.Limit > 0 {
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetAt.Unix()))
		}

		if !info.Allowed {
			log.Printf("🚫 [API Rate Limit] Client %s exceeded request limit", clientKey)
			c.Header("Retry-After", fmt.Sprintf("%d", int(time.Until(info.ResetAt).Seconds())+1))
			c.JSON(429, gin.H{
				"error":   "Too Many Requests",
				"message": "Request rate limit exceeded, please try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// AuthFailureRateLimiter blocks IPs that keep failing authentication
type AuthFailureRateLimiter struct {
	mu         sync.RWMutex
	failures   map[string]*authFailureEntry
	thresholds []config.AuthFailureThreshold
	enabled    bool
	stopChan   chan struct{}
}

type authFailureEntry struct {
	count    int
	blockEnd time.Time
	lastFail time.Time
}

// NewAuthFailureRateLimiterWithConfig creates an auth failure rate limiter with config
func NewAuthFailureRateLimiterWithConfig(cfg config.AuthFailureConfig) *AuthFailureRateLimiter {
	arl := &AuthFailureRateLimiter{
		failures:   make(map[string]*authFailureEntry),
		thresholds: cfg.Thresholds,
		enabled:    cfg.Enabled,
		stopChan:   make(chan struct{}),
	}

	go arl.cleanup()
	return arl
}

// UpdateConfig updates the auth failure limiter configuration
func (arl *AuthFailureRateLimiter) UpdateConfig(cfg config.AuthFailureConfig) {
	arl.mu.Lock()
	defer arl.mu.Unlock()
	arl.thresholds = cfg.Thresholds
	arl.enabled = cfg.Enabled
	log.Printf("🔄 Auth failure limiter config updated: enabled=%v, thresholds=%d", cfg.Enabled, len(cfg.Thresholds))
}

// cleanup removes entries whose last failure is over an hour old
func (arl *AuthFailureRateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			arl.mu.Lock()
			now := time.Now()
			for key, entry := range arl.failures {
				if now.Sub(entry.lastFail) > 1*time.Hour {
					delete(arl.failures, key)
				}
			}
			arl.mu.Unlock()
		case <-arl.stopChan:
			return
		}
	}
}

// Stop stops the limiter
func (arl *AuthFailureRateLimiter) Stop() {
	close(arl.stopChan)
}

// RecordFailure records an authentication failure
func (arl *AuthFailureRateLimiter) RecordFailure(clientIP string) {
	arl.mu.Lock()
	defer arl.mu.Unlock()

	if !arl.enabled {
		return
	}

	now := time.Now()
	entry, exists := arl.failures[clientIP]

	if !exists {
		arl.failures[clientIP] = &authFailureEntry{
			count:    1,
			lastFail: now,
		}
		return
	}

	entry.count++
	entry.lastFail = now

	// Highest matching threshold wins
	for i := len(arl.thresholds) - 1; i >= 0; i-- {
		threshold := arl.thresholds[i]
		if entry.count >= threshold.Failures {
			entry.blockEnd = now.Add(time.Duration(threshold.BlockMinutes) * time.Minute)
			log.Printf("🔒 [Brute Force Protection] IP %s blocked for %d minutes (failures: %d)",
				clientIP, threshold.BlockMinutes, entry.count)
			break
		}
	}
}

// IsBlocked checks if an IP is currently blocked
func (arl *AuthFailureRateLimiter) IsBlocked(clientIP string) bool {
	arl.mu.RLock()
	defer arl.mu.RUnlock()

	if !arl.enabled {
		return false
	}

	entry, exists := arl.failures[clientIP]
	if !exists {
		return false
	}

	return time.Now().Before(entry.blockEnd)
}

// ClearFailures clears failure records for an IP (called on successful auth)
func (arl *AuthFailureRateLimiter) ClearFailures(clientIP string) {
	arl.mu.Lock()
	defer arl.mu.Unlock()
	delete(arl.failures, clientIP)
}
