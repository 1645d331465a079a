// Package ratelimit tracks per-tier call budgets with minute spacing and
// daily ceilings
package ratelimit

import "fmt"

// Well-known tier names
const (
	TierPro       = "pro"
	TierFlash     = "flash"
	TierFlashLite = "flash-lite"
)

// Denial reasons
const (
	ReasonMinuteLimit = "minute_limit"
	ReasonDailyLimit  = "daily_limit"
	ReasonUnknownTier = "unknown_tier"
)

// TierLimit defines the call budget for one model tier
type TierLimit struct {
	Name              string `json:"name"`
	Model             string `json:"model"`
	RequestsPerMinute int    `json:"requestsPerMinute"`
	RequestsPerDay    int    `json:"requestsPerDay"`
	ThinkingBudget    int    `json:"thinkingBudget,omitempty"`
}

// CheckResult is the outcome of a tier budget check
type CheckResult struct {
	Allowed     bool   `json:"allowed"`
	Reason      string `json:"reason,omitempty"`
	WaitSeconds int    `json:"wait_seconds,omitempty"`
}

// TierStatus is a point-in-time view of one tier's counters
type TierStatus struct {
	Tier            string `json:"tier"`
	Model           string `json:"model"`
	UsedToday       int    `json:"used_today"`
	DailyLimit      int    `json:"daily_limit"`
	RemainingToday  int    `json:"remaining_today"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

// DefaultTierLimits returns the built-in tier budgets
func DefaultTierLimits() []TierLimit {
	return []TierLimit{
		{Name: TierPro, Model: "gemini-2.5-pro", RequestsPerMinute: 5, RequestsPerDay: 100},
		{Name: TierFlash, Model: "gemini-3-flash-preview", RequestsPerMinute: 10, RequestsPerDay: 100, ThinkingBudget: 2048},
		{Name: TierFlashLite, Model: "gemini-2.5-flash-lite", RequestsPerMinute: 15, RequestsPerDay: 1000},
	}
}

// ValidateTierLimits checks a tier limit list for use as runtime config
func ValidateTierLimits(limits []TierLimit) error {
	if len(limits) == 0 {
		return fmt.Errorf("at least one tier is required")
	}
	seen := make(map[string]bool)
	for i, l := range limits {
		if l.Name == "" {
			return fmt.Errorf("tiers[%d].name must not be empty", i)
		}
		if seen[l.Name] {
			return fmt.Errorf("duplicate tier name: %s", l.Name)
		}
		seen[l.Name] = true
		if l.Model == "" {
			return fmt.Errorf("tiers[%d].model must not be empty", i)
		}
		if l.RequestsPerMinute <= 0 {
			return fmt.Errorf("tiers[%d].requestsPerMinute must be positive", i)
		}
		if l.RequestsPerDay <= 0 {
			return fmt.Errorf("tiers[%d].requestsPerDay must be positive", i)
		}
		if l.ThinkingBudget < 0 {
			return fmt.Errorf("tiers[%d].thinkingBudget must be non-negative", i)
		}
	}
	return nil
}
