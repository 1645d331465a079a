package ratelimit

import (
	"log"
	"math"
	"sync"
	"time"
)

// Store is the persistence interface for tier counters
type Store interface {
	LoadDay(day string) (map[string]TierCounters, error)
	SaveTier(day, tier string, counters TierCounters) error
}

// TierCounters is the persisted state of one tier for one calendar day
type TierCounters struct {
	Count      int   `json:"count"`
	LastCallMs int64 `json:"last_call_ms"`
}

// Tracker enforces per-tier minute spacing and daily ceilings. The day
// rolls over lazily: the first check after midnight resets every tier.
type Tracker struct {
	mu     sync.Mutex
	limits map[string]TierLimit
	day    string
	tiers  map[string]*TierCounters
	store  Store
	now    func() time.Time
}

// NewTracker creates a tracker with the given limits. A nil store keeps
// counters in memory only; a nil clock uses wall time.
func NewTracker(limits []TierLimit, store Store, clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	if len(limits) == 0 {
		limits = DefaultTierLimits()
	}

	t := &Tracker{
		limits: make(map[string]TierLimit),
		tiers:  make(map[string]*TierCounters),
		store:  store,
		now:    clock,
	}
	for _, l := range limits {
		t.limits[l.Name] = l
	}

	t.day = dayString(t.now())
	t.restore()
	return t
}

// restore loads today's counters from the store, degrading to zeroed
// counters on failure.
func (t *Tracker) restore() {
	if t.store == nil {
		return
	}
	saved, err := t.store.LoadDay(t.day)
	if err != nil {
		log.Printf("⚠️ [RateLimit] Failed to restore counters for %s, starting fresh: %v", t.day, err)
		return
	}
	restored := 0
	for tier, c := range saved {
		if _, known := t.limits[tier]; !known {
			continue
		}
		counters := c
		t.tiers[tier] = &counters
		restored++
	}
	if restored > 0 {
		log.Printf("📊 [RateLimit] Restored %d tier counter(s) for %s", restored, t.day)
	}
}

// rollover resets every tier when the calendar day changes. Lock must be
// held.
func (t *Tracker) rollover(now time.Time) {
	today := dayString(now)
	if today == t.day {
		return
	}
	log.Printf("🔄 [RateLimit] Day rollover %s → %s, resetting all tiers", t.day, today)
	t.day = today
	t.tiers = make(map[string]*TierCounters)
}

// counters returns the live counter record for a tier. Lock must be held.
func (t *Tracker) counters(tier string) *TierCounters {
	c, ok := t.tiers[tier]
	if !ok {
		c = &TierCounters{}
		t.tiers[tier] = c
	}
	return c
}

// check evaluates the tier budget without mutating counters. Lock must
// be held.
func (t *Tracker) check(tier string, now time.Time) CheckResult {
	limit, ok := t.limits[tier]
	if !ok {
		return CheckResult{Allowed: false, Reason: ReasonUnknownTier}
	}

	c := t.counters(tier)

	if c.Count >= limit.RequestsPerDay {
		return CheckResult{
			Allowed:     false,
			Reason:      ReasonDailyLimit,
			WaitSeconds: secondsUntilTomorrow(now),
		}
	}

	// Minimum spacing between calls derived from the per-minute budget
	minWaitMs := int64(60000 / limit.RequestsPerMinute)
	elapsedMs := now.UnixMilli() - c.LastCallMs
	if c.LastCallMs > 0 && elapsedMs < minWaitMs {
		wait := int(math.Ceil(float64(minWaitMs-elapsedMs) / 1000))
		if wait < 1 {
			wait = 1
		}
		return CheckResult{Allowed: false, Reason: ReasonMinuteLimit, WaitSeconds: wait}
	}

	return CheckResult{Allowed: true}
}

// CanCall reports whether a call on the tier is currently within budget
func (t *Tracker) CanCall(tier string) CheckResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.rollover(now)
	return t.check(tier, now)
}

// RecordCall counts one successful call against the tier. Callers must
// only record calls that actually completed.
func (t *Tracker) RecordCall(tier string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.rollover(now)

	c := t.counters(tier)
	c.Count++
	c.LastCallMs = now.UnixMilli()

	t.persist(tier, *c)
}

// persist saves one tier's counters, logging on failure. Lock must be
// held.
func (t *Tracker) persist(tier string, c TierCounters) {
	if t.store == nil {
		return
	}
	if err := t.store.SaveTier(t.day, tier, c); err != nil {
		log.Printf("⚠️ [RateLimit] Failed to persist %s counters: %v", tier, err)
	}
}

// CooldownSeconds returns how long until the tier can be called again.
// Zero means the tier is callable now.
func (t *Tracker) CooldownSeconds(tier string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.rollover(now)

	res := t.check(tier, now)
	if res.Allowed {
		return 0
	}
	return res.WaitSeconds
}

// ModelFor returns the upstream model name for a tier
func (t *Tracker) ModelFor(tier string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	limit, ok := t.limits[tier]
	if !ok {
		return "", false
	}
	return limit.Model, true
}

// ThinkingBudgetFor returns the tier's thinking budget (0 when unset)
func (t *Tracker) ThinkingBudgetFor(tier string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limits[tier].ThinkingBudget
}

// Snapshot returns the current status of every configured tier
func (t *Tracker) Snapshot() []TierStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.rollover(now)

	statuses := make([]TierStatus, 0, len(t.limits))
	for name, limit := range t.limits {
		c := t.counters(name)
		res := t.check(name, now)

		remaining := limit.RequestsPerDay - c.Count
		if remaining < 0 {
			remaining = 0
		}

		s := TierStatus{
			Tier:           name,
			Model:          limit.Model,
			UsedToday:      c.Count,
			DailyLimit:     limit.RequestsPerDay,
			RemainingToday: remaining,
		}
		if !res.Allowed {
			s.CooldownSeconds = res.WaitSeconds
		}
		statuses = append(statuses, s)
	}
	return statuses
}

// Reset zeroes all tier counters for the current day
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.day = dayString(t.now())
	t.tiers = make(map[string]*TierCounters)
	for name := range t.limits {
		t.persist(name, TierCounters{})
	}
	log.Printf("🔄 [RateLimit] All tier counters reset")
}

// UpdateLimits swaps the tier budgets (hot config reload). Counters for
// tiers that survive the swap are retained.
func (t *Tracker) UpdateLimits(limits []TierLimit) error {
	if err := ValidateTierLimits(limits); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.limits = make(map[string]TierLimit, len(limits))
	for _, l := range limits {
		t.limits[l.Name] = l
	}
	log.Printf("✅ [RateLimit] Tier limits updated (%d tiers)", len(limits))
	return nil
}

func dayString(t time.Time) string {
	return t.Format("2006-01-02")
}

func secondsUntilTomorrow(now time.Time) int {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	secs := int(math.Ceil(midnight.Sub(now).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
