package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock for deterministic tests
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memCounterStore is an in-memory Store for tests
type memCounterStore struct {
	mu       sync.Mutex
	days     map[string]map[string]TierCounters
	failLoad bool
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{days: make(map[string]map[string]TierCounters)}
}

func (s *memCounterStore) LoadDay(day string) (map[string]TierCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLoad {
		return nil, errors.New("load failed")
	}
	out := make(map[string]TierCounters)
	for tier, c := range s.days[day] {
		out[tier] = c
	}
	return out, nil
}

func (s *memCounterStore) SaveTier(day, tier string, c TierCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.days[day] == nil {
		s.days[day] = make(map[string]TierCounters)
	}
	s.days[day][tier] = c
	return nil
}

func testLimits() []TierLimit {
	return []TierLimit{
		{Name: TierPro, Model: "model-pro", RequestsPerMinute: 5, RequestsPerDay: 3},
		{Name: TierFlash, Model: "model-flash", RequestsPerMinute: 10, RequestsPerDay: 100, ThinkingBudget: 2048},
	}
}

func TestCanCallFreshTier(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(testLimits(), nil, clock.Now)

	res := tr.CanCall(TierPro)
	if !res.Allowed {
		t.Fatalf("Fresh tier should be callable, got %+v", res)
	}
}

func TestUnknownTierDenied(t *testing.T) {
	tr := NewTracker(testLimits(), nil, newFakeClock().Now)

	res := tr.CanCall("turbo")
	if res.Allowed || res.Reason != ReasonUnknownTier {
		t.Fatalf("Expected unknown_tier denial, got %+v", res)
	}
}

func TestMinuteSpacing(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(testLimits(), nil, clock.Now)

	tr.RecordCall(TierPro)

	// 5 rpm means 12s minimum spacing
	res := tr.CanCall(TierPro)
	if res.Allowed {
		t.Fatal("Expected denial immediately after a call")
	}
	if res.Reason != ReasonMinuteLimit {
		t.Errorf("Expected minute_limit, got %s", res.Reason)
	}
	if res.WaitSeconds != 12 {
		t.Errorf("Expected 12s wait, got %d", res.WaitSeconds)
	}

	clock.Advance(5 * time.Second)
	res = tr.CanCall(TierPro)
	if res.Allowed {
		t.Fatal("Expected denial after 5s of 12s spacing")
	}
	if res.WaitSeconds != 7 {
		t.Errorf("Expected 7s wait, got %d", res.WaitSeconds)
	}

	clock.Advance(7 * time.Second)
	if res := tr.CanCall(TierPro); !res.Allowed {
		t.Fatalf("Expected allow after spacing elapsed, got %+v", res)
	}
}

func TestWaitSecondsRoundsUp(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(testLimits(), nil, clock.Now)

	tr.RecordCall(TierPro)
	clock.Advance(11500 * time.Millisecond)

	res := tr.CanCall(TierPro)
	if res.Allowed {
		t.Fatal("Expected denial with 500ms of spacing left")
	}
	if res.WaitSeconds != 1 {
		t.Errorf("Expected fractional wait to round up to 1, got %d", res.WaitSeconds)
	}
}

func TestDailyLimit(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(testLimits(), nil, clock.Now)

	for i := 0; i < 3; i++ {
		if res := tr.CanCall(TierPro); !res.Allowed {
			t.Fatalf("Call %d should be allowed, got %+v", i, res)
		}
		tr.RecordCall(TierPro)
		clock.Advance(time.Minute)
	}

	res := tr.CanCall(TierPro)
	if res.Allowed {
		t.Fatal("Expected daily limit denial")
	}
	if res.Reason != ReasonDailyLimit {
		t.Errorf("Expected daily_limit, got %s", res.Reason)
	}
	// Clock is at 12:03 UTC, midnight is 11h57m away
	wantWait := int((11*time.Hour + 57*time.Minute).Seconds())
	if res.WaitSeconds != wantWait {
		t.Errorf("Expected %ds until midnight, got %d", wantWait, res.WaitSeconds)
	}

	// Other tiers are unaffected
	if res := tr.CanCall(TierFlash); !res.Allowed {
		t.Errorf("Flash tier should be unaffected, got %+v", res)
	}
}

func TestDayRolloverResetsAllTiers(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(testLimits(), nil, clock.Now)

	for i := 0; i < 3; i++ {
		tr.RecordCall(TierPro)
		clock.Advance(time.Minute)
	}
	tr.RecordCall(TierFlash)

	if res := tr.CanCall(TierPro); res.Allowed {
		t.Fatal("Pro should be at its daily limit")
	}

	clock.Advance(24 * time.Hour)

	if res := tr.CanCall(TierPro); !res.Allowed {
		t.Fatalf("Pro should reset on rollover, got %+v", res)
	}
	if res := tr.CanCall(TierFlash); !res.Allowed {
		t.Fatalf("Flash should reset on rollover, got %+v", res)
	}

	for _, s := range tr.Snapshot() {
		if s.UsedToday != 0 {
			t.Errorf("Tier %s should have 0 used after rollover, got %d", s.Tier, s.UsedToday)
		}
	}
}

func TestCooldownSeconds(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(testLimits(), nil, clock.Now)

	if got := tr.CooldownSeconds(TierPro); got != 0 {
		t.Errorf("Expected 0 cooldown for fresh tier, got %d", got)
	}

	tr.RecordCall(TierPro)
	if got := tr.CooldownSeconds(TierPro); got != 12 {
		t.Errorf("Expected 12s cooldown, got %d", got)
	}
}

func TestReset(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(testLimits(), nil, clock.Now)

	tr.RecordCall(TierPro)
	tr.Reset()

	if res := tr.CanCall(TierPro); !res.Allowed {
		t.Fatalf("Expected allow after reset, got %+v", res)
	}
}

func TestSnapshot(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(testLimits(), nil, clock.Now)

	tr.RecordCall(TierPro)

	var pro *TierStatus
	snapshot := tr.Snapshot()
	for i := range snapshot {
		if snapshot[i].Tier == TierPro {
			pro = &snapshot[i]
		}
	}
	if pro == nil {
		t.Fatal("Expected pro tier in snapshot")
	}
	if pro.UsedToday != 1 || pro.RemainingToday != 2 {
		t.Errorf("Expected 1 used / 2 remaining, got %d / %d", pro.UsedToday, pro.RemainingToday)
	}
	if pro.Model != "model-pro" {
		t.Errorf("Expected model-pro, got %s", pro.Model)
	}
	if pro.CooldownSeconds != 12 {
		t.Errorf("Expected 12s cooldown in snapshot, got %d", pro.CooldownSeconds)
	}
}

func TestUpdateLimits(t *testing.T) {
	tr := NewTracker(testLimits(), nil, newFakeClock().Now)

	if err := tr.UpdateLimits(nil); err == nil {
		t.Error("Expected error for empty limits")
	}
	if err := tr.UpdateLimits([]TierLimit{{Name: "x", Model: "m", RequestsPerMinute: 0, RequestsPerDay: 1}}); err == nil {
		t.Error("Expected error for zero rpm")
	}

	if err := tr.UpdateLimits([]TierLimit{
		{Name: TierPro, Model: "model-pro-v2", RequestsPerMinute: 2, RequestsPerDay: 10},
	}); err != nil {
		t.Fatalf("UpdateLimits failed: %v", err)
	}

	model, ok := tr.ModelFor(TierPro)
	if !ok || model != "model-pro-v2" {
		t.Errorf("Expected model-pro-v2, got %s (%v)", model, ok)
	}
	if _, ok := tr.ModelFor(TierFlash); ok {
		t.Error("Flash tier should be gone after update")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	clock := newFakeClock()
	store := newMemCounterStore()

	tr1 := NewTracker(testLimits(), store, clock.Now)
	tr1.RecordCall(TierPro)
	tr1.RecordCall(TierFlash)

	tr2 := NewTracker(testLimits(), store, clock.Now)
	var proUsed int
	for _, s := range tr2.Snapshot() {
		if s.Tier == TierPro {
			proUsed = s.UsedToday
		}
	}
	if proUsed != 1 {
		t.Errorf("Expected restored count 1, got %d", proUsed)
	}

	// Minute spacing survives the restart too
	if res := tr2.CanCall(TierPro); res.Allowed {
		t.Error("Expected minute spacing to survive restore")
	}
}

func TestRestoreFailureStartsFresh(t *testing.T) {
	store := newMemCounterStore()
	store.failLoad = true

	tr := NewTracker(testLimits(), store, newFakeClock().Now)
	if res := tr.CanCall(TierPro); !res.Allowed {
		t.Fatalf("Expected fresh counters on restore failure, got %+v", res)
	}
}

func TestThinkingBudgetFor(t *testing.T) {
	tr := NewTracker(testLimits(), nil, newFakeClock().Now)

	if got := tr.ThinkingBudgetFor(TierFlash); got != 2048 {
		t.Errorf("Expected 2048, got %d", got)
	}
	if got := tr.ThinkingBudgetFor(TierPro); got != 0 {
		t.Errorf("Expected 0, got %d", got)
	}
}
