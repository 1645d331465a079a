// Package ledger tracks per-account free-tier usage and paid credit balances
package ledger

import (
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	// DefaultFreeTierLimit is the number of no-cost actions each account gets
	DefaultFreeTierLimit = 20

	// CreditsPerTopUp is the balance granted per rewarded top-up
	CreditsPerTopUp = 10
)

// Consumption decision reasons
const (
	ReasonFreeTier    = "free_tier"
	ReasonPaidBalance = "paid_balance"
	ReasonNoCredits   = "no_credits"
	ReasonStoreError  = "store_error"
)

// Store is the persistence interface for the ledger
type Store interface {
	GetAccount(accountID string) (*Account, error)
	SaveAccount(a *Account) error
	RecordCreditEvent(accountID string, amount float64, source string) error
}

// Account holds the credit state for a single account
type Account struct {
	AccountID       string     `json:"account_id"`
	FreeActionsUsed int        `json:"free_actions_used"`
	PaidBalance     float64    `json:"paid_balance"`
	TotalTopUps     int        `json:"total_top_ups"`
	LastTopUpSource string     `json:"last_top_up_source,omitempty"`
	LastTopUpAt     *time.Time `json:"last_top_up_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Decision is the outcome of a consumption check
type Decision struct {
	Allowed       bool    `json:"allowed"`
	Reason        string  `json:"reason"`
	RemainingFree int     `json:"remaining_free"`
	PaidBalance   float64 `json:"paid_balance"`
}

// Stats is the display-oriented view of an account
type Stats struct {
	AccountID     string  `json:"account_id"`
	FreeUsed      int     `json:"free_used"`
	FreeLimit     int     `json:"free_limit"`
	RemainingFree int     `json:"remaining_free"`
	PaidBalance   float64 `json:"paid_balance"`
	TotalTopUps   int     `json:"total_top_ups"`
}

// Manager manages account credit state. All mutations go through the
// manager's mutex so concurrent consumers cannot lose updates.
type Manager struct {
	mu        sync.Mutex
	accounts  map[string]*Account
	store     Store
	freeLimit int
}

// NewManager creates a ledger manager backed by the given store.
// A nil store keeps all state in memory.
func NewManager(store Store, freeLimit int) *Manager {
	if freeLimit <= 0 {
		freeLimit = DefaultFreeTierLimit
	}
	return &Manager{
		accounts:  make(map[string]*Account),
		store:     store,
		freeLimit: freeLimit,
	}
}

// SetFreeLimit updates the free-tier ceiling (hot config reload)
func (m *Manager) SetFreeLimit(limit int) {
	if limit <= 0 {
		return
	}
	m.mu.Lock()
	m.freeLimit = limit
	m.mu.Unlock()
}

// getOrCreate returns the account, loading from the store or creating a
// fresh record on first sight. Must be called with the lock held.
func (m *Manager) getOrCreate(accountID string) (*Account, error) {
	if a, ok := m.accounts[accountID]; ok {
		return a, nil
	}

	if m.store != nil {
		a, err := m.store.GetAccount(accountID)
		if err != nil {
			return nil, fmt.Errorf("failed to load account %s: %w", accountID, err)
		}
		if a != nil {
			m.accounts[accountID] = a
			return a, nil
		}
	}

	now := time.Now()
	a := &Account{
		AccountID: accountID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.accounts[accountID] = a
	m.persist(a)
	return a, nil
}

// persist saves the account, logging on failure. Must be called with the
// lock held.
func (m *Manager) persist(a *Account) error {
	if m.store == nil {
		return nil
	}
	a.UpdatedAt = time.Now()
	if err := m.store.SaveAccount(a); err != nil {
		log.Printf("⚠️ [Ledger] Failed to persist account %s: %v", a.AccountID, err)
		return err
	}
	return nil
}

// CanConsume reports whether the account could pay for one action right
// now, without spending anything. A store failure denies the action.
func (m *Manager) CanConsume(accountID string) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.getOrCreate(accountID)
	if err != nil {
		log.Printf("⚠️ [Ledger] Denying %s: %v", accountID, err)
		return Decision{Allowed: false, Reason: ReasonStoreError}
	}

	return m.decide(a)
}

// decide evaluates free tier first, then paid balance. Lock must be held.
func (m *Manager) decide(a *Account) Decision {
	d := Decision{
		RemainingFree: m.freeLimit - a.FreeActionsUsed,
		PaidBalance:   a.PaidBalance,
	}
	if d.RemainingFree < 0 {
		d.RemainingFree = 0
	}

	switch {
	case a.FreeActionsUsed < m.freeLimit:
		d.Allowed = true
		d.Reason = ReasonFreeTier
	case a.PaidBalance >= 1:
		d.Allowed = true
		d.Reason = ReasonPaidBalance
	default:
		d.Reason = ReasonNoCredits
	}
	return d
}

// Consume spends exactly one action: a free-tier slot if any remain,
// otherwise one unit of paid balance. The state is re-checked under the
// lock, so a passing CanConsume does not guarantee Consume succeeds.
// Persistence failure rolls the charge back and denies the action.
func (m *Manager) Consume(accountID string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.getOrCreate(accountID)
	if err != nil {
		log.Printf("⚠️ [Ledger] Denying %s: %v", accountID, err)
		return Decision{Allowed: false, Reason: ReasonStoreError}, err
	}

	d := m.decide(a)
	if !d.Allowed {
		return d, nil
	}

	prev := *a
	switch d.Reason {
	case ReasonFreeTier:
		a.FreeActionsUsed++
	case ReasonPaidBalance:
		a.PaidBalance--
	}

	if err := m.persist(a); err != nil {
		*a = prev
		return Decision{Allowed: false, Reason: ReasonStoreError, RemainingFree: d.RemainingFree, PaidBalance: d.PaidBalance},
			fmt.Errorf("failed to persist consumption for %s: %w", accountID, err)
	}

	d.RemainingFree = m.freeLimit - a.FreeActionsUsed
	if d.RemainingFree < 0 {
		d.RemainingFree = 0
	}
	d.PaidBalance = a.PaidBalance
	return d, nil
}

// Credit adds paid balance unconditionally and records provenance.
// A persistence failure here still applies the credit in memory but is
// logged loudly so the grant can be reconciled by hand.
func (m *Manager) Credit(accountID string, amount float64, source string) (*Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %v", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.getOrCreate(accountID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	a.PaidBalance += amount
	a.TotalTopUps++
	a.LastTopUpSource = source
	a.LastTopUpAt = &now

	if err := m.persist(a); err != nil {
		log.Printf("🚫 [Ledger] CREDIT NOT PERSISTED for %s (amount=%v source=%s) — manual reconciliation required: %v",
			accountID, amount, source, err)
		return cloneAccount(a), fmt.Errorf("credit applied in memory but not persisted: %w", err)
	}

	if m.store != nil {
		if err := m.store.RecordCreditEvent(accountID, amount, source); err != nil {
			log.Printf("⚠️ [Ledger] Failed to record credit event for %s: %v", accountID, err)
		}
	}

	log.Printf("💰 [Ledger] Credited %s: +%v (%s), balance=%v", accountID, amount, source, a.PaidBalance)
	return cloneAccount(a), nil
}

// GetAccount returns a copy of the account state
func (m *Manager) GetAccount(accountID string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.getOrCreate(accountID)
	if err != nil {
		return nil, err
	}
	return cloneAccount(a), nil
}

// GetStats returns a display view of the account. Store failures degrade
// to a fresh default account rather than erroring.
func (m *Manager) GetStats(accountID string) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.getOrCreate(accountID)
	if err != nil {
		log.Printf("⚠️ [Ledger] Stats for %s degraded to defaults: %v", accountID, err)
		a = &Account{AccountID: accountID}
	}

	remaining := m.freeLimit - a.FreeActionsUsed
	if remaining < 0 {
		remaining = 0
	}

	return Stats{
		AccountID:     accountID,
		FreeUsed:      a.FreeActionsUsed,
		FreeLimit:     m.freeLimit,
		RemainingFree: remaining,
		PaidBalance:   a.PaidBalance,
		TotalTopUps:   a.TotalTopUps,
	}
}

func cloneAccount(a *Account) *Account {
	if a == nil {
		return nil
	}
	copy := *a
	if a.LastTopUpAt != nil {
		t := *a.LastTopUpAt
		copy.LastTopUpAt = &t
	}
	return &copy
}
