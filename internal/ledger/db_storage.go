package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/suitelabs/conductor/internal/database"
)

// DBStore provides database-backed storage for the ledger
type DBStore struct {
	db database.DB
}

// NewDBStore creates a new database ledger store
func NewDBStore(db database.DB) *DBStore {
	return &DBStore{db: db}
}

// GetAccount loads an account by ID. Returns (nil, nil) when the account
// does not exist yet.
func (s *DBStore) GetAccount(accountID string) (*Account, error) {
	var (
		a           Account
		lastTopUpAt sql.NullString
		createdAt   sql.NullString
		updatedAt   sql.NullString
	)

	err := s.db.QueryRow(`
		SELECT account_id, free_actions_used, paid_balance, total_top_ups,
		       last_top_up_source, last_top_up_at, created_at, updated_at
		FROM user_credits WHERE account_id = ?
	`, accountID).Scan(
		&a.AccountID, &a.FreeActionsUsed, &a.PaidBalance, &a.TotalTopUps,
		&a.LastTopUpSource, &lastTopUpAt, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account %s: %w", accountID, err)
	}

	if t, ok := parseDBTime(lastTopUpAt); ok {
		a.LastTopUpAt = &t
	}
	if t, ok := parseDBTime(createdAt); ok {
		a.CreatedAt = t
	}
	if t, ok := parseDBTime(updatedAt); ok {
		a.UpdatedAt = t
	}

	return &a, nil
}

// SaveAccount upserts the account row
func (s *DBStore) SaveAccount(a *Account) error {
	var lastTopUpAt interface{}
	if a.LastTopUpAt != nil {
		lastTopUpAt = a.LastTopUpAt.UTC().Format(time.RFC3339)
	}

	_, err := s.db.Exec(`
		INSERT INTO user_credits (account_id, free_actions_used, paid_balance, total_top_ups,
		                          last_top_up_source, last_top_up_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			free_actions_used = EXCLUDED.free_actions_used,
			paid_balance = EXCLUDED.paid_balance,
			total_top_ups = EXCLUDED.total_top_ups,
			last_top_up_source = EXCLUDED.last_top_up_source,
			last_top_up_at = EXCLUDED.last_top_up_at,
			updated_at = EXCLUDED.updated_at
	`, a.AccountID, a.FreeActionsUsed, a.PaidBalance, a.TotalTopUps,
		a.LastTopUpSource, lastTopUpAt,
		a.CreatedAt.UTC().Format(time.RFC3339), a.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", a.AccountID, err)
	}
	return nil
}

// RecordCreditEvent appends a provenance row for a credit grant
func (s *DBStore) RecordCreditEvent(accountID string, amount float64, source string) error {
	_, err := s.db.Exec(`
		INSERT INTO credit_events (account_id, amount, source) VALUES (?, ?, ?)
	`, accountID, amount, source)
	if err != nil {
		return fmt.Errorf("failed to record credit event for %s: %w", accountID, err)
	}
	return nil
}

func parseDBTime(v sql.NullString) (time.Time, bool) {
	if !v.Valid || v.String == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v.String); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
