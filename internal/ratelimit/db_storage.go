package ratelimit

import (
	"fmt"
	"log"

	"github.com/suitelabs/conductor/internal/database"
)

// DBStore provides database-backed storage for tier counters
type DBStore struct {
	db database.DB
}

// NewDBStore creates a new database counter store
func NewDBStore(db database.DB) *DBStore {
	return &DBStore{db: db}
}

// LoadDay loads all tier counters recorded for the given day
func (s *DBStore) LoadDay(day string) (map[string]TierCounters, error) {
	rows, err := s.db.Query(`
		SELECT tier, call_count, last_call_ms FROM rate_limit_days WHERE day = ?
	`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query counters for %s: %w", day, err)
	}
	defer rows.Close()

	counters := make(map[string]TierCounters)
	for rows.Next() {
		var tier string
		var c TierCounters
		if err := rows.Scan(&tier, &c.Count, &c.LastCallMs); err != nil {
			log.Printf("⚠️ Failed to scan tier counters: %v", err)
			continue
		}
		counters[tier] = c
	}
	return counters, rows.Err()
}

// SaveTier upserts one tier's counters for the given day
func (s *DBStore) SaveTier(day, tier string, c TierCounters) error {
	_, err := s.db.Exec(`
		INSERT INTO rate_limit_days (day, tier, call_count, last_call_ms, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(day, tier) DO UPDATE SET
			call_count = EXCLUDED.call_count,
			last_call_ms = EXCLUDED.last_call_ms,
			updated_at = CURRENT_TIMESTAMP
	`, day, tier, c.Count, c.LastCallMs)
	if err != nil {
		return fmt.Errorf("failed to save counters for %s/%s: %w", day, tier, err)
	}
	return nil
}
