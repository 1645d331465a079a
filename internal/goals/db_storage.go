package goals

import (
	"database/sql"
	"fmt"

	"github.com/suitelabs/conductor/internal/database"
)

// DBStore provides database-backed storage for goal documents
type DBStore struct {
	db database.DB
}

// NewDBStore creates a new database document store
func NewDBStore(db database.DB) *DBStore {
	return &DBStore{db: db}
}

// LoadDocument loads the stored markdown and structured JSON for an
// owner. Returns empty strings when no document exists.
func (s *DBStore) LoadDocument(owner string) (string, string, error) {
	var markdown, docJSON string
	err := s.db.QueryRow(`
		SELECT markdown, doc_json FROM goal_documents WHERE owner = ?
	`, owner).Scan(&markdown, &docJSON)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to load goal document for %s: %w", owner, err)
	}
	return markdown, docJSON, nil
}

// SaveDocument upserts the owner's document
func (s *DBStore) SaveDocument(owner, markdown, docJSON string) error {
	_, err := s.db.Exec(`
		INSERT INTO goal_documents (owner, markdown, doc_json, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(owner) DO UPDATE SET
			markdown = EXCLUDED.markdown,
			doc_json = EXCLUDED.doc_json,
			updated_at = CURRENT_TIMESTAMP
	`, owner, markdown, docJSON)
	if err != nil {
		return fmt.Errorf("failed to save goal document for %s: %w", owner, err)
	}
	return nil
}
