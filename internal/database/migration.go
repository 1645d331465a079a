package database

import (
	"embed"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      string
}

// RunMigrations runs all pending migrations
func RunMigrations(db DB) error {
	if err := createMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion := getCurrentVersion(db)

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		log.Printf("📦 Applying migration %03d: %s", m.Version, m.Name)

		upSQL := m.Up
		if db.Dialect() == DialectPostgreSQL {
			upSQL = convertMigrationSQL(upSQL, db.Dialect())
		}

		if _, err := db.Exec(upSQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}

		if _, err := db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		log.Printf("✅ Migration %03d applied successfully", m.Version)
	}

	return nil
}

// createMigrationsTable creates the schema_migrations table if it doesn't exist
func createMigrationsTable(db DB) error {
	var createSQL string
	switch db.Dialect() {
	case DialectPostgreSQL:
		createSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`
	default:
		createSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`
	}

	_, err := db.Exec(createSQL)
	return err
}

// getCurrentVersion returns the current migration version
func getCurrentVersion(db DB) int {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0
	}
	return version
}

// loadMigrations loads all migration files from the embedded filesystem
func loadMigrations() ([]Migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, nil
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		// Filename format: 001_initial.sql -> version=1, name=initial
		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) != 2 {
			continue
		}

		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    strings.TrimSuffix(parts[1], ".sql"),
			Up:      string(content),
		})
	}

	return migrations, nil
}

// convertMigrationSQL converts SQLite-style SQL to PostgreSQL
func convertMigrationSQL(sql string, dialect Dialect) string {
	if dialect != DialectPostgreSQL {
		return sql
	}

	sql = strings.ReplaceAll(sql, "INTEGER PRIMARY KEY AUTOINCREMENT", "SERIAL PRIMARY KEY")
	sql = strings.ReplaceAll(sql, "DATETIME", "TIMESTAMP WITH TIME ZONE")
	sql = strings.ReplaceAll(sql, "BLOB", "BYTEA")

	return sql
}

// GetMigrationStatus returns the current migration status
func GetMigrationStatus(db DB) (current int, available int, pending []Migration, err error) {
	current = getCurrentVersion(db)

	migrations, err := loadMigrations()
	if err != nil {
		return 0, 0, nil, err
	}

	available = len(migrations)
	for _, m := range migrations {
		if m.Version > current {
			pending = append(pending, m)
		}
	}

	return current, available, pending, nil
}
