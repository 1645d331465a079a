package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTestDB(t *testing.T) DB {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "conductor-db-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	db, err := New(Config{
		Type: DialectSQLite,
		URL:  filepath.Join(tmpDir, "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestSQLiteConnection(t *testing.T) {
	db := openTestDB(t)

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}
	if db.Dialect() != DialectSQLite {
		t.Errorf("Expected dialect SQLite, got %s", db.Dialect())
	}
}

func TestMigrations(t *testing.T) {
	db := openTestDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	tables := []string{"user_credits", "credit_events", "rate_limit_days", "goal_documents", "schema_migrations"}
	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Errorf("Failed to check table %s: %v", table, err)
			continue
		}
		if count == 0 {
			t.Errorf("Table %s was not created", table)
		}
	}

	var version int
	if err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		t.Fatalf("Failed to get migration version: %v", err)
	}
	if version < 1 {
		t.Errorf("Expected migration version >= 1, got %d", version)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if err := RunMigrations(db); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	current, available, pending, err := GetMigrationStatus(db)
	if err != nil {
		t.Fatalf("Failed to get migration status: %v", err)
	}
	if current != available {
		t.Errorf("Expected current == available, got %d vs %d", current, available)
	}
	if len(pending) != 0 {
		t.Errorf("Expected no pending migrations, got %d", len(pending))
	}
}

func TestUserCreditsTable(t *testing.T) {
	db := openTestDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	_, err := db.Exec("INSERT INTO user_credits (account_id, free_actions_used, paid_balance) VALUES (?, ?, ?)",
		"acct-1", 3, 12.5)
	if err != nil {
		t.Fatalf("Failed to insert account: %v", err)
	}

	var used int
	var balance float64
	err = db.QueryRow("SELECT free_actions_used, paid_balance FROM user_credits WHERE account_id = ?", "acct-1").
		Scan(&used, &balance)
	if err != nil {
		t.Fatalf("Failed to read account: %v", err)
	}
	if used != 3 {
		t.Errorf("Expected free_actions_used 3, got %d", used)
	}
	if balance != 12.5 {
		t.Errorf("Expected paid_balance 12.5, got %f", balance)
	}

	// Primary key enforced
	_, err = db.Exec("INSERT INTO user_credits (account_id) VALUES (?)", "acct-1")
	if err == nil {
		t.Error("Expected duplicate account insert to fail")
	}
}

func TestTransaction(t *testing.T) {
	db := openTestDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	err := Transaction(db, func(tx *Tx) error {
		if _, err := tx.Exec("INSERT INTO user_credits (account_id) VALUES (?)", "tx-1"); err != nil {
			return err
		}
		_, err := tx.Exec("INSERT INTO user_credits (account_id) VALUES (?)", "tx-2")
		return err
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM user_credits").Scan(&count); err != nil {
		t.Fatalf("Failed to count accounts: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 accounts, got %d", count)
	}

	// Duplicate key inside the transaction rolls back both inserts
	err = Transaction(db, func(tx *Tx) error {
		if _, err := tx.Exec("INSERT INTO user_credits (account_id) VALUES (?)", "tx-3"); err != nil {
			return err
		}
		_, err := tx.Exec("INSERT INTO user_credits (account_id) VALUES (?)", "tx-1")
		return err
	})
	if err == nil {
		t.Error("Expected transaction to fail due to duplicate key")
	}

	if err := db.QueryRow("SELECT COUNT(*) FROM user_credits WHERE account_id = ?", "tx-3").Scan(&count); err != nil {
		t.Fatalf("Failed to count accounts: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 (rollback), got %d", count)
	}
}

func TestConvertPlaceholders(t *testing.T) {
	query := "SELECT * FROM user_credits WHERE account_id = ? AND paid_balance > ? AND free_actions_used < ?"

	if got := ConvertPlaceholders(query, DialectSQLite); got != query {
		t.Errorf("SQLite query should not change, got: %s", got)
	}

	expected := "SELECT * FROM user_credits WHERE account_id = $1 AND paid_balance > $2 AND free_actions_used < $3"
	if got := ConvertPlaceholders(query, DialectPostgreSQL); got != expected {
		t.Errorf("PostgreSQL conversion failed.\nExpected: %s\nGot: %s", expected, got)
	}
}

func TestConvertMigrationSQL(t *testing.T) {
	in := "CREATE TABLE t (id INTEGER PRIMARY KEY AUTOINCREMENT, at DATETIME, body BLOB)"
	out := convertMigrationSQL(in, DialectPostgreSQL)

	for _, want := range []string{"SERIAL PRIMARY KEY", "TIMESTAMP WITH TIME ZONE", "BYTEA"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected converted SQL to contain %q, got: %s", want, out)
		}
	}
}
