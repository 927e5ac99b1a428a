package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

// defaultCategories seed the catalogue handed to the generative tier.
var defaultCategories = []struct {
	name        string
	description string
}{
	{"Income", "Salary, interest and other money received"},
	{"Groceries", "Supermarkets and food for the home"},
	{"Dining", "Restaurants, cafes and food delivery"},
	{"Transport", "Ride hailing, fuel, parking and public transport"},
	{"Entertainment", "Streaming, games, events and subscriptions"},
	{"Utilities", "Electricity, water, phone and internet"},
	{"Housing", "Rent, mortgage and home maintenance"},
	{"Health", "Pharmacies, doctors and insurance"},
	{"Shopping", "Retail and online purchases"},
	{"Family", "Transfers to and spending on family members"},
	{"Transfers", "Money moved between people or own accounts"},
	{"Fees", "Bank fees and commissions"},
	{"Cash", "ATM withdrawals"},
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					raw_text TEXT NOT NULL,
					normalized_text TEXT NOT NULL,
					counterparty_id TEXT,
					amount REAL NOT NULL DEFAULT 0,
					currency TEXT,
					occurred_at DATETIME NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_user ON transactions(user_id, occurred_at)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL UNIQUE,
					description TEXT,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					position INTEGER NOT NULL,
					name TEXT NOT NULL,
					pattern TEXT NOT NULL,
					is_regex BOOLEAN NOT NULL DEFAULT 0,
					category_id TEXT NOT NULL,
					confidence REAL NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_rules_position ON rules(position)`,

				`CREATE TABLE IF NOT EXISTS personal_patterns (
					user_id TEXT NOT NULL,
					pattern TEXT NOT NULL,
					category_id TEXT NOT NULL,
					times_confirmed INTEGER NOT NULL DEFAULT 1,
					confidence REAL NOT NULL,
					last_used DATETIME NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (user_id, pattern)
				)`,

				`CREATE TABLE IF NOT EXISTS contacts (
					user_id TEXT NOT NULL,
					counterparty_id TEXT NOT NULL,
					alias TEXT,
					default_category_id TEXT NOT NULL DEFAULT '',
					relationship_type TEXT,
					transaction_count INTEGER NOT NULL DEFAULT 0,
					total_amount REAL NOT NULL DEFAULT 0,
					updated_at DATETIME NOT NULL,
					PRIMARY KEY (user_id, counterparty_id)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}

			for _, cat := range defaultCategories {
				if _, err := tx.Exec(
					`INSERT OR IGNORE INTO categories (id, name, description) VALUES (?, ?, ?)`,
					cat.name, cat.name, cat.description,
				); err != nil {
					return fmt.Errorf("failed to seed category %q: %w", cat.name, err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Embedding index partitions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS embeddings (
					id TEXT PRIMARY KEY,
					owner_scope TEXT NOT NULL,
					normalized_text TEXT NOT NULL,
					category_id TEXT NOT NULL,
					dimensions INTEGER NOT NULL,
					vector BLOB NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_embeddings_scope ON embeddings(owner_scope)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Global consensus proposals and correction audit log",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS global_proposals (
					pattern TEXT PRIMARY KEY,
					category_id TEXT NOT NULL DEFAULT '',
					user_count INTEGER NOT NULL DEFAULT 0,
					confidence_score REAL NOT NULL DEFAULT 0,
					status TEXT NOT NULL DEFAULT 'pending'
						CHECK (status IN ('pending', 'approved', 'rejected')),
					approved_by TEXT,
					approved_at DATETIME,
					version INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_global_proposals_status ON global_proposals(status)`,

				`CREATE TABLE IF NOT EXISTS proposal_votes (
					pattern TEXT NOT NULL,
					user_id TEXT NOT NULL,
					category_id TEXT NOT NULL,
					voted_at DATETIME NOT NULL,
					PRIMARY KEY (pattern, user_id),
					FOREIGN KEY (pattern) REFERENCES global_proposals(pattern)
				)`,
				`CREATE INDEX idx_proposal_votes_category ON proposal_votes(pattern, category_id)`,

				`CREATE TABLE IF NOT EXISTS corrections (
					id TEXT PRIMARY KEY,
					transaction_id TEXT,
					user_id TEXT NOT NULL,
					category_id TEXT NOT NULL,
					pattern TEXT NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_corrections_user ON corrections(user_id, created_at)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Corrected text in the audit log",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE corrections ADD COLUMN normalized_text TEXT NOT NULL DEFAULT ''`,
				`CREATE INDEX idx_corrections_pattern ON corrections(pattern, category_id)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate runs all database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the current PRAGMA user_version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
