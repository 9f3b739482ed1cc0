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

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS users (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					external_id TEXT NOT NULL UNIQUE,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					type TEXT NOT NULL DEFAULT 'expense' CHECK (type IN ('expense', 'income')),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (user_id, name)
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					category_id INTEGER NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					amount TEXT NOT NULL,
					transaction_date TEXT NOT NULL,
					type TEXT NOT NULL CHECK (type IN ('expense', 'income')),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_user_date ON transactions(user_id, transaction_date)`,
				`CREATE INDEX idx_transactions_category ON transactions(category_id)`,
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
		Version:     2,
		Description: "Add soft delete and single income category per user",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE transactions ADD COLUMN deleted_at DATETIME`,
				`CREATE INDEX idx_transactions_live ON transactions(user_id, deleted_at, transaction_date)`,
				`CREATE UNIQUE INDEX idx_categories_one_income ON categories(user_id) WHERE type = 'income'`,
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
		Description: "Add monthly summary cache",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS monthly_summaries (
				user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				month_key TEXT NOT NULL,
				total_income TEXT NOT NULL,
				total_spending TEXT NOT NULL,
				computed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (user_id, month_key)
			)`)
			if err != nil {
				return fmt.Errorf("failed to create monthly_summaries: %w", err)
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Add summary cache generations",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS summary_generations (
				user_id INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
				generation INTEGER NOT NULL DEFAULT 0
			)`)
			if err != nil {
				return fmt.Errorf("failed to create summary_generations: %w", err)
			}
			// Summaries computed before generations existed cannot be trusted.
			if _, err := tx.Exec(`DELETE FROM monthly_summaries`); err != nil {
				return fmt.Errorf("failed to clear monthly_summaries: %w", err)
			}
			return nil
		},
	},
}

// SchemaVersion reports the database's current PRAGMA user_version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies every pending migration in order.
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
