package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// GetUserByExternalID returns the user registered under an identity subject.
func (s *SQLiteStorage) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(externalID, "externalID"); err != nil {
		return nil, err
	}
	return s.getUserByExternalIDTx(ctx, s.db, externalID)
}

func (s *SQLiteStorage) getUserByExternalIDTx(ctx context.Context, q queryable, externalID string) (*model.User, error) {
	var user model.User
	err := q.QueryRowContext(ctx,
		`SELECT id, external_id, created_at FROM users WHERE external_id = ?`,
		externalID,
	).Scan(&user.ID, &user.ExternalID, &user.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", externalID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return &user, nil
}

// CreateUser registers a new identity subject.
func (s *SQLiteStorage) CreateUser(ctx context.Context, externalID string) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(externalID, "externalID"); err != nil {
		return nil, err
	}
	return s.createUserTx(ctx, s.db, externalID)
}

func (s *SQLiteStorage) createUserTx(ctx context.Context, q queryable, externalID string) (*model.User, error) {
	result, err := q.ExecContext(ctx, `INSERT INTO users (external_id) VALUES (?)`, externalID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %q: %w", externalID, common.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user ID: %w", err)
	}

	slog.Info("created new user", "id", id)
	return s.getUserByExternalIDTx(ctx, q, externalID)
}

// isUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY conflict.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
