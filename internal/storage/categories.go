package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

const categoryColumns = `id, user_id, name, type, created_at`

// GetCategories returns all categories owned by a user, ordered by name.
func (s *SQLiteStorage) GetCategories(ctx context.Context, userID int64) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCategoriesTx(ctx, s.db, userID)
}

func (s *SQLiteStorage) getCategoriesTx(ctx context.Context, q queryable, userID int64) ([]model.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE user_id = ?
		ORDER BY name`

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.UserID, &cat.Name, &cat.Type, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "user_id", userID, "count", len(categories))
	return categories, nil
}

// GetCategoryByID returns a category if it exists and belongs to userID.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, userID, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCategoryByIDTx(ctx, s.db, userID, id)
}

func (s *SQLiteStorage) getCategoryByIDTx(ctx context.Context, q queryable, userID, id int64) (*model.Category, error) {
	return scanCategory(q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`,
		id, userID,
	), fmt.Sprintf("category %d", id))
}

// GetCategoryByName returns a user's category by exact name.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, userID int64, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.getCategoryByNameTx(ctx, s.db, userID, name)
}

func (s *SQLiteStorage) getCategoryByNameTx(ctx context.Context, q queryable, userID int64, name string) (*model.Category, error) {
	return scanCategory(q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? AND name = ?`,
		userID, name,
	), fmt.Sprintf("category %q", name))
}

func scanCategory(row *sql.Row, label string) (*model.Category, error) {
	var cat model.Category
	err := row.Scan(&cat.ID, &cat.UserID, &cat.Name, &cat.Type, &cat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", label, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}
	return &cat, nil
}

// CreateCategory creates a new category for a user.
// A name clash or a second income category yields common.ErrDuplicateEntry.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, userID int64, name string, categoryType model.CategoryType) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateCategory(name, categoryType); err != nil {
		return nil, err
	}
	return s.createCategoryTx(ctx, s.db, userID, name, categoryType)
}

func (s *SQLiteStorage) createCategoryTx(ctx context.Context, q queryable, userID int64, name string, categoryType model.CategoryType) (*model.Category, error) {
	name = strings.TrimSpace(name)

	result, err := q.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type) VALUES (?, ?, ?)`,
		userID, name, categoryType,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("category %q: %w", name, common.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category ID: %w", err)
	}

	slog.Info("created new category", "name", name, "type", categoryType, "id", id)
	return s.getCategoryByIDTx(ctx, q, userID, id)
}

// UpdateCategoryType changes a category between income and expense. The
// category's transactions are retyped with it so their stored type keeps
// matching the category.
func (s *SQLiteStorage) UpdateCategoryType(ctx context.Context, userID, id int64, categoryType model.CategoryType) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if !categoryType.Valid() {
		return fmt.Errorf("%w: type %q", ErrInvalidCategory, categoryType)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.updateCategoryTypeTx(ctx, tx, userID, id, categoryType); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit category type change: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) updateCategoryTypeTx(ctx context.Context, q queryable, userID, id int64, categoryType model.CategoryType) error {
	result, err := q.ExecContext(ctx,
		`UPDATE categories SET type = ? WHERE id = ? AND user_id = ?`,
		categoryType, id, userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %d: %w", id, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to update category type: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %d: %w", id, common.ErrNotFound)
	}

	result, err = q.ExecContext(ctx,
		`UPDATE transactions SET type = ? WHERE category_id = ? AND user_id = ? AND type <> ?`,
		categoryType, id, userID, categoryType,
	)
	if err != nil {
		return fmt.Errorf("failed to retype category transactions: %w", err)
	}
	retyped, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	slog.Info("updated category type", "id", id, "type", categoryType, "transactions", retyped)
	return nil
}

// DeleteCategory removes a category. Transactions that referenced it keep
// the dangling id and report as uncategorized.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, userID, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.deleteCategoryTx(ctx, s.db, userID, id)
}

func (s *SQLiteStorage) deleteCategoryTx(ctx context.Context, q queryable, userID, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if err := expectAffected(result, fmt.Sprintf("category %d", id)); err != nil {
		return err
	}

	slog.Info("deleted category", "id", id)
	return nil
}
