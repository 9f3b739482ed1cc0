package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// The category join also checks ownership so a row pointing at another
// user's category reads as uncategorized.
const transactionSelect = `
	SELECT t.id, t.user_id, t.category_id, t.description, t.amount,
	       t.transaction_date, t.type, t.created_at, t.deleted_at,
	       c.id, c.name, c.type, c.created_at
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id AND c.user_id = t.user_id`

// GetTransactions returns a user's live transactions, newest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	return s.getTransactionsTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) getTransactionsTx(ctx context.Context, q queryable, filter service.TransactionFilter) ([]model.Transaction, error) {
	var conditions []string
	args := []any{filter.UserID}

	conditions = append(conditions, "t.user_id = ?", "t.deleted_at IS NULL")
	if filter.StartDate != nil {
		conditions = append(conditions, "t.transaction_date >= ?")
		args = append(args, filter.StartDate.Format(model.DateLayout))
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "t.transaction_date <= ?")
		args = append(args, filter.EndDate.Format(model.DateLayout))
	}
	if filter.Type != nil {
		// Filter on the effective type: the owning category's when it resolves.
		conditions = append(conditions, "COALESCE(c.type, t.type) = ?")
		args = append(args, string(*filter.Type))
	}

	query := transactionSelect + " WHERE " + strings.Join(conditions, " AND ") +
		" ORDER BY t.transaction_date DESC, t.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return queryTransactions(ctx, q, query, args...)
}

// GetTransactionByID returns a live transaction owned by userID.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, userID, id int64) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransactionByIDTx(ctx, s.db, userID, id)
}

func (s *SQLiteStorage) getTransactionByIDTx(ctx context.Context, q queryable, userID, id int64) (*model.Transaction, error) {
	txns, err := queryTransactions(ctx, q,
		transactionSelect+" WHERE t.id = ? AND t.user_id = ? AND t.deleted_at IS NULL",
		id, userID)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, fmt.Errorf("transaction %d: %w", id, common.ErrNotFound)
	}
	return &txns[0], nil
}

// GetTransactionsByIDs returns the live transactions among ids owned by
// userID. Missing or foreign ids are simply absent from the result.
func (s *SQLiteStorage) GetTransactionsByIDs(ctx context.Context, userID int64, ids []int64) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateIDs(ids); err != nil {
		return nil, err
	}
	return s.getTransactionsByIDsTx(ctx, s.db, userID, ids)
}

func (s *SQLiteStorage) getTransactionsByIDsTx(ctx context.Context, q queryable, userID int64, ids []int64) ([]model.Transaction, error) {
	placeholders, idArgs := inClause(ids)
	args := append([]any{userID}, idArgs...)

	return queryTransactions(ctx, q,
		transactionSelect+" WHERE t.user_id = ? AND t.deleted_at IS NULL AND t.id IN ("+placeholders+") ORDER BY t.id",
		args...)
}

// CreateTransaction inserts txn and fills in its ID and CreatedAt.
func (s *SQLiteStorage) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return s.createTransactionTx(ctx, s.db, txn)
}

func (s *SQLiteStorage) createTransactionTx(ctx context.Context, q queryable, txn *model.Transaction) error {
	result, err := q.ExecContext(ctx, `
		INSERT INTO transactions (user_id, category_id, description, amount, transaction_date, type)
		VALUES (?, ?, ?, ?, ?, ?)`,
		txn.UserID,
		txn.CategoryID,
		txn.Description,
		txn.Amount.StringFixed(2),
		txn.Date.Format(model.DateLayout),
		string(txn.Type),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get transaction ID: %w", err)
	}

	saved, err := s.getTransactionByIDTx(ctx, q, txn.UserID, id)
	if err != nil {
		return err
	}
	*txn = *saved

	slog.Debug("created transaction", "id", id, "user_id", txn.UserID, "date", txn.Date.Format(model.DateLayout))
	return nil
}

// UpdateTransaction overwrites the mutable fields of a live transaction.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return s.updateTransactionTx(ctx, s.db, txn)
}

func (s *SQLiteStorage) updateTransactionTx(ctx context.Context, q queryable, txn *model.Transaction) error {
	result, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET category_id = ?, description = ?, amount = ?, transaction_date = ?, type = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		txn.CategoryID,
		txn.Description,
		txn.Amount.StringFixed(2),
		txn.Date.Format(model.DateLayout),
		string(txn.Type),
		txn.ID,
		txn.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	return expectAffected(result, fmt.Sprintf("transaction %d", txn.ID))
}

// SetTransactionsCategory points every live transaction in ids owned by
// userID at categoryID and returns how many rows changed.
func (s *SQLiteStorage) SetTransactionsCategory(ctx context.Context, userID int64, ids []int64, categoryID int64) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateIDs(ids); err != nil {
		return 0, err
	}
	return s.setTransactionsCategoryTx(ctx, s.db, userID, ids, categoryID)
}

func (s *SQLiteStorage) setTransactionsCategoryTx(ctx context.Context, q queryable, userID int64, ids []int64, categoryID int64) (int64, error) {
	placeholders, idArgs := inClause(ids)
	args := append([]any{categoryID, userID}, idArgs...)

	result, err := q.ExecContext(ctx,
		`UPDATE transactions SET category_id = ?
		 WHERE user_id = ? AND deleted_at IS NULL AND id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("failed to recategorize transactions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

// SoftDeleteTransaction hides a transaction from every read. Deleting an
// already deleted row keeps its original deletion time.
func (s *SQLiteStorage) SoftDeleteTransaction(ctx context.Context, userID, id int64, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.softDeleteTransactionTx(ctx, s.db, userID, id, at)
}

func (s *SQLiteStorage) softDeleteTransactionTx(ctx context.Context, q queryable, userID, id int64, at time.Time) error {
	result, err := q.ExecContext(ctx,
		`UPDATE transactions SET deleted_at = COALESCE(deleted_at, ?) WHERE id = ? AND user_id = ?`,
		at.UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return expectAffected(result, fmt.Sprintf("transaction %d", id))
}

// GetMonthsWithTransactions lists the YYYY-MM keys holding live rows, newest first.
func (s *SQLiteStorage) GetMonthsWithTransactions(ctx context.Context, userID int64) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getMonthsWithTransactionsTx(ctx, s.db, userID)
}

func (s *SQLiteStorage) getMonthsWithTransactionsTx(ctx context.Context, q queryable, userID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT substr(transaction_date, 1, 7) AS month
		FROM transactions
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY month DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query months: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var months []string
	for rows.Next() {
		var month string
		if err := rows.Scan(&month); err != nil {
			return nil, fmt.Errorf("failed to scan month: %w", err)
		}
		months = append(months, month)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating months: %w", err)
	}
	return months, nil
}

func queryTransactions(ctx context.Context, q queryable, query string, args ...any) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

func scanTransaction(rows *sql.Rows) (model.Transaction, error) {
	var (
		txn          model.Transaction
		date         string
		deletedAt    sql.NullTime
		catID        sql.NullInt64
		catName      sql.NullString
		catType      sql.NullString
		catCreatedAt sql.NullTime
	)

	err := rows.Scan(
		&txn.ID, &txn.UserID, &txn.CategoryID, &txn.Description, &txn.Amount,
		&date, &txn.Type, &txn.CreatedAt, &deletedAt,
		&catID, &catName, &catType, &catCreatedAt,
	)
	if err != nil {
		return txn, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.Date, err = time.Parse(model.DateLayout, date)
	if err != nil {
		return txn, fmt.Errorf("transaction %d has malformed date %q: %w", txn.ID, date, err)
	}

	if deletedAt.Valid {
		t := deletedAt.Time
		txn.DeletedAt = &t
	}

	if catID.Valid {
		txn.Category = &model.Category{
			ID:        catID.Int64,
			UserID:    txn.UserID,
			Name:      catName.String,
			Type:      model.CategoryType(catType.String),
			CreatedAt: catCreatedAt.Time,
		}
	}

	return txn, nil
}

func expectAffected(result sql.Result, label string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", label, common.ErrNotFound)
	}
	return nil
}

func inClause(ids []int64) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}
