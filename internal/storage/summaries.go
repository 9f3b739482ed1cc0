package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// GetMonthSummary reads a cached month summary. ok is false on a miss.
func (s *SQLiteStorage) GetMonthSummary(ctx context.Context, userID int64, monthKey string) (model.MonthSummary, bool, error) {
	if err := validateContext(ctx); err != nil {
		return model.MonthSummary{}, false, err
	}
	if err := validateString(monthKey, "monthKey"); err != nil {
		return model.MonthSummary{}, false, err
	}

	var income, spending decimal.Decimal
	err := s.db.QueryRowContext(ctx,
		`SELECT total_income, total_spending FROM monthly_summaries WHERE user_id = ? AND month_key = ?`,
		userID, monthKey,
	).Scan(&income, &spending)

	if errors.Is(err, sql.ErrNoRows) {
		return model.MonthSummary{}, false, nil
	}
	if err != nil {
		return model.MonthSummary{}, false, fmt.Errorf("failed to query month summary: %w", err)
	}

	return model.NewSummary(income, spending), true, nil
}

// SummaryGeneration returns the user's current cache generation. Every
// invalidation advances it.
func (s *SQLiteStorage) SummaryGeneration(ctx context.Context, userID int64) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var generation int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT generation FROM summary_generations WHERE user_id = ?), 0)`,
		userID,
	).Scan(&generation)
	if err != nil {
		return 0, fmt.Errorf("failed to query summary generation: %w", err)
	}
	return generation, nil
}

// PutMonthSummary stores or replaces a cached month summary computed while
// the user's cache was at generation. If an invalidation has happened since,
// the summary may predate a write and nothing is stored; stored reports
// whether the row was written.
func (s *SQLiteStorage) PutMonthSummary(ctx context.Context, userID int64, monthKey string, generation int64, summary model.MonthSummary) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(monthKey, "monthKey"); err != nil {
		return false, err
	}

	// The generation check and the write are one statement, so an
	// invalidation cannot land between them.
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO monthly_summaries (user_id, month_key, total_income, total_spending, computed_at)
		SELECT ?, ?, ?, ?, CURRENT_TIMESTAMP
		WHERE COALESCE((SELECT generation FROM summary_generations WHERE user_id = ?), 0) = ?
		ON CONFLICT (user_id, month_key) DO UPDATE SET
			total_income = excluded.total_income,
			total_spending = excluded.total_spending,
			computed_at = excluded.computed_at`,
		userID, monthKey,
		summary.TotalIncome.StringFixed(2),
		summary.TotalSpending.StringFixed(2),
		userID, generation,
	)
	if err != nil {
		return false, fmt.Errorf("failed to store month summary: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		slog.Debug("skipped stale month summary", "user_id", userID, "month", monthKey, "generation", generation)
		return false, nil
	}
	return true, nil
}

// InvalidateMonths drops cached summaries for the given months.
func (s *SQLiteStorage) InvalidateMonths(ctx context.Context, userID int64, monthKeys ...string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(monthKeys) == 0 {
		return nil
	}

	placeholders := make([]string, len(monthKeys))
	args := make([]any, 0, len(monthKeys)+1)
	args = append(args, userID)
	for i, key := range monthKeys {
		placeholders[i] = "?"
		args = append(args, key)
	}

	query := `DELETE FROM monthly_summaries WHERE user_id = ? AND month_key IN (` + strings.Join(placeholders, ", ") + `)`
	if err := s.invalidate(ctx, userID, query, args...); err != nil {
		return fmt.Errorf("failed to invalidate month summaries: %w", err)
	}

	slog.Debug("invalidated month summaries", "user_id", userID, "months", monthKeys)
	return nil
}

// InvalidateUser drops every cached summary for a user.
func (s *SQLiteStorage) InvalidateUser(ctx context.Context, userID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := s.invalidate(ctx, userID, `DELETE FROM monthly_summaries WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to invalidate user summaries: %w", err)
	}
	return nil
}

// invalidate advances the user's generation and runs the delete in one
// transaction.
func (s *SQLiteStorage) invalidate(ctx context.Context, userID int64, deleteQuery string, args ...any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO summary_generations (user_id, generation) VALUES (?, 1)
		ON CONFLICT (user_id) DO UPDATE SET generation = generation + 1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to advance summary generation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteQuery, args...); err != nil {
		return err
	}
	return tx.Commit()
}
