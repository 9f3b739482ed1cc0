// Package storage provides the data persistence layer for the ledger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidCategory    = errors.New("invalid category")
)

// maxCategoryNameLength mirrors the categories.name column width.
const maxCategoryNameLength = 100

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateIDs ensures an id list is usable in an IN clause.
func validateIDs(ids []int64) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids", ErrEmptySlice)
	}
	return nil
}

// validateFilter checks that a transaction filter names a user and a sane range.
func validateFilter(filter service.TransactionFilter) error {
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return ErrInvalidDateRange
	}
	if filter.Type != nil && !filter.Type.Valid() {
		return fmt.Errorf("%w: type %q", ErrInvalidTransaction, *filter.Type)
	}
	return nil
}

// validateCategory validates a category name and type.
func validateCategory(name string, categoryType model.CategoryType) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCategory)
	}
	if len([]rune(name)) > maxCategoryNameLength {
		return fmt.Errorf("%w: name longer than %d characters", ErrInvalidCategory, maxCategoryNameLength)
	}
	if !categoryType.Valid() {
		return fmt.Errorf("%w: type %q", ErrInvalidCategory, categoryType)
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.UserID == 0 {
		return fmt.Errorf("%w: missing user", ErrInvalidTransaction)
	}
	if txn.CategoryID == 0 {
		return fmt.Errorf("%w: missing category", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if !txn.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	if !txn.Type.Valid() {
		return fmt.Errorf("%w: type %q", ErrInvalidTransaction, txn.Type)
	}
	if len([]rune(txn.Description)) > model.MaxDescriptionLength {
		return fmt.Errorf("%w: description too long", ErrInvalidTransaction)
	}
	return nil
}
