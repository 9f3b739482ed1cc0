// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// TransactionFilter defines filtering options for transaction queries.
// Soft deleted rows are never returned.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Type      *model.CategoryType
	UserID    int64
	Limit     int
}

// Store is the query surface shared by the storage and its transactions.
// Every method is scoped to a single user.
type Store interface {
	// User operations
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
	CreateUser(ctx context.Context, externalID string) (*model.User, error)

	// Category operations
	GetCategories(ctx context.Context, userID int64) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, userID, id int64) (*model.Category, error)
	GetCategoryByName(ctx context.Context, userID int64, name string) (*model.Category, error)
	CreateCategory(ctx context.Context, userID int64, name string, categoryType model.CategoryType) (*model.Category, error)
	UpdateCategoryType(ctx context.Context, userID, id int64, categoryType model.CategoryType) error
	DeleteCategory(ctx context.Context, userID, id int64) error

	// Transaction operations
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetTransactionByID(ctx context.Context, userID, id int64) (*model.Transaction, error)
	GetTransactionsByIDs(ctx context.Context, userID int64, ids []int64) ([]model.Transaction, error)
	CreateTransaction(ctx context.Context, txn *model.Transaction) error
	UpdateTransaction(ctx context.Context, txn *model.Transaction) error
	SetTransactionsCategory(ctx context.Context, userID int64, ids []int64, categoryID int64) (int64, error)
	SoftDeleteTransaction(ctx context.Context, userID, id int64, at time.Time) error
	GetMonthsWithTransactions(ctx context.Context, userID int64) ([]string, error)
}

// Storage is the persistence layer.
type Storage interface {
	Store

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Store
	Commit() error
	Rollback() error
}

// SummaryCache is an optional read-through cache of month summaries keyed
// by user and YYYY-MM. Results must be identical with or without it.
type SummaryCache interface {
	GetMonthSummary(ctx context.Context, userID int64, monthKey string) (model.MonthSummary, bool, error)
	SummaryGeneration(ctx context.Context, userID int64) (int64, error)
	PutMonthSummary(ctx context.Context, userID int64, monthKey string, generation int64, summary model.MonthSummary) (bool, error)
	InvalidateMonths(ctx context.Context, userID int64, monthKeys ...string) error
	InvalidateUser(ctx context.Context, userID int64) error
}

// Identity resolves the caller of the current request.
type Identity interface {
	// ExternalID returns the authenticated subject, or false if the
	// request is unauthenticated.
	ExternalID(ctx context.Context) (string, bool)
}

// Revalidator marks derived views stale after a successful write.
type Revalidator interface {
	Revalidate(ctx context.Context, views ...string)
}
