// Package testutil provides test database helpers shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/shopspring/decimal"
)

// TestDB is a migrated in-memory database with seeding helpers.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	user := db.MustUser("user_1")
//	food := db.MustCategory(user, "Food", model.CategoryTypeExpense)
//	db.MustTransaction(user, food, "12.50", testutil.Date(2024, 1, 5))
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// MustUser registers an external identity.
func (db *TestDB) MustUser(externalID string) *model.User {
	db.t.Helper()
	user, err := db.Storage.CreateUser(context.Background(), externalID)
	if err != nil {
		db.t.Fatalf("failed to seed user %q: %v", externalID, err)
	}
	return user
}

// MustCategory creates a category owned by user.
func (db *TestDB) MustCategory(user *model.User, name string, categoryType model.CategoryType) *model.Category {
	db.t.Helper()
	cat, err := db.Storage.CreateCategory(context.Background(), user.ID, name, categoryType)
	if err != nil {
		db.t.Fatalf("failed to seed category %q: %v", name, err)
	}
	return cat
}

// MustTransaction records a transaction of the category's type.
func (db *TestDB) MustTransaction(user *model.User, cat *model.Category, amount string, on time.Time) *model.Transaction {
	db.t.Helper()
	txn := &model.Transaction{
		UserID:      user.ID,
		CategoryID:  cat.ID,
		Description: cat.Name + " " + amount,
		Amount:      decimal.RequireFromString(amount),
		Date:        on,
		Type:        cat.Type,
	}
	if err := db.Storage.CreateTransaction(context.Background(), txn); err != nil {
		db.t.Fatalf("failed to seed transaction: %v", err)
	}
	return txn
}

// MustDelete soft deletes a seeded transaction.
func (db *TestDB) MustDelete(txn *model.Transaction) {
	db.t.Helper()
	if err := db.Storage.SoftDeleteTransaction(context.Background(), txn.UserID, txn.ID, time.Now()); err != nil {
		db.t.Fatalf("failed to delete transaction %d: %v", txn.ID, err)
	}
}

// MustSummary caches a month summary at the user's current generation.
func (db *TestDB) MustSummary(userID int64, monthKey string, summary model.MonthSummary) {
	db.t.Helper()
	ctx := context.Background()
	generation, err := db.Storage.SummaryGeneration(ctx, userID)
	if err != nil {
		db.t.Fatalf("failed to read summary generation: %v", err)
	}
	stored, err := db.Storage.PutMonthSummary(ctx, userID, monthKey, generation, summary)
	if err != nil || !stored {
		db.t.Fatalf("failed to seed summary %s: stored=%v err=%v", monthKey, stored, err)
	}
}

// Date is midnight UTC on the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
