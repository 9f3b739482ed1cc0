package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

type fixture struct {
	user    *model.User
	food    *model.Category
	salary  *model.Category
	store   *SQLiteStorage
	cleanup func()
}

func newFixture(t *testing.T, externalID string) *fixture {
	t.Helper()
	store, cleanup := createTestStorage(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, externalID)
	require.NoError(t, err)
	food, err := store.CreateCategory(ctx, user.ID, "Food", model.CategoryTypeExpense)
	require.NoError(t, err)
	salary, err := store.CreateCategory(ctx, user.ID, model.IncomeCategoryName, model.CategoryTypeIncome)
	require.NoError(t, err)

	return &fixture{user: user, food: food, salary: salary, store: store, cleanup: cleanup}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) addTransaction(t *testing.T, cat *model.Category, amount string, on time.Time) *model.Transaction {
	t.Helper()
	txn := &model.Transaction{
		UserID:      f.user.ID,
		CategoryID:  cat.ID,
		Description: "test " + amount,
		Amount:      decimal.RequireFromString(amount),
		Date:        on,
		Type:        cat.Type,
	}
	require.NoError(t, f.store.CreateTransaction(context.Background(), txn))
	return txn
}

func TestMigrate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Re-running is a no-op.
	require.NoError(t, store.Migrate(ctx))
}

func TestNewSQLiteStorageRejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestUsers(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.GetUserByExternalID(ctx, "user_123")
	assert.ErrorIs(t, err, common.ErrNotFound)

	created, err := store.CreateUser(ctx, "user_123")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "user_123", created.ExternalID)

	got, err := store.GetUserByExternalID(ctx, "user_123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = store.CreateUser(ctx, "user_123")
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestCategories(t *testing.T) {
	f := newFixture(t, "user_cat")
	defer f.cleanup()
	ctx := context.Background()

	t.Run("list is ordered and scoped", func(t *testing.T) {
		other, err := f.store.CreateUser(ctx, "someone_else")
		require.NoError(t, err)
		_, err = f.store.CreateCategory(ctx, other.ID, "Travel", model.CategoryTypeExpense)
		require.NoError(t, err)

		cats, err := f.store.GetCategories(ctx, f.user.ID)
		require.NoError(t, err)
		require.Len(t, cats, 2)
		assert.Equal(t, "Food", cats[0].Name)
		assert.Equal(t, "Income", cats[1].Name)
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := f.store.CreateCategory(ctx, f.user.ID, "Food", model.CategoryTypeExpense)
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)
	})

	t.Run("second income category", func(t *testing.T) {
		_, err := f.store.CreateCategory(ctx, f.user.ID, "Salary", model.CategoryTypeIncome)
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)
	})

	t.Run("foreign category is not found", func(t *testing.T) {
		other, err := f.store.GetUserByExternalID(ctx, "someone_else")
		require.NoError(t, err)
		_, err = f.store.GetCategoryByID(ctx, other.ID, f.food.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("by name", func(t *testing.T) {
		cat, err := f.store.GetCategoryByName(ctx, f.user.ID, "Food")
		require.NoError(t, err)
		assert.Equal(t, f.food.ID, cat.ID)

		_, err = f.store.GetCategoryByName(ctx, f.user.ID, "Nope")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("retype", func(t *testing.T) {
		gifts, err := f.store.CreateCategory(ctx, f.user.ID, "Gifts", model.CategoryTypeExpense)
		require.NoError(t, err)

		// Only one income category may exist.
		err = f.store.UpdateCategoryType(ctx, f.user.ID, gifts.ID, model.CategoryTypeIncome)
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)

		err = f.store.UpdateCategoryType(ctx, f.user.ID, 9999, model.CategoryTypeExpense)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := f.store.CreateCategory(ctx, f.user.ID, "   ", model.CategoryTypeExpense)
		assert.ErrorIs(t, err, ErrInvalidCategory)
		_, err = f.store.CreateCategory(ctx, f.user.ID, "Transfers", "transfer")
		assert.ErrorIs(t, err, ErrInvalidCategory)
	})
}

func TestTransactionsCRUD(t *testing.T) {
	f := newFixture(t, "user_txn")
	defer f.cleanup()
	ctx := context.Background()

	txn := f.addTransaction(t, f.food, "12.5", date(2024, 3, 15))
	assert.NotZero(t, txn.ID)
	assert.Equal(t, "12.50", txn.Amount.StringFixed(2))
	assert.Equal(t, date(2024, 3, 15), txn.Date)
	require.NotNil(t, txn.Category)
	assert.Equal(t, "Food", txn.Category.Name)
	assert.False(t, txn.CreatedAt.IsZero())

	t.Run("update", func(t *testing.T) {
		txn.Amount = decimal.RequireFromString("99.99")
		txn.Description = "groceries"
		require.NoError(t, f.store.UpdateTransaction(ctx, txn))

		got, err := f.store.GetTransactionByID(ctx, f.user.ID, txn.ID)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("99.99").Equal(got.Amount))
		assert.Equal(t, "groceries", got.Description)
	})

	t.Run("other users cannot see or change it", func(t *testing.T) {
		other, err := f.store.CreateUser(ctx, "intruder")
		require.NoError(t, err)

		_, err = f.store.GetTransactionByID(ctx, other.ID, txn.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)

		foreign := *txn
		foreign.UserID = other.ID
		assert.ErrorIs(t, f.store.UpdateTransaction(ctx, &foreign), common.ErrNotFound)
		assert.ErrorIs(t, f.store.SoftDeleteTransaction(ctx, other.ID, txn.ID, time.Now()), common.ErrNotFound)
	})

	t.Run("soft delete hides the row and is repeatable", func(t *testing.T) {
		require.NoError(t, f.store.SoftDeleteTransaction(ctx, f.user.ID, txn.ID, time.Now()))
		require.NoError(t, f.store.SoftDeleteTransaction(ctx, f.user.ID, txn.ID, time.Now()))

		_, err := f.store.GetTransactionByID(ctx, f.user.ID, txn.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)

		txns, err := f.store.GetTransactions(ctx, service.TransactionFilter{UserID: f.user.ID})
		require.NoError(t, err)
		assert.Empty(t, txns)

		assert.ErrorIs(t, f.store.UpdateTransaction(ctx, txn), common.ErrNotFound)
	})

	t.Run("invalid transaction", func(t *testing.T) {
		bad := &model.Transaction{UserID: f.user.ID, CategoryID: f.food.ID, Date: date(2024, 1, 1), Type: model.CategoryTypeExpense}
		assert.ErrorIs(t, f.store.CreateTransaction(ctx, bad), ErrInvalidTransaction)
	})
}

func TestGetTransactionsFilter(t *testing.T) {
	f := newFixture(t, "user_filter")
	defer f.cleanup()
	ctx := context.Background()

	f.addTransaction(t, f.food, "10", date(2024, 1, 31))
	f.addTransaction(t, f.food, "20", date(2024, 2, 1))
	f.addTransaction(t, f.salary, "1000", date(2024, 2, 29))
	f.addTransaction(t, f.food, "30", date(2024, 3, 1))

	start, end := date(2024, 2, 1), date(2024, 2, 29)
	txns, err := f.store.GetTransactions(ctx, service.TransactionFilter{UserID: f.user.ID, StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, date(2024, 2, 29), txns[0].Date, "newest first")
	assert.Equal(t, date(2024, 2, 1), txns[1].Date)

	income := model.CategoryTypeIncome
	txns, err = f.store.GetTransactions(ctx, service.TransactionFilter{UserID: f.user.ID, Type: &income})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, model.CategoryTypeIncome, txns[0].Type)

	txns, err = f.store.GetTransactions(ctx, service.TransactionFilter{UserID: f.user.ID, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, txns, 3)

	_, err = f.store.GetTransactions(ctx, service.TransactionFilter{UserID: f.user.ID, StartDate: &end, EndDate: &start})
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	months, err := f.store.GetMonthsWithTransactions(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03", "2024-02", "2024-01"}, months)
}

func TestDanglingCategoryReadsUncategorized(t *testing.T) {
	f := newFixture(t, "user_dangling")
	defer f.cleanup()
	ctx := context.Background()

	txn := f.addTransaction(t, f.food, "5", date(2024, 4, 2))
	require.NoError(t, f.store.DeleteCategory(ctx, f.user.ID, f.food.ID))
	assert.ErrorIs(t, f.store.DeleteCategory(ctx, f.user.ID, f.food.ID), common.ErrNotFound)

	got, err := f.store.GetTransactionByID(ctx, f.user.ID, txn.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Category)
	assert.Equal(t, model.UncategorizedName, got.CategoryName())
	assert.Equal(t, model.CategoryTypeExpense, got.EffectiveType())
}

func TestBulkCategoryUpdateInTransaction(t *testing.T) {
	f := newFixture(t, "user_bulk")
	defer f.cleanup()
	ctx := context.Background()

	a := f.addTransaction(t, f.food, "1", date(2024, 5, 1))
	b := f.addTransaction(t, f.food, "2", date(2024, 5, 2))
	dining, err := f.store.CreateCategory(ctx, f.user.ID, "Dining", model.CategoryTypeExpense)
	require.NoError(t, err)

	t.Run("rollback leaves rows untouched", func(t *testing.T) {
		tx, err := f.store.BeginTx(ctx)
		require.NoError(t, err)

		n, err := tx.SetTransactionsCategory(ctx, f.user.ID, []int64{a.ID, b.ID}, dining.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
		require.NoError(t, tx.Rollback())

		got, err := f.store.GetTransactionByID(ctx, f.user.ID, a.ID)
		require.NoError(t, err)
		assert.Equal(t, f.food.ID, got.CategoryID)
	})

	t.Run("commit applies every row", func(t *testing.T) {
		tx, err := f.store.BeginTx(ctx)
		require.NoError(t, err)

		rows, err := tx.GetTransactionsByIDs(ctx, f.user.ID, []int64{a.ID, b.ID, 9999})
		require.NoError(t, err)
		assert.Len(t, rows, 2)

		_, err = tx.SetTransactionsCategory(ctx, f.user.ID, []int64{a.ID, b.ID}, dining.ID)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		rows, err = f.store.GetTransactionsByIDs(ctx, f.user.ID, []int64{a.ID, b.ID})
		require.NoError(t, err)
		for _, r := range rows {
			assert.Equal(t, dining.ID, r.CategoryID)
			assert.Equal(t, "Dining", r.CategoryName())
		}
	})

	t.Run("empty id list", func(t *testing.T) {
		_, err := f.store.SetTransactionsCategory(ctx, f.user.ID, nil, dining.ID)
		assert.ErrorIs(t, err, ErrEmptySlice)
	})
}

func TestSummaryCache(t *testing.T) {
	f := newFixture(t, "user_cache")
	defer f.cleanup()
	ctx := context.Background()

	_, ok, err := f.store.GetMonthSummary(ctx, f.user.ID, "2024-01")
	require.NoError(t, err)
	assert.False(t, ok)

	gen, err := f.store.SummaryGeneration(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	summary := model.NewSummary(decimal.RequireFromString("100.10"), decimal.RequireFromString("40"))
	for _, key := range []string{"2024-01", "2024-02"} {
		stored, err := f.store.PutMonthSummary(ctx, f.user.ID, key, gen, summary)
		require.NoError(t, err)
		require.True(t, stored)
	}

	got, ok, err := f.store.GetMonthSummary(ctx, f.user.ID, "2024-01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.NetSavings.Equal(decimal.RequireFromString("60.10")))

	require.NoError(t, f.store.InvalidateMonths(ctx, f.user.ID, "2024-01"))
	_, ok, err = f.store.GetMonthSummary(ctx, f.user.ID, "2024-01")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.store.InvalidateUser(ctx, f.user.ID))
	_, ok, err = f.store.GetMonthSummary(ctx, f.user.ID, "2024-02")
	require.NoError(t, err)
	assert.False(t, ok)

	gen, err = f.store.SummaryGeneration(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen)
}

func TestPutMonthSummaryRefusesStaleGeneration(t *testing.T) {
	f := newFixture(t, "user_stale")
	defer f.cleanup()
	ctx := context.Background()

	before, err := f.store.SummaryGeneration(ctx, f.user.ID)
	require.NoError(t, err)

	// A write invalidates the month while a reader is still computing.
	require.NoError(t, f.store.InvalidateMonths(ctx, f.user.ID, "2024-01"))

	summary := model.NewSummary(decimal.Zero, decimal.Zero)
	stored, err := f.store.PutMonthSummary(ctx, f.user.ID, "2024-01", before, summary)
	require.NoError(t, err)
	assert.False(t, stored)

	_, ok, err := f.store.GetMonthSummary(ctx, f.user.ID, "2024-01")
	require.NoError(t, err)
	assert.False(t, ok)

	current, err := f.store.SummaryGeneration(ctx, f.user.ID)
	require.NoError(t, err)
	stored, err = f.store.PutMonthSummary(ctx, f.user.ID, "2024-01", current, summary)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestUpdateCategoryTypeRetypesTransactions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "user_legacy")
	require.NoError(t, err)
	legacy, err := store.CreateCategory(ctx, user.ID, model.IncomeCategoryName, model.CategoryTypeExpense)
	require.NoError(t, err)
	food, err := store.CreateCategory(ctx, user.ID, "Food", model.CategoryTypeExpense)
	require.NoError(t, err)

	add := func(cat *model.Category, amount string) *model.Transaction {
		txn := &model.Transaction{
			UserID:     user.ID,
			CategoryID: cat.ID,
			Amount:     decimal.RequireFromString(amount),
			Date:       date(2024, 1, 10),
			Type:       cat.Type,
		}
		require.NoError(t, store.CreateTransaction(ctx, txn))
		return txn
	}
	pay := add(legacy, "100")
	lunch := add(food, "12")

	require.NoError(t, store.UpdateCategoryType(ctx, user.ID, legacy.ID, model.CategoryTypeIncome))

	got, err := store.GetTransactionByID(ctx, user.ID, pay.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryTypeIncome, got.Type)

	got, err = store.GetTransactionByID(ctx, user.ID, lunch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryTypeExpense, got.Type)

	income := model.CategoryTypeIncome
	txns, err := store.GetTransactions(ctx, service.TransactionFilter{UserID: user.ID, Type: &income})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, pay.ID, txns[0].ID)
}

func TestTypeFilterUsesCategoryType(t *testing.T) {
	f := newFixture(t, "user_filter")
	defer f.cleanup()
	ctx := context.Background()

	paid := f.addTransaction(t, f.salary, "50", date(2024, 2, 1))
	// A stored type that disagrees with the category reports as the category's.
	_, err := f.store.db.ExecContext(ctx, `UPDATE transactions SET type = 'expense' WHERE id = ?`, paid.ID)
	require.NoError(t, err)

	income := model.CategoryTypeIncome
	txns, err := f.store.GetTransactions(ctx, service.TransactionFilter{UserID: f.user.ID, Type: &income})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, model.CategoryTypeIncome, txns[0].EffectiveType())

	// Without a category the stored type decides.
	lunch := f.addTransaction(t, f.food, "9", date(2024, 2, 2))
	require.NoError(t, f.store.DeleteCategory(ctx, f.user.ID, f.food.ID))
	expense := model.CategoryTypeExpense
	txns, err = f.store.GetTransactions(ctx, service.TransactionFilter{UserID: f.user.ID, Type: &expense})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, lunch.ID, txns[0].ID)
}
