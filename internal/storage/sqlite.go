package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file the storage was opened with.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(externalID, "externalID"); err != nil {
		return nil, err
	}
	return t.storage.getUserByExternalIDTx(ctx, t.tx, externalID)
}

func (t *sqliteTransaction) CreateUser(ctx context.Context, externalID string) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(externalID, "externalID"); err != nil {
		return nil, err
	}
	return t.storage.createUserTx(ctx, t.tx, externalID)
}

func (t *sqliteTransaction) GetCategories(ctx context.Context, userID int64) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getCategoriesTx(ctx, t.tx, userID)
}

func (t *sqliteTransaction) GetCategoryByID(ctx context.Context, userID, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getCategoryByIDTx(ctx, t.tx, userID, id)
}

func (t *sqliteTransaction) GetCategoryByName(ctx context.Context, userID int64, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return t.storage.getCategoryByNameTx(ctx, t.tx, userID, name)
}

func (t *sqliteTransaction) CreateCategory(ctx context.Context, userID int64, name string, categoryType model.CategoryType) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateCategory(name, categoryType); err != nil {
		return nil, err
	}
	return t.storage.createCategoryTx(ctx, t.tx, userID, name, categoryType)
}

func (t *sqliteTransaction) UpdateCategoryType(ctx context.Context, userID, id int64, categoryType model.CategoryType) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if !categoryType.Valid() {
		return fmt.Errorf("%w: type %q", ErrInvalidCategory, categoryType)
	}
	return t.storage.updateCategoryTypeTx(ctx, t.tx, userID, id, categoryType)
}

func (t *sqliteTransaction) DeleteCategory(ctx context.Context, userID, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.deleteCategoryTx(ctx, t.tx, userID, id)
}

func (t *sqliteTransaction) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	return t.storage.getTransactionsTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) GetTransactionByID(ctx context.Context, userID, id int64) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getTransactionByIDTx(ctx, t.tx, userID, id)
}

func (t *sqliteTransaction) GetTransactionsByIDs(ctx context.Context, userID int64, ids []int64) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateIDs(ids); err != nil {
		return nil, err
	}
	return t.storage.getTransactionsByIDsTx(ctx, t.tx, userID, ids)
}

func (t *sqliteTransaction) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return t.storage.createTransactionTx(ctx, t.tx, txn)
}

func (t *sqliteTransaction) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return t.storage.updateTransactionTx(ctx, t.tx, txn)
}

func (t *sqliteTransaction) SetTransactionsCategory(ctx context.Context, userID int64, ids []int64, categoryID int64) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateIDs(ids); err != nil {
		return 0, err
	}
	return t.storage.setTransactionsCategoryTx(ctx, t.tx, userID, ids, categoryID)
}

func (t *sqliteTransaction) SoftDeleteTransaction(ctx context.Context, userID, id int64, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.softDeleteTransactionTx(ctx, t.tx, userID, id, at)
}

func (t *sqliteTransaction) GetMonthsWithTransactions(ctx context.Context, userID int64) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getMonthsWithTransactionsTx(ctx, t.tx, userID)
}
