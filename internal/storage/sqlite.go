package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mindthegap/mindthegap/internal/model"
	"github.com/mindthegap/mindthegap/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// querier is the subset of *sql.DB and *sql.Tx the entity methods need, so
// every operation works both standalone and inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
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

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
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

// sqliteTransaction wraps sql.Tx to implement service.Transaction. Every
// entity method delegates to the shared implementation with the transaction
// as the querier.
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

func (t *sqliteTransaction) GetOrCreatePeriod(ctx context.Context, year int, month time.Month) (*model.Period, error) {
	return t.storage.getOrCreatePeriod(ctx, t.tx, year, month)
}

func (t *sqliteTransaction) GetPeriod(ctx context.Context, year int, month time.Month) (*model.Period, error) {
	return t.storage.getPeriod(ctx, t.tx, year, month)
}

func (t *sqliteTransaction) GetPeriodByLabel(ctx context.Context, label string) (*model.Period, error) {
	return t.storage.getPeriodByLabel(ctx, t.tx, label)
}

func (t *sqliteTransaction) NextPeriod(ctx context.Context, p *model.Period) (*model.Period, error) {
	return t.storage.nextPeriod(ctx, t.tx, p)
}

func (t *sqliteTransaction) ListPeriods(ctx context.Context) ([]model.Period, error) {
	return t.storage.listPeriods(ctx, t.tx)
}

func (t *sqliteTransaction) CreateAccount(ctx context.Context, account *model.Account) (*model.Account, error) {
	return t.storage.createAccount(ctx, t.tx, account)
}

func (t *sqliteTransaction) GetAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	return t.storage.getAccounts(ctx, t.tx, userID)
}

func (t *sqliteTransaction) GetAccountByID(ctx context.Context, id int64) (*model.Account, error) {
	return t.storage.getAccountByID(ctx, t.tx, id)
}

func (t *sqliteTransaction) UpsertAccountBalance(ctx context.Context, balance *model.AccountBalance) error {
	return t.storage.upsertAccountBalance(ctx, t.tx, balance)
}

func (t *sqliteTransaction) GetBalanceRows(ctx context.Context, userID string, periodID int64) ([]service.BalanceRow, error) {
	return t.storage.getBalanceRows(ctx, t.tx, userID, periodID)
}

func (t *sqliteTransaction) GetOrCreateCategory(ctx context.Context, userID, name string) (*model.Category, error) {
	return t.storage.getOrCreateCategory(ctx, t.tx, userID, name)
}

func (t *sqliteTransaction) GetCategories(ctx context.Context, userID string) ([]model.Category, error) {
	return t.storage.getCategories(ctx, t.tx, userID)
}

func (t *sqliteTransaction) SaveTransaction(ctx context.Context, txn *model.Transaction) error {
	return t.storage.saveTransaction(ctx, t.tx, txn)
}

func (t *sqliteTransaction) DeleteTransaction(ctx context.Context, id string) error {
	return t.storage.deleteTransaction(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	return t.storage.getTransactionByID(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetTransactionRows(ctx context.Context, userID string, periodID int64, estimated bool) ([]service.TransactionRow, error) {
	return t.storage.getTransactionRows(ctx, t.tx, userID, periodID, estimated)
}

func (t *sqliteTransaction) GetEstimatedTransactions(ctx context.Context, userID string, periodID int64) ([]model.Transaction, error) {
	return t.storage.getEstimatedTransactions(ctx, t.tx, userID, periodID)
}

func (t *sqliteTransaction) DeleteEstimatedTransactions(ctx context.Context, userID string, periodID int64) (int64, error) {
	return t.storage.deleteEstimatedTransactions(ctx, t.tx, userID, periodID)
}

func (t *sqliteTransaction) SaveFxRate(ctx context.Context, rate *model.FxRate) error {
	return t.storage.saveFxRate(ctx, t.tx, rate)
}

func (t *sqliteTransaction) GetFxRate(ctx context.Context, date time.Time, base, quote string) (decimal.Decimal, error) {
	return t.storage.getFxRate(ctx, t.tx, date, base, quote)
}

func (t *sqliteTransaction) ListUserIDs(ctx context.Context) ([]string, error) {
	return t.storage.listUserIDs(ctx, t.tx)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
