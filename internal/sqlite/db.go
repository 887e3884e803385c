package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpggio/focusstake/internal/repository"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer, and an in-memory database exists only
	// on the connection that created it.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema if it does not exist yet
func (db *DB) RunMigrations() error {
	migration := `
-- Accounts: wallets, the global ledger, custody accounts and session records
CREATE TABLE IF NOT EXISTS accounts (
    address TEXT PRIMARY KEY,
    kind TEXT NOT NULL CHECK(kind IN ('wallet', 'global_state', 'custody', 'user_state')),
    owner TEXT NOT NULL,
    balance INTEGER NOT NULL DEFAULT 0 CHECK(balance >= 0),
    data BLOB,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_account_kind ON accounts(kind);
CREATE INDEX IF NOT EXISTS idx_account_owner ON accounts(owner);

-- Processed transactions, successful or not
CREATE TABLE IF NOT EXISTS receipts (
    sequence INTEGER PRIMARY KEY AUTOINCREMENT,
    signature TEXT NOT NULL UNIQUE,
    instruction TEXT NOT NULL,
    signer TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('succeeded', 'failed')),
    error_code TEXT,
    error TEXT,
    transfers BLOB,
    processed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_receipt_signer ON receipts(signer);

-- Activity log
CREATE TABLE IF NOT EXISTS activity_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    signature TEXT,
    actor TEXT NOT NULL,
    account TEXT,
    activity_type TEXT NOT NULL,
    amount INTEGER NOT NULL DEFAULT 0,
    summary TEXT NOT NULL,
    details TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_actor_activity ON activity_log(actor);
CREATE INDEX IF NOT EXISTS idx_account_activity ON activity_log(account);
CREATE INDEX IF NOT EXISTS idx_created_at ON activity_log(created_at);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Tx binds the repositories to one database transaction.
type Tx struct {
	accounts *AccountRepository
	receipts *ReceiptRepository
	activity *ActivityRepository
}

// Accounts returns the account repository bound to the transaction.
func (t *Tx) Accounts() repository.AccountRepository { return t.accounts }

// Receipts returns the receipt repository bound to the transaction.
func (t *Tx) Receipts() repository.ReceiptRepository { return t.receipts }

// Activity returns the activity repository bound to the transaction.
func (t *Tx) Activity() repository.ActivityRepository { return t.activity }

// InTx runs fn in a transaction. The transaction commits when fn returns
// nil and rolls back otherwise.
func (db *DB) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{
		accounts: &AccountRepository{db: tx},
		receipts: &ReceiptRepository{db: tx},
		activity: &ActivityRepository{db: tx},
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
