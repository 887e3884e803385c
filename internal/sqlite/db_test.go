package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/repository"
	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	tables := []string{
		"accounts",
		"receipts",
		"activity_log",
	}

	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}

	// migrations are idempotent
	require.NoError(t, db.RunMigrations())
}

// TestAccountsTable verifies the accounts table constraints
func TestAccountsTable(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`INSERT INTO accounts (address, kind, owner, balance) VALUES (?, ?, ?, ?)`,
		"a1", "wallet", "o1", 10)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		`INSERT INTO accounts (address, kind, owner, balance) VALUES (?, ?, ?, ?)`,
		"a2", "bogus", "o1", 10)
	require.Error(t, err, "should fail with invalid kind")

	_, err = db.ExecContext(ctx,
		`INSERT INTO accounts (address, kind, owner, balance) VALUES (?, ?, ?, ?)`,
		"a3", "wallet", "o1", -1)
	require.Error(t, err, "should fail with negative balance")
}

func TestInTx_CommitAndRollback(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewAccountRepository(db)

	committed := &ledger.Account{Address: testAddr(1), Kind: ledger.KindWallet, Balance: 5}
	err := db.InTx(ctx, func(tx repository.Tx) error {
		return tx.Accounts().Create(ctx, committed)
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.Accounts().Create(ctx, &ledger.Account{Address: testAddr(2), Kind: ledger.KindWallet}); err != nil {
			return err
		}
		acct, err := tx.Accounts().Get(ctx, testAddr(1))
		if err != nil {
			return err
		}
		acct.Balance = 0
		if err := tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	acct, err := repo.Get(ctx, testAddr(1))
	require.NoError(t, err)
	require.Equal(t, uint64(5), acct.Balance)
	_, err = repo.Get(ctx, testAddr(2))
	require.ErrorIs(t, err, repository.ErrNotFound)
}
