package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/repository"
)

// AccountRepository implements repository.AccountRepository for SQLite
type AccountRepository struct {
	db querier
}

// NewAccountRepository creates a new AccountRepository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `address, kind, owner, balance, data, created_at, updated_at`

// Get retrieves an account by address
func (r *AccountRepository) Get(ctx context.Context, addr address.Address) (*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE address = ?`

	acct, err := scanAccount(r.db.QueryRowContext(ctx, query, addr.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acct, nil
}

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, acct *ledger.Account) error {
	balance, err := toInt64("balance", acct.Balance)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now

	query := `
		INSERT INTO accounts (address, kind, owner, balance, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		acct.Address.String(),
		acct.Kind,
		acct.Owner.String(),
		balance,
		acct.Data,
		acct.CreatedAt,
		acct.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of an existing account
func (r *AccountRepository) Update(ctx context.Context, acct *ledger.Account) error {
	balance, err := toInt64("balance", acct.Balance)
	if err != nil {
		return err
	}
	acct.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE accounts
		SET kind = ?, owner = ?, balance = ?, data = ?, updated_at = ?
		WHERE address = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		acct.Kind,
		acct.Owner.String(),
		balance,
		acct.Data,
		acct.UpdatedAt,
		acct.Address.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes an account
func (r *AccountRepository) Delete(ctx context.Context, addr address.Address) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE address = ?`, addr.String())
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns accounts matching the given filters, ordered by address
func (r *AccountRepository) List(ctx context.Context, opts repository.ListAccountsOptions) ([]ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`

	args := []interface{}{}
	conditions := []string{}
	if opts.Kind != nil {
		conditions = append(conditions, "kind = ?")
		args = append(args, *opts.Kind)
	}
	if opts.Owner != nil {
		conditions = append(conditions, "owner = ?")
		args = append(args, opts.Owner.String())
	}
	if len(conditions) > 0 {
		query += " WHERE " + joinConditions(conditions)
	}
	query += " ORDER BY address"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		if opts.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*ledger.Account, error) {
	var (
		acct        ledger.Account
		addr, owner string
		balance     int64
	)
	if err := row.Scan(&addr, &acct.Kind, &owner, &balance, &acct.Data, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if acct.Address, err = address.Parse(addr); err != nil {
		return nil, err
	}
	if acct.Owner, err = address.Parse(owner); err != nil {
		return nil, err
	}
	acct.Balance = uint64(balance)
	return &acct, nil
}
