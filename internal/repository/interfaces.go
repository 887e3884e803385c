package repository

import (
	"context"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/activity"
	"github.com/rpggio/focusstake/internal/domain/ledger"
)

// AccountRepository manages account persistence
type AccountRepository interface {
	Get(ctx context.Context, addr address.Address) (*ledger.Account, error)
	Create(ctx context.Context, acct *ledger.Account) error
	Update(ctx context.Context, acct *ledger.Account) error
	Delete(ctx context.Context, addr address.Address) error
	List(ctx context.Context, opts ListAccountsOptions) ([]ledger.Account, error)
}

// ListAccountsOptions provides filtering options for listing accounts
type ListAccountsOptions struct {
	Kind   *ledger.AccountKind
	Owner  *address.Address
	Limit  int
	Offset int
}

// ReceiptRepository manages transaction receipt persistence
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *ledger.Receipt) error
	Get(ctx context.Context, signature string) (*ledger.Receipt, error)
}

// ActivityRepository manages activity log persistence
type ActivityRepository interface {
	activity.Repository
}

// Tx exposes the repositories bound to one database transaction.
type Tx interface {
	Accounts() AccountRepository
	Receipts() ReceiptRepository
	Activity() ActivityRepository
}

// Transactor runs fn inside a transaction, committing when fn returns nil
// and rolling back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
