package program

import (
	"context"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/ledger"
)

// AccountStore reads and writes accounts for one instruction. Get returns
// repository.ErrNotFound for a missing address.
type AccountStore interface {
	Get(ctx context.Context, addr address.Address) (*ledger.Account, error)
	Create(ctx context.Context, acct *ledger.Account) error
	Update(ctx context.Context, acct *ledger.Account) error
	Delete(ctx context.Context, addr address.Address) error
}
