package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/cache"
	"github.com/rpggio/focusstake/internal/domain/activity"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/repository"
)

// AccountReader is the read side of the account store.
type AccountReader interface {
	Get(ctx context.Context, addr address.Address) (*ledger.Account, error)
}

// Queries serves read-only views of the ledger.
type Queries struct {
	program  address.Address
	accounts AccountReader
	activity *activity.Service
	statuses *cache.Statuses
}

// NewQueries creates the read service for program.
func NewQueries(program address.Address, accounts AccountReader, activitySvc *activity.Service, statuses *cache.Statuses) *Queries {
	if program.IsZero() {
		program = address.DefaultProgram
	}
	return &Queries{program: program, accounts: accounts, activity: activitySvc, statuses: statuses}
}

// ProgramState is the global ledger together with custody balances.
type ProgramState struct {
	Addresses          address.ProgramAddresses `json:"addresses"`
	Global             *ledger.GlobalLedger     `json:"global"`
	VaultBalance       uint64                   `json:"vault_balance"`
	FocusPoolBalance   uint64                   `json:"focus_pool_balance"`
	FailurePoolBalance uint64                   `json:"failure_pool_balance"`
}

// SessionView is a session record with its derived timing.
type SessionView struct {
	Address          address.Address       `json:"address"`
	Record           *ledger.SessionRecord `json:"record"`
	IsActive         bool                  `json:"is_active"`
	EndsAt           int64                 `json:"ends_at"`
	RemainingSeconds int64                 `json:"remaining_seconds"`
	Deposit          uint64                `json:"deposit"`
}

// Addresses returns the derived program addresses.
func (q *Queries) Addresses() address.ProgramAddresses {
	return address.ForProgram(q.program)
}

// Account returns the account at addr.
func (q *Queries) Account(ctx context.Context, addr address.Address) (*ledger.Account, error) {
	return q.accounts.Get(ctx, addr)
}

// Balance returns the balance at addr; a missing account holds zero.
func (q *Queries) Balance(ctx context.Context, addr address.Address) (uint64, error) {
	acct, err := q.accounts.Get(ctx, addr)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// ProgramState returns the global ledger, or ledger.ErrNotInitialized.
func (q *Queries) ProgramState(ctx context.Context) (*ProgramState, error) {
	addrs := q.Addresses()
	acct, err := q.accounts.Get(ctx, addrs.Global)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ledger.ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("loading global ledger: %w", err)
	}
	g, err := ledger.DecodeGlobal(acct)
	if err != nil {
		return nil, err
	}
	state := &ProgramState{Addresses: addrs, Global: g}
	for _, b := range []struct {
		addr address.Address
		dst  *uint64
	}{
		{addrs.Vault, &state.VaultBalance},
		{addrs.FocusPool, &state.FocusPoolBalance},
		{addrs.FailurePool, &state.FailurePoolBalance},
	} {
		if *b.dst, err = q.Balance(ctx, b.addr); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// Session returns the session record of owner, or ledger.ErrSessionNotFound.
func (q *Queries) Session(ctx context.Context, owner address.Address, now int64) (*SessionView, error) {
	addr := address.UserState(q.program, owner)
	acct, err := q.accounts.Get(ctx, addr)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ledger.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if acct.Kind != ledger.KindSession {
		return nil, ledger.ErrSessionNotFound
	}
	rec, err := ledger.DecodeSession(acct)
	if err != nil {
		return nil, err
	}
	remaining := rec.EndsAt().Unix() - now
	if remaining < 0 {
		remaining = 0
	}
	return &SessionView{
		Address:          addr,
		Record:           rec,
		IsActive:         rec.IsActive(),
		EndsAt:           rec.EndsAt().Unix(),
		RemainingSeconds: remaining,
		Deposit:          acct.Balance,
	}, nil
}

// SignatureStatus returns the receipt of a processed signature.
func (q *Queries) SignatureStatus(ctx context.Context, signature string) (*ledger.Receipt, error) {
	return q.statuses.Lookup(ctx, signature)
}

// RecentActivity lists activity entries, newest first.
func (q *Queries) RecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	return q.activity.GetRecentActivity(ctx, opts)
}
