package program

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/codec"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/repository"
)

type entryState int

const (
	entryLoaded entryState = iota
	entryDirty
	entryCreated
	entryDeleted
)

type entry struct {
	acct    *ledger.Account
	state   entryState
	existed bool
}

// execution buffers account changes so an instruction either writes all of
// them or none.
type execution struct {
	inv     Invocation
	entries map[address.Address]*entry
	out     Outcome
}

func newExecution(inv Invocation) *execution {
	return &execution{inv: inv, entries: map[address.Address]*entry{}}
}

// role returns the address declared for role, which must equal want.
func (e *execution) role(name string, want address.Address) (address.Address, error) {
	got, ok := e.inv.Accounts[name]
	if !ok {
		return address.Address{}, fmt.Errorf("%w: missing %s", ledger.ErrAccountMismatch, name)
	}
	if got != want {
		return address.Address{}, fmt.Errorf("%w: %s is %s, expected %s", ledger.ErrAccountMismatch, name, got.Short(), want.Short())
	}
	return got, nil
}

// signerRole returns the address declared for role and checks it signed.
func (e *execution) signerRole(name string) (address.Address, error) {
	got, ok := e.inv.Accounts[name]
	if !ok {
		return address.Address{}, fmt.Errorf("%w: missing %s", ledger.ErrAccountMismatch, name)
	}
	if got != e.inv.Signer {
		return address.Address{}, fmt.Errorf("%w: %s did not sign", ledger.ErrUnauthorized, name)
	}
	return got, nil
}

func (e *execution) get(ctx context.Context, addr address.Address) (*ledger.Account, error) {
	if en, ok := e.entries[addr]; ok {
		if en.state == entryDeleted {
			return nil, repository.ErrNotFound
		}
		return en.acct, nil
	}
	acct, err := e.inv.Store.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	e.entries[addr] = &entry{acct: acct, state: entryLoaded, existed: true}
	return acct, nil
}

// allocate returns a new account at addr with the given kind. A plain
// wallet already sitting at addr (funded before it was allocated) is taken
// over with its balance.
func (e *execution) allocate(ctx context.Context, addr address.Address, kind ledger.AccountKind, owner address.Address) (*ledger.Account, error) {
	acct, err := e.get(ctx, addr)
	switch {
	case err == nil:
		if acct.Kind != ledger.KindWallet || len(acct.Data) > 0 {
			return nil, fmt.Errorf("account %s already allocated", addr.Short())
		}
		acct.Kind = kind
		acct.Owner = owner
		e.entries[addr].state = entryDirty
		return acct, nil
	case errors.Is(err, repository.ErrNotFound):
		acct = &ledger.Account{Address: addr, Kind: kind, Owner: owner}
		en, ok := e.entries[addr]
		if ok {
			en.acct = acct
			en.state = entryDirty
		} else {
			e.entries[addr] = &entry{acct: acct, state: entryCreated}
		}
		return acct, nil
	default:
		return nil, fmt.Errorf("loading %s: %w", addr.Short(), err)
	}
}

// wallet returns the wallet at addr, creating an empty one if needed.
func (e *execution) wallet(ctx context.Context, addr address.Address) (*ledger.Account, error) {
	acct, err := e.get(ctx, addr)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("loading wallet %s: %w", addr.Short(), err)
	}
	return e.allocate(ctx, addr, ledger.KindWallet, address.Address{})
}

func (e *execution) touch(acct *ledger.Account) {
	if en := e.entries[acct.Address]; en.state == entryLoaded {
		en.state = entryDirty
	}
}

// transfer moves amount between two loaded accounts.
func (e *execution) transfer(from, to *ledger.Account, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if from.Balance < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ledger.ErrInsufficientFunds, from.Address.Short(), from.Balance, amount)
	}
	if to.Balance > math.MaxUint64-amount {
		return fmt.Errorf("%w: balance of %s overflows", ledger.ErrInvalidAmount, to.Address.Short())
	}
	from.Balance -= amount
	to.Balance += amount
	e.touch(from)
	e.touch(to)
	e.out.Transfers = append(e.out.Transfers, ledger.Transfer{From: from.Address, To: to.Address, Amount: amount})
	return nil
}

// close moves the remaining balance of acct to dest and deletes acct.
func (e *execution) close(acct, dest *ledger.Account) error {
	if err := e.transfer(acct, dest, acct.Balance); err != nil {
		return err
	}
	en := e.entries[acct.Address]
	en.state = entryDeleted
	return nil
}

func (e *execution) setData(acct *ledger.Account, v any) error {
	data, err := codec.Marshal(v)
	if err != nil {
		return err
	}
	acct.Data = data
	e.touch(acct)
	return nil
}

// commit writes the buffered changes in address order.
func (e *execution) commit(ctx context.Context) error {
	addrs := make([]address.Address, 0, len(e.entries))
	for addr := range e.entries {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })

	for _, addr := range addrs {
		en := e.entries[addr]
		var err error
		switch en.state {
		case entryCreated:
			err = e.inv.Store.Create(ctx, en.acct)
		case entryDirty:
			if en.existed {
				err = e.inv.Store.Update(ctx, en.acct)
			} else {
				err = e.inv.Store.Create(ctx, en.acct)
			}
		case entryDeleted:
			if en.existed {
				err = e.inv.Store.Delete(ctx, addr)
			}
		}
		if err != nil {
			return fmt.Errorf("writing %s: %w", addr.Short(), err)
		}
	}
	return nil
}
