package sqlite

import (
	"context"
	"math"
	"testing"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/repository"
	"github.com/stretchr/testify/require"
)

func testAddr(n byte) address.Address {
	var a address.Address
	a[0] = 0x10
	a[31] = n
	return a
}

func TestAccountRepository_CRUD(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewAccountRepository(db)

	acct := &ledger.Account{
		Address: testAddr(1),
		Kind:    ledger.KindSession,
		Owner:   testAddr(9),
		Balance: 2_000_000,
		Data:    []byte{0xa1, 0x01, 0x02},
	}
	require.NoError(t, repo.Create(ctx, acct))
	require.False(t, acct.CreatedAt.IsZero())
	require.ErrorIs(t, repo.Create(ctx, acct), repository.ErrConflict)

	got, err := repo.Get(ctx, acct.Address)
	require.NoError(t, err)
	require.Equal(t, acct.Address, got.Address)
	require.Equal(t, ledger.KindSession, got.Kind)
	require.Equal(t, testAddr(9), got.Owner)
	require.Equal(t, uint64(2_000_000), got.Balance)
	require.Equal(t, acct.Data, got.Data)

	got.Balance = 7
	got.Data = nil
	require.NoError(t, repo.Update(ctx, got))
	got, err = repo.Get(ctx, acct.Address)
	require.NoError(t, err)
	require.Equal(t, uint64(7), got.Balance)
	require.Empty(t, got.Data)

	require.NoError(t, repo.Delete(ctx, acct.Address))
	_, err = repo.Get(ctx, acct.Address)
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, acct.Address), repository.ErrNotFound)
	require.ErrorIs(t, repo.Update(ctx, acct), repository.ErrNotFound)
}

func TestAccountRepository_BalanceRange(t *testing.T) {
	db := NewTestDB(t)
	repo := NewAccountRepository(db)

	err := repo.Create(context.Background(), &ledger.Account{Address: testAddr(1), Kind: ledger.KindWallet, Balance: math.MaxUint64})
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	err = repo.Create(context.Background(), &ledger.Account{Address: testAddr(2), Kind: ledger.KindWallet, Balance: math.MaxInt64})
	require.NoError(t, err)
}

func TestAccountRepository_List(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewAccountRepository(db)

	owner := testAddr(50)
	require.NoError(t, repo.Create(ctx, &ledger.Account{Address: testAddr(3), Kind: ledger.KindWallet}))
	require.NoError(t, repo.Create(ctx, &ledger.Account{Address: testAddr(1), Kind: ledger.KindCustody, Owner: owner}))
	require.NoError(t, repo.Create(ctx, &ledger.Account{Address: testAddr(2), Kind: ledger.KindCustody, Owner: owner}))

	all, err := repo.List(ctx, repository.ListAccountsOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, testAddr(1), all[0].Address)

	kind := ledger.KindCustody
	custody, err := repo.List(ctx, repository.ListAccountsOptions{Kind: &kind, Owner: &owner})
	require.NoError(t, err)
	require.Len(t, custody, 2)

	page, err := repo.List(ctx, repository.ListAccountsOptions{Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, testAddr(3), page[0].Address)
}
