package mocks

import (
	"context"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/activity"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/repository"
	"github.com/stretchr/testify/mock"
)

// AccountRepository is a mock for repository.AccountRepository.
type AccountRepository struct {
	mock.Mock
}

func (m *AccountRepository) Get(ctx context.Context, addr address.Address) (*ledger.Account, error) {
	args := m.Called(ctx, addr)
	if acct, ok := args.Get(0).(*ledger.Account); ok {
		return acct, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AccountRepository) Create(ctx context.Context, acct *ledger.Account) error {
	args := m.Called(ctx, acct)
	return args.Error(0)
}

func (m *AccountRepository) Update(ctx context.Context, acct *ledger.Account) error {
	args := m.Called(ctx, acct)
	return args.Error(0)
}

func (m *AccountRepository) Delete(ctx context.Context, addr address.Address) error {
	args := m.Called(ctx, addr)
	return args.Error(0)
}

func (m *AccountRepository) List(ctx context.Context, opts repository.ListAccountsOptions) ([]ledger.Account, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]ledger.Account); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// ReceiptRepository is a mock for repository.ReceiptRepository.
type ReceiptRepository struct {
	mock.Mock
}

func (m *ReceiptRepository) Create(ctx context.Context, receipt *ledger.Receipt) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

func (m *ReceiptRepository) Get(ctx context.Context, signature string) (*ledger.Receipt, error) {
	args := m.Called(ctx, signature)
	if r, ok := args.Get(0).(*ledger.Receipt); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityRepository is a mock for repository.ActivityRepository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
