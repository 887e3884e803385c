package sqlite

import (
	"context"
	"testing"

	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestReceiptRepository_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewReceiptRepository(db)

	ok := &ledger.Receipt{
		Signature:   "sig-1",
		Instruction: "start_focus_session",
		Signer:      testAddr(1),
		Status:      ledger.ReceiptSucceeded,
		Transfers: []ledger.Transfer{
			{From: testAddr(1), To: testAddr(2), Amount: 1_000_000},
			{From: testAddr(1), To: testAddr(3), Amount: 99_000_000},
		},
	}
	require.NoError(t, repo.Create(ctx, ok))
	require.Equal(t, int64(1), ok.Sequence)

	failed := &ledger.Receipt{
		Signature:   "sig-2",
		Instruction: "start_focus_session",
		Signer:      testAddr(1),
		Status:      ledger.ReceiptFailed,
		ErrorCode:   "StakeTooLow",
		Error:       "stake amount below minimum",
	}
	require.NoError(t, repo.Create(ctx, failed))
	require.Equal(t, int64(2), failed.Sequence)

	got, err := repo.Get(ctx, "sig-1")
	require.NoError(t, err)
	require.Equal(t, ledger.ReceiptSucceeded, got.Status)
	require.Equal(t, testAddr(1), got.Signer)
	require.Equal(t, ok.Transfers, got.Transfers)
	require.NoError(t, got.Err())

	got, err = repo.Get(ctx, "sig-2")
	require.NoError(t, err)
	require.Empty(t, got.Transfers)
	require.ErrorIs(t, got.Err(), ledger.ErrStakeTooLow)

	require.ErrorIs(t, repo.Create(ctx, &ledger.Receipt{Signature: "sig-1", Instruction: "x", Status: ledger.ReceiptFailed}), repository.ErrConflict)
	require.ErrorIs(t, repo.Create(ctx, &ledger.Receipt{}), repository.ErrInvalidInput)

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
