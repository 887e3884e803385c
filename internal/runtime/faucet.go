package runtime

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/activity"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/repository"
)

// ErrFaucetDisabled is returned by Airdrop when the faucet is off.
var ErrFaucetDisabled = errors.New("faucet disabled")

// AirdropInstruction names airdrop receipts.
const AirdropInstruction = "airdrop"

// Airdrop mints amount into the wallet at to, creating it if needed. It
// returns a receipt whose signature can be polled like any transaction.
func (r *Runtime) Airdrop(ctx context.Context, to address.Address, amount uint64) (*ledger.Receipt, error) {
	if !r.cfg.Faucet.Enabled {
		return nil, ErrFaucetDisabled
	}
	if amount == 0 || (r.cfg.Faucet.MaxAmount > 0 && amount > r.cfg.Faucet.MaxAmount) {
		return nil, fmt.Errorf("%w: airdrop of %d exceeds faucet limit %d", ledger.ErrInvalidAmount, amount, r.cfg.Faucet.MaxAmount)
	}

	release, err := r.locks.Acquire(ctx, []address.Address{to})
	if err != nil {
		return nil, fmt.Errorf("waiting for account lock: %w", err)
	}
	defer release()

	now := r.now()
	receipt := &ledger.Receipt{
		Signature:   AirdropInstruction + "-" + uuid.NewString(),
		Instruction: AirdropInstruction,
		Signer:      to,
		Status:      ledger.ReceiptSucceeded,
		Transfers:   []ledger.Transfer{{To: to, Amount: amount}},
		ProcessedAt: now.UTC(),
	}

	err = r.store.InTx(ctx, func(dbtx repository.Tx) error {
		acct, err := dbtx.Accounts().Get(ctx, to)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			acct = &ledger.Account{Address: to, Kind: ledger.KindWallet, Balance: amount}
			err = dbtx.Accounts().Create(ctx, acct)
		case err != nil:
			return err
		case acct.Kind != ledger.KindWallet:
			return fmt.Errorf("%w: %s is a %s account", ledger.ErrAccountMismatch, to.Short(), acct.Kind)
		case acct.Balance > math.MaxUint64-amount:
			return fmt.Errorf("%w: balance overflows", ledger.ErrInvalidAmount)
		default:
			acct.Balance += amount
			err = dbtx.Accounts().Update(ctx, acct)
		}
		if err != nil {
			return err
		}

		entry := &activity.ActivityEntry{
			Signature:    receipt.Signature,
			Actor:        to.String(),
			ActivityType: activity.TypeAirdrop,
			Amount:       amount,
			Summary:      fmt.Sprintf("Airdropped %s", ledger.ToTokens(amount)),
			CreatedAt:    now,
		}
		if err := dbtx.Activity().Log(ctx, entry); err != nil {
			return err
		}
		return dbtx.Receipts().Create(ctx, receipt)
	})
	if err != nil {
		return nil, fmt.Errorf("airdrop to %s: %w", to.Short(), err)
	}
	r.statuses.Remember(ctx, receipt)
	r.logger.Info("airdrop", "to", to.Short(), "amount", amount)
	return receipt, nil
}
