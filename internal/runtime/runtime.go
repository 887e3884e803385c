// Package runtime hosts the program. It verifies signed transactions,
// checks their declared accounts against the interface description,
// serializes conflicting instructions with account locks and applies each
// instruction inside one database transaction together with its receipt.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/cache"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/domain/program"
	"github.com/rpggio/focusstake/internal/idl"
	"github.com/rpggio/focusstake/internal/repository"
	"github.com/rpggio/focusstake/internal/tx"
)

// Config holds runtime settings.
type Config struct {
	Program address.Address
	Faucet  FaucetConfig
}

// FaucetConfig controls requestAirdrop.
type FaucetConfig struct {
	Enabled   bool
	MaxAmount uint64
}

// Runtime applies transactions to the ledger.
type Runtime struct {
	cfg      Config
	store    repository.Transactor
	program  *program.Service
	statuses *cache.Statuses
	iface    *idl.IDL
	locks    *Locks
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a runtime.
func New(cfg Config, store repository.Transactor, prog *program.Service, statuses *cache.Statuses, logger *slog.Logger) (*Runtime, error) {
	iface, err := idl.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Program.IsZero() {
		cfg.Program = address.DefaultProgram
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runtime{
		cfg:      cfg,
		store:    store,
		program:  prog,
		statuses: statuses,
		iface:    iface,
		locks:    NewLocks(),
		now:      time.Now,
		logger:   logger,
	}, nil
}

// SetClock replaces the wall clock, for tests.
func (r *Runtime) SetClock(now func() time.Time) {
	r.now = now
}

// Program returns the program ID the runtime hosts.
func (r *Runtime) Program() address.Address {
	return r.cfg.Program
}

// Submit verifies and applies t. A rejected instruction returns its failed
// receipt together with the program error; a transaction whose signature
// was already processed returns the earlier receipt and
// ledger.ErrDuplicateSubmission.
func (r *Runtime) Submit(ctx context.Context, t *tx.Transaction) (*ledger.Receipt, error) {
	if err := t.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidSignature, err)
	}
	msg := &t.Message
	if msg.Program != r.cfg.Program {
		return nil, fmt.Errorf("%w: transaction targets program %s", ledger.ErrAccountMismatch, msg.Program.Short())
	}

	if prior, err := r.statuses.Lookup(ctx, t.Signature); err == nil {
		return prior, ledger.ErrDuplicateSubmission
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	accounts, err := r.checkAccounts(msg)
	if err != nil {
		return r.reject(ctx, t, err)
	}

	release, err := r.locks.Acquire(ctx, lockSet(accounts))
	if err != nil {
		return nil, fmt.Errorf("waiting for account locks: %w", err)
	}
	defer release()

	now := r.now()
	receipt := &ledger.Receipt{
		Signature:   t.Signature,
		Instruction: msg.Instruction,
		Signer:      msg.Signer,
		Status:      ledger.ReceiptSucceeded,
		ProcessedAt: now.UTC(),
	}
	var prior *ledger.Receipt
	var programErr error

	err = r.store.InTx(ctx, func(dbtx repository.Tx) error {
		existing, err := dbtx.Receipts().Get(ctx, t.Signature)
		if err == nil {
			prior = existing
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		inv := program.Invocation{
			Store:    dbtx.Accounts(),
			Program:  r.cfg.Program,
			Signer:   msg.Signer,
			Accounts: accounts,
			Now:      now,
		}
		out, err := r.program.Execute(ctx, inv, msg.Instruction, msg.Args)
		if err != nil {
			programErr = err
			return err
		}

		receipt.Transfers = out.Transfers
		for i := range out.Events {
			ev := out.Events[i]
			ev.Signature = t.Signature
			if err := dbtx.Activity().Log(ctx, &ev); err != nil {
				return err
			}
		}
		return dbtx.Receipts().Create(ctx, receipt)
	})

	switch {
	case prior != nil:
		return prior, ledger.ErrDuplicateSubmission
	case programErr != nil && ledger.CodeOf(programErr) != "":
		return r.reject(ctx, t, programErr)
	case err != nil:
		return nil, fmt.Errorf("applying %s: %w", msg.Instruction, err)
	}

	r.statuses.Remember(ctx, receipt)
	r.logger.Info("transaction applied",
		"instruction", msg.Instruction,
		"signer", msg.Signer.Short(),
		"signature", shortSig(t.Signature),
		"sequence", receipt.Sequence,
	)
	return receipt, nil
}

// checkAccounts validates the instruction name, its arguments and the
// declared account roles.
func (r *Runtime) checkAccounts(msg *tx.Message) (map[string]address.Address, error) {
	ins, err := r.iface.Instruction(msg.Instruction)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ledger.ErrUnknownInstruction, msg.Instruction)
	}
	if err := ins.ValidateArgs(msg.Args); err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidArguments, err)
	}
	accounts, err := msg.AccountMap()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidArguments, err)
	}
	if len(accounts) != len(ins.Accounts) {
		return nil, fmt.Errorf("%w: %s declares %d accounts, got %d", ledger.ErrAccountMismatch, ins.Name, len(ins.Accounts), len(accounts))
	}
	for _, acct := range ins.Accounts {
		addr, ok := accounts[acct.Name]
		if !ok {
			return nil, fmt.Errorf("%w: missing account %s", ledger.ErrAccountMismatch, acct.Name)
		}
		if acct.Signer && addr != msg.Signer {
			return nil, fmt.Errorf("%w: %s must be the signer", ledger.ErrUnauthorized, acct.Name)
		}
	}
	return accounts, nil
}

// reject stores a failed receipt for a verified transaction so that a
// resubmission is answered with the same outcome.
func (r *Runtime) reject(ctx context.Context, t *tx.Transaction, cause error) (*ledger.Receipt, error) {
	code := ledger.CodeOf(cause)
	receipt := &ledger.Receipt{
		Signature:   t.Signature,
		Instruction: t.Message.Instruction,
		Signer:      t.Message.Signer,
		Status:      ledger.ReceiptFailed,
		ErrorCode:   code,
		Error:       cause.Error(),
		ProcessedAt: r.now().UTC(),
	}
	err := r.store.InTx(ctx, func(dbtx repository.Tx) error {
		return dbtx.Receipts().Create(ctx, receipt)
	})
	if errors.Is(err, repository.ErrConflict) {
		prior, lookupErr := r.statuses.Lookup(ctx, t.Signature)
		if lookupErr != nil {
			return nil, lookupErr
		}
		return prior, ledger.ErrDuplicateSubmission
	}
	if err != nil {
		return nil, fmt.Errorf("recording failed receipt: %w", err)
	}
	r.statuses.Remember(ctx, receipt)
	r.logger.Info("transaction rejected",
		"instruction", t.Message.Instruction,
		"signer", t.Message.Signer.Short(),
		"code", code,
		"error", cause,
	)
	return receipt, cause
}

func lockSet(accounts map[string]address.Address) []address.Address {
	out := make([]address.Address, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a)
	}
	return out
}

func shortSig(sig string) string {
	if len(sig) <= 12 {
		return sig
	}
	return sig[:12]
}
