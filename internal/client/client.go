// Package client drives the focus program from the user side. It derives
// the accounts of each instruction, signs and submits it, treats a
// transaction the ledger already processed as success and keeps a cached
// snapshot of the caller's session and the global ledger.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/domain/program"
	"github.com/rpggio/focusstake/internal/idl"
	"github.com/rpggio/focusstake/internal/repository"
	"github.com/rpggio/focusstake/internal/transport"
	"github.com/rpggio/focusstake/internal/tx"
)

// Signer signs transactions for one account.
type Signer interface {
	Address() address.Address
	Sign(t *tx.Transaction) error
	SignAll(ts []*tx.Transaction) error
}

// Conn is the node connection the client submits through.
type Conn interface {
	SendTransaction(ctx context.Context, t *tx.Transaction) (*ledger.Receipt, error)
	GetAccountInfo(ctx context.Context, addr address.Address) (*transport.AccountInfo, error)
	GetBalance(ctx context.Context, addr address.Address) (uint64, error)
	GetSignatureStatus(ctx context.Context, signature string) (*ledger.Receipt, error)
}

// Snapshot is the last fetched view of the caller's state.
type Snapshot struct {
	Session   *ledger.SessionRecord
	Global    *ledger.GlobalLedger
	FetchedAt time.Time
}

// Client submits instructions on behalf of one signer.
type Client struct {
	conn    Conn
	signer  Signer
	program address.Address
	addrs   address.ProgramAddresses
	flight  singleflight.Group
	logger  *slog.Logger

	mu       sync.RWMutex
	snapshot Snapshot
}

// New creates a client for signer against program.
func New(conn Conn, signer Signer, prog address.Address, logger *slog.Logger) *Client {
	if prog.IsZero() {
		prog = address.DefaultProgram
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		conn:    conn,
		signer:  signer,
		program: prog,
		addrs:   address.ForProgram(prog),
		logger:  logger,
	}
}

// Address returns the signer address.
func (c *Client) Address() address.Address {
	return c.signer.Address()
}

// Addresses returns the derived program addresses.
func (c *Client) Addresses() address.ProgramAddresses {
	return c.addrs
}

// SessionAddress returns the session record address of the signer.
func (c *Client) SessionAddress() address.Address {
	return c.addrs.UserState(c.signer.Address())
}

// Initialize creates the global ledger with the signer as authority.
func (c *Client) Initialize(ctx context.Context, mode ledger.CompletionMode) (*ledger.Receipt, error) {
	if mode != "" && !mode.Valid() {
		return nil, fmt.Errorf("%w: completion mode %q", ledger.ErrInvalidArguments, mode)
	}
	return c.submit(ctx, idl.Initialize, program.InitializeArgs{CompletionMode: mode}, address.Address{})
}

// StartSession stakes amount base units for durationMinutes. Arguments
// the program would reject are refused before anything is signed.
func (c *Client) StartSession(ctx context.Context, stake, durationMinutes uint64, tasks []ledger.Task) (*ledger.Receipt, error) {
	if err := ledger.ValidateStart(stake, durationMinutes, tasks); err != nil {
		return nil, err
	}
	args := program.StartArgs{StakeAmount: stake, DurationMinutes: durationMinutes, Tasks: tasks}
	return c.guarded(ctx, "start", idl.StartFocusSession, args)
}

// CompleteSession ends the active session successfully.
func (c *Client) CompleteSession(ctx context.Context) (*ledger.Receipt, error) {
	return c.guarded(ctx, "complete", idl.CompleteFocusSession, nil)
}

// FailSession forfeits the active session.
func (c *Client) FailSession(ctx context.Context) (*ledger.Receipt, error) {
	return c.guarded(ctx, "fail", idl.FailFocusSession, nil)
}

// ClaimRewards collects a deferred payout.
func (c *Client) ClaimRewards(ctx context.Context) (*ledger.Receipt, error) {
	return c.guarded(ctx, "claim", idl.ClaimRewards, nil)
}

// UpdateTask marks task index as completed or not.
func (c *Client) UpdateTask(ctx context.Context, index uint32, completed bool) (*ledger.Receipt, error) {
	return c.submit(ctx, idl.UpdateTask, program.UpdateTaskArgs{TaskIndex: index, Completed: completed}, address.Address{})
}

// UpdateTasks marks several tasks at once. The transactions are signed
// together and sent in order; sending stops at the first failure and the
// receipts of the applied ones are returned with the error.
func (c *Client) UpdateTasks(ctx context.Context, indices []uint32, completed bool) ([]*ledger.Receipt, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	batch := make([]*tx.Transaction, len(indices))
	for i, index := range indices {
		t, err := c.build(idl.UpdateTask, program.UpdateTaskArgs{TaskIndex: index, Completed: completed}, address.Address{})
		if err != nil {
			return nil, err
		}
		batch[i] = t
	}
	if err := c.signer.SignAll(batch); err != nil {
		return nil, fmt.Errorf("signing task updates: %w", err)
	}

	receipts := make([]*ledger.Receipt, 0, len(batch))
	defer c.refresh(ctx, idl.UpdateTask)
	for i, t := range batch {
		receipt, err := c.send(ctx, t)
		if err != nil {
			return receipts, fmt.Errorf("task %d: %w", indices[i], err)
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

// WithdrawFocusPool moves amount from the focus pool to recipient. A zero
// recipient means the signer.
func (c *Client) WithdrawFocusPool(ctx context.Context, amount uint64, recipient address.Address) (*ledger.Receipt, error) {
	if amount == 0 {
		return nil, ledger.ErrInvalidAmount
	}
	return c.submit(ctx, idl.WithdrawFocusPool, program.WithdrawArgs{Amount: amount}, recipient)
}

// WithdrawFailurePool moves amount from the failure pool to recipient.
func (c *Client) WithdrawFailurePool(ctx context.Context, amount uint64, recipient address.Address) (*ledger.Receipt, error) {
	if amount == 0 {
		return nil, ledger.ErrInvalidAmount
	}
	return c.submit(ctx, idl.WithdrawFailurePool, program.WithdrawArgs{Amount: amount}, recipient)
}

// Balance returns the signer's wallet balance.
func (c *Client) Balance(ctx context.Context) (uint64, error) {
	return c.conn.GetBalance(ctx, c.signer.Address())
}

// Session fetches the signer's session record, or ledger.ErrSessionNotFound.
func (c *Client) Session(ctx context.Context) (*ledger.SessionRecord, error) {
	info, err := c.conn.GetAccountInfo(ctx, c.SessionAddress())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ledger.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if info.Session == nil {
		return nil, ledger.ErrSessionNotFound
	}
	return info.Session, nil
}

// Global fetches the global ledger, or ledger.ErrNotInitialized.
func (c *Client) Global(ctx context.Context) (*ledger.GlobalLedger, error) {
	info, err := c.conn.GetAccountInfo(ctx, c.addrs.Global)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ledger.ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	if info.Global == nil {
		return nil, ledger.ErrNotInitialized
	}
	return info.Global, nil
}

// Refresh refetches the session and global ledger into the snapshot. A
// missing session or ledger is stored as nil.
func (c *Client) Refresh(ctx context.Context) (Snapshot, error) {
	session, err := c.Session(ctx)
	if err != nil && !errors.Is(err, ledger.ErrSessionNotFound) {
		return c.Cached(), fmt.Errorf("fetching session: %w", err)
	}
	global, err := c.Global(ctx)
	if err != nil && !errors.Is(err, ledger.ErrNotInitialized) {
		return c.Cached(), fmt.Errorf("fetching global ledger: %w", err)
	}

	snap := Snapshot{Session: session, Global: global, FetchedAt: time.Now()}
	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()
	return snap, nil
}

// Cached returns the last refreshed snapshot.
func (c *Client) Cached() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// guarded runs one session operation at a time per kind. A concurrent call
// of the same kind joins the one in flight and shares its result.
func (c *Client) guarded(ctx context.Context, op, instruction string, args any) (*ledger.Receipt, error) {
	v, err, shared := c.flight.Do(op, func() (any, error) {
		return c.submit(ctx, instruction, args, address.Address{})
	})
	if shared {
		c.logger.Debug("joined in-flight operation", "op", op)
	}
	receipt, _ := v.(*ledger.Receipt)
	return receipt, err
}

func (c *Client) submit(ctx context.Context, instruction string, args any, recipient address.Address) (*ledger.Receipt, error) {
	t, err := c.build(instruction, args, recipient)
	if err != nil {
		return nil, err
	}
	if err := c.signer.Sign(t); err != nil {
		return nil, fmt.Errorf("signing %s: %w", instruction, err)
	}
	receipt, err := c.send(ctx, t)
	if err != nil {
		return receipt, err
	}
	c.refresh(ctx, instruction)
	return receipt, nil
}

func (c *Client) build(instruction string, args any, recipient address.Address) (*tx.Transaction, error) {
	signer := c.signer.Address()
	accounts, err := program.AccountsFor(c.program, instruction, signer, recipient)
	if err != nil {
		return nil, err
	}
	t, err := tx.New(c.program, instruction, args, accounts, signer)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", instruction, err)
	}
	return t, nil
}

func (c *Client) send(ctx context.Context, t *tx.Transaction) (*ledger.Receipt, error) {
	receipt, err := c.conn.SendTransaction(ctx, t)
	if errors.Is(err, ledger.ErrDuplicateSubmission) {
		receipt, err = c.priorOutcome(ctx, t.Signature, receipt)
	}
	if err != nil {
		return receipt, err
	}
	c.logger.Info("transaction confirmed", "instruction", t.Message.Instruction, "sequence", receipt.Sequence)
	return receipt, nil
}

func (c *Client) refresh(ctx context.Context, instruction string) {
	if _, err := c.Refresh(ctx); err != nil {
		c.logger.Warn("refresh after transaction failed", "instruction", instruction, "error", err)
	}
}

// priorOutcome resolves a duplicate submission to the outcome the ledger
// recorded the first time.
func (c *Client) priorOutcome(ctx context.Context, signature string, prior *ledger.Receipt) (*ledger.Receipt, error) {
	if prior == nil {
		var err error
		if prior, err = c.conn.GetSignatureStatus(ctx, signature); err != nil {
			return nil, fmt.Errorf("fetching prior outcome: %w", err)
		}
	}
	c.logger.Info("transaction already processed", "instruction", prior.Instruction, "status", prior.Status)
	return prior, prior.Err()
}
