package program

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/activity"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/idl"
	"github.com/rpggio/focusstake/internal/repository"
)

// Config holds program parameters fixed at initialize.
type Config struct {
	// RecordDeposit is charged when a session record is created and
	// returned when it closes. Zero selects ledger.DefaultRecordDeposit.
	RecordDeposit uint64
}

// Service executes program instructions.
type Service struct {
	cfg    Config
	logger *slog.Logger
}

// NewService creates a new program service.
func NewService(cfg Config, logger *slog.Logger) *Service {
	if cfg.RecordDeposit == 0 {
		cfg.RecordDeposit = ledger.DefaultRecordDeposit
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{cfg: cfg, logger: logger}
}

// Execute runs one instruction. On error nothing has been written to the
// store; on success every change has been.
func (s *Service) Execute(ctx context.Context, inv Invocation, instruction string, args json.RawMessage) (*Outcome, error) {
	e := newExecution(inv)

	var err error
	switch instruction {
	case idl.Initialize:
		err = s.initialize(ctx, e, args)
	case idl.StartFocusSession:
		err = s.startSession(ctx, e, args)
	case idl.CompleteFocusSession:
		err = s.completeSession(ctx, e)
	case idl.FailFocusSession:
		err = s.failSession(ctx, e)
	case idl.ClaimRewards:
		err = s.claimRewards(ctx, e)
	case idl.UpdateTask:
		err = s.updateTask(ctx, e, args)
	case idl.WithdrawFocusPool:
		err = s.withdraw(ctx, e, args, idl.RoleFocusPool)
	case idl.WithdrawFailurePool:
		err = s.withdraw(ctx, e, args, idl.RoleFailurePool)
	default:
		err = fmt.Errorf("%w: %q", ledger.ErrUnknownInstruction, instruction)
	}
	if err != nil {
		s.logger.Debug("instruction rejected", "instruction", instruction, "signer", inv.Signer.Short(), "error", err)
		return nil, err
	}
	if err := e.commit(ctx); err != nil {
		return nil, fmt.Errorf("committing %s: %w", instruction, err)
	}
	s.logger.Debug("instruction applied", "instruction", instruction, "signer", inv.Signer.Short(), "transfers", len(e.out.Transfers))
	return &e.out, nil
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrInvalidArguments, err)
	}
	return nil
}

func (s *Service) loadGlobal(ctx context.Context, e *execution, addrs address.ProgramAddresses) (*ledger.Account, *ledger.GlobalLedger, error) {
	if _, err := e.role(idl.RoleGlobalState, addrs.Global); err != nil {
		return nil, nil, err
	}
	acct, err := e.get(ctx, addrs.Global)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ledger.ErrNotInitialized
		}
		return nil, nil, fmt.Errorf("loading global ledger: %w", err)
	}
	g, err := ledger.DecodeGlobal(acct)
	if err != nil {
		return nil, nil, err
	}
	return acct, g, nil
}

func (s *Service) loadSession(ctx context.Context, e *execution, addr address.Address) (*ledger.Account, *ledger.SessionRecord, error) {
	acct, err := e.get(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ledger.ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("loading session: %w", err)
	}
	if acct.Kind != ledger.KindSession {
		return nil, nil, ledger.ErrSessionNotFound
	}
	rec, err := ledger.DecodeSession(acct)
	if err != nil {
		return nil, nil, err
	}
	if rec.Owner != e.inv.Signer {
		return nil, nil, fmt.Errorf("%w: session belongs to %s", ledger.ErrUnauthorized, rec.Owner.Short())
	}
	return acct, rec, nil
}

// custody loads a program custody account by role.
func (s *Service) custody(ctx context.Context, e *execution, role string, addr address.Address) (*ledger.Account, error) {
	if _, err := e.role(role, addr); err != nil {
		return nil, err
	}
	acct, err := e.get(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ledger.ErrNotInitialized
		}
		return nil, fmt.Errorf("loading %s: %w", role, err)
	}
	return acct, nil
}

func (s *Service) event(e *execution, typ activity.ActivityType, account *address.Address, amount uint64, summary string, details any) {
	entry := activity.ActivityEntry{
		Actor:        e.inv.Signer.String(),
		ActivityType: typ,
		Amount:       amount,
		Summary:      summary,
		CreatedAt:    e.inv.Now,
	}
	if account != nil {
		a := account.String()
		entry.Account = &a
	}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			entry.Details = string(b)
		}
	}
	e.out.Events = append(e.out.Events, entry)
}

func (s *Service) initialize(ctx context.Context, e *execution, raw json.RawMessage) error {
	var args InitializeArgs
	if err := decodeArgs(raw, &args); err != nil {
		return err
	}
	mode := args.CompletionMode
	if mode == "" {
		mode = ledger.CompletionImmediate
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: completion mode %q", ledger.ErrInvalidArguments, mode)
	}

	authority, err := e.signerRole(idl.RoleAuthority)
	if err != nil {
		return err
	}
	addrs := address.ForProgram(e.inv.Program)
	for _, r := range []struct {
		role string
		addr address.Address
	}{
		{idl.RoleGlobalState, addrs.Global},
		{idl.RoleVault, addrs.Vault},
		{idl.RoleFocusPool, addrs.FocusPool},
		{idl.RoleFailurePool, addrs.FailurePool},
	} {
		if _, err := e.role(r.role, r.addr); err != nil {
			return err
		}
	}

	if acct, err := e.get(ctx, addrs.Global); err == nil && acct.Kind == ledger.KindGlobal {
		return ledger.ErrAlreadyInitialized
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("loading global ledger: %w", err)
	}

	global, err := e.allocate(ctx, addrs.Global, ledger.KindGlobal, e.inv.Program)
	if err != nil {
		return err
	}
	for _, addr := range []address.Address{addrs.Vault, addrs.FocusPool, addrs.FailurePool} {
		if _, err := e.allocate(ctx, addr, ledger.KindCustody, e.inv.Program); err != nil {
			return err
		}
	}

	g := &ledger.GlobalLedger{
		Authority:      authority,
		Vault:          addrs.Vault,
		FocusPoolVault: addrs.FocusPool,
		FailureVault:   addrs.FailurePool,
		CompletionMode: mode,
		RecordDeposit:  s.cfg.RecordDeposit,
	}
	if err := e.setData(global, g); err != nil {
		return err
	}
	s.event(e, activity.TypeLedgerInitialized, &addrs.Global, 0, "Ledger initialized", map[string]any{
		"completion_mode": mode,
		"record_deposit":  g.RecordDeposit,
	})
	return nil
}

func (s *Service) startSession(ctx context.Context, e *execution, raw json.RawMessage) error {
	var args StartArgs
	if err := decodeArgs(raw, &args); err != nil {
		return err
	}
	owner, err := e.signerRole(idl.RoleUser)
	if err != nil {
		return err
	}
	addrs := address.ForProgram(e.inv.Program)
	sessionAddr, err := e.role(idl.RoleUserState, addrs.UserState(owner))
	if err != nil {
		return err
	}
	globalAcct, g, err := s.loadGlobal(ctx, e, addrs)
	if err != nil {
		return err
	}
	vault, err := s.custody(ctx, e, idl.RoleVault, g.Vault)
	if err != nil {
		return err
	}
	focusPool, err := s.custody(ctx, e, idl.RoleFocusPool, g.FocusPoolVault)
	if err != nil {
		return err
	}

	if existing, err := e.get(ctx, sessionAddr); err == nil && existing.Kind == ledger.KindSession {
		return ledger.ErrSessionAlreadyActive
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("loading session: %w", err)
	}
	if err := ledger.ValidateStart(args.StakeAmount, args.DurationMinutes, args.Tasks); err != nil {
		return err
	}

	user, err := e.get(ctx, owner)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: wallet %s does not exist", ledger.ErrInsufficientFunds, owner.Short())
		}
		return fmt.Errorf("loading wallet: %w", err)
	}
	if args.StakeAmount > user.Balance || g.RecordDeposit > user.Balance-args.StakeAmount {
		return fmt.Errorf("%w: need %d plus deposit %d, have %d", ledger.ErrInsufficientFunds, args.StakeAmount, g.RecordDeposit, user.Balance)
	}

	session, err := e.allocate(ctx, sessionAddr, ledger.KindSession, e.inv.Program)
	if err != nil {
		return err
	}
	fee, remainder := ledger.Split(args.StakeAmount)
	if err := e.transfer(user, focusPool, fee); err != nil {
		return err
	}
	if err := e.transfer(user, vault, remainder); err != nil {
		return err
	}
	if err := e.transfer(user, session, g.RecordDeposit); err != nil {
		return err
	}

	tasks := make([]ledger.Task, len(args.Tasks))
	copy(tasks, args.Tasks)
	rec := &ledger.SessionRecord{
		Owner:           owner,
		Status:          ledger.StatusActive,
		StakeAmount:     args.StakeAmount,
		StartTime:       e.inv.Now.Unix(),
		DurationMinutes: args.DurationMinutes,
		Tasks:           tasks,
	}
	if err := e.setData(session, rec); err != nil {
		return err
	}

	g.FocusPool += fee
	g.TotalSessions++
	if err := e.setData(globalAcct, g); err != nil {
		return err
	}

	s.event(e, activity.TypeSessionStarted, &sessionAddr, args.StakeAmount,
		fmt.Sprintf("Started %d minute session staking %s", args.DurationMinutes, ledger.ToTokens(args.StakeAmount)),
		map[string]any{"fee": fee, "escrowed": remainder, "tasks": len(tasks), "session_number": g.TotalSessions})
	return nil
}

func (s *Service) completeSession(ctx context.Context, e *execution) error {
	owner, err := e.signerRole(idl.RoleUser)
	if err != nil {
		return err
	}
	addrs := address.ForProgram(e.inv.Program)
	sessionAddr, err := e.role(idl.RoleUserState, addrs.UserState(owner))
	if err != nil {
		return err
	}
	_, g, err := s.loadGlobal(ctx, e, addrs)
	if err != nil {
		return err
	}
	vault, err := s.custody(ctx, e, idl.RoleVault, g.Vault)
	if err != nil {
		return err
	}
	session, rec, err := s.loadSession(ctx, e, sessionAddr)
	if err != nil {
		return err
	}
	if !rec.IsActive() {
		return ledger.ErrSessionNotActive
	}

	payout := ledger.Payout(rec.StakeAmount)
	if g.CompletionMode == ledger.CompletionDeferred {
		rec.Status = ledger.StatusAwaitingClaim
		rec.PendingBalance = payout
		if err := e.setData(session, rec); err != nil {
			return err
		}
		s.event(e, activity.TypeSessionCompleted, &sessionAddr, payout,
			fmt.Sprintf("Completed session, %s awaiting claim", ledger.ToTokens(payout)), nil)
		return nil
	}

	user, err := e.wallet(ctx, owner)
	if err != nil {
		return err
	}
	if err := e.transfer(vault, user, payout); err != nil {
		return err
	}
	if err := e.close(session, user); err != nil {
		return err
	}
	s.event(e, activity.TypeSessionCompleted, &sessionAddr, payout,
		fmt.Sprintf("Completed session, returned %s", ledger.ToTokens(payout)),
		map[string]any{"tasks_completed": rec.CompletedTasks(), "tasks": len(rec.Tasks)})
	return nil
}

func (s *Service) failSession(ctx context.Context, e *execution) error {
	owner, err := e.signerRole(idl.RoleUser)
	if err != nil {
		return err
	}
	addrs := address.ForProgram(e.inv.Program)
	sessionAddr, err := e.role(idl.RoleUserState, addrs.UserState(owner))
	if err != nil {
		return err
	}
	globalAcct, g, err := s.loadGlobal(ctx, e, addrs)
	if err != nil {
		return err
	}
	vault, err := s.custody(ctx, e, idl.RoleVault, g.Vault)
	if err != nil {
		return err
	}
	failurePool, err := s.custody(ctx, e, idl.RoleFailurePool, g.FailureVault)
	if err != nil {
		return err
	}
	session, rec, err := s.loadSession(ctx, e, sessionAddr)
	if err != nil {
		return err
	}
	if !rec.IsActive() {
		return ledger.ErrSessionNotActive
	}

	forfeit := ledger.Payout(rec.StakeAmount)
	if err := e.transfer(vault, failurePool, forfeit); err != nil {
		return err
	}
	user, err := e.wallet(ctx, owner)
	if err != nil {
		return err
	}
	if err := e.close(session, user); err != nil {
		return err
	}
	g.FailurePool += forfeit
	if err := e.setData(globalAcct, g); err != nil {
		return err
	}
	s.event(e, activity.TypeSessionFailed, &sessionAddr, forfeit,
		fmt.Sprintf("Failed session, forfeited %s", ledger.ToTokens(forfeit)), nil)
	return nil
}

func (s *Service) claimRewards(ctx context.Context, e *execution) error {
	owner, err := e.signerRole(idl.RoleUser)
	if err != nil {
		return err
	}
	addrs := address.ForProgram(e.inv.Program)
	sessionAddr, err := e.role(idl.RoleUserState, addrs.UserState(owner))
	if err != nil {
		return err
	}
	_, g, err := s.loadGlobal(ctx, e, addrs)
	if err != nil {
		return err
	}
	vault, err := s.custody(ctx, e, idl.RoleVault, g.Vault)
	if err != nil {
		return err
	}
	if _, err := e.role(idl.RoleFailurePool, g.FailureVault); err != nil {
		return err
	}
	session, rec, err := s.loadSession(ctx, e, sessionAddr)
	if err != nil {
		return err
	}
	if rec.Status != ledger.StatusAwaitingClaim {
		return ledger.ErrSessionNotActive
	}
	if rec.PendingBalance == 0 {
		return ledger.ErrNothingToClaim
	}

	user, err := e.wallet(ctx, owner)
	if err != nil {
		return err
	}
	amount := rec.PendingBalance
	if err := e.transfer(vault, user, amount); err != nil {
		return err
	}
	if err := e.close(session, user); err != nil {
		return err
	}
	s.event(e, activity.TypeRewardsClaimed, &sessionAddr, amount,
		fmt.Sprintf("Claimed %s", ledger.ToTokens(amount)),
		map[string]any{"tasks_completed": rec.CompletedTasks(), "tasks": len(rec.Tasks)})
	return nil
}

func (s *Service) updateTask(ctx context.Context, e *execution, raw json.RawMessage) error {
	var args UpdateTaskArgs
	if err := decodeArgs(raw, &args); err != nil {
		return err
	}
	owner, err := e.signerRole(idl.RoleUser)
	if err != nil {
		return err
	}
	sessionAddr, err := e.role(idl.RoleUserState, address.UserState(e.inv.Program, owner))
	if err != nil {
		return err
	}
	session, rec, err := s.loadSession(ctx, e, sessionAddr)
	if err != nil {
		return err
	}
	if rec.IsActive() {
		return ledger.ErrSessionStillActive
	}
	if int(args.TaskIndex) >= len(rec.Tasks) {
		return fmt.Errorf("%w: index %d, %d tasks", ledger.ErrTaskIndexOutOfBounds, args.TaskIndex, len(rec.Tasks))
	}
	rec.Tasks[args.TaskIndex].Completed = args.Completed
	if err := e.setData(session, rec); err != nil {
		return err
	}
	s.event(e, activity.TypeTaskUpdated, &sessionAddr, 0,
		fmt.Sprintf("Task %d marked completed=%t", args.TaskIndex, args.Completed),
		map[string]any{"task_index": args.TaskIndex, "completed": args.Completed})
	return nil
}

func (s *Service) withdraw(ctx context.Context, e *execution, raw json.RawMessage, poolRole string) error {
	var args WithdrawArgs
	if err := decodeArgs(raw, &args); err != nil {
		return err
	}
	authority, err := e.signerRole(idl.RoleAuthority)
	if err != nil {
		return err
	}
	addrs := address.ForProgram(e.inv.Program)
	globalAcct, g, err := s.loadGlobal(ctx, e, addrs)
	if err != nil {
		return err
	}
	if authority != g.Authority {
		return fmt.Errorf("%w: %s is not the ledger authority", ledger.ErrUnauthorized, authority.Short())
	}
	if args.Amount == 0 {
		return fmt.Errorf("%w: withdrawal of zero", ledger.ErrInvalidAmount)
	}

	poolAddr, tracked := g.FocusPoolVault, &g.FocusPool
	if poolRole == idl.RoleFailurePool {
		poolAddr, tracked = g.FailureVault, &g.FailurePool
	}
	pool, err := s.custody(ctx, e, poolRole, poolAddr)
	if err != nil {
		return err
	}
	if args.Amount > *tracked {
		return fmt.Errorf("%w: requested %d, pool holds %d", ledger.ErrInsufficientPoolBalance, args.Amount, *tracked)
	}

	recipientAddr, ok := e.inv.Accounts[idl.RoleRecipient]
	if !ok {
		return fmt.Errorf("%w: missing %s", ledger.ErrAccountMismatch, idl.RoleRecipient)
	}
	recipient, err := e.wallet(ctx, recipientAddr)
	if err != nil {
		return err
	}
	if recipient.Kind != ledger.KindWallet {
		return fmt.Errorf("%w: recipient %s is a %s account", ledger.ErrAccountMismatch, recipientAddr.Short(), recipient.Kind)
	}
	if err := e.transfer(pool, recipient, args.Amount); err != nil {
		return err
	}
	*tracked -= args.Amount
	if err := e.setData(globalAcct, g); err != nil {
		return err
	}
	s.event(e, activity.TypePoolWithdrawn, &poolAddr, args.Amount,
		fmt.Sprintf("Withdrew %s from %s to %s", ledger.ToTokens(args.Amount), poolRole, recipientAddr.Short()),
		map[string]any{"pool": poolRole, "recipient": recipientAddr.String()})
	return nil
}
