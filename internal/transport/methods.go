package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/activity"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/repository"
	"github.com/rpggio/focusstake/internal/runtime"
	"github.com/rpggio/focusstake/internal/tx"
)

// Ledger is the write side served over RPC.
type Ledger interface {
	Submit(ctx context.Context, t *tx.Transaction) (*ledger.Receipt, error)
	Airdrop(ctx context.Context, to address.Address, amount uint64) (*ledger.Receipt, error)
}

// Reader is the read side served over RPC.
type Reader interface {
	Addresses() address.ProgramAddresses
	Account(ctx context.Context, addr address.Address) (*ledger.Account, error)
	Balance(ctx context.Context, addr address.Address) (uint64, error)
	ProgramState(ctx context.Context) (*runtime.ProgramState, error)
	Session(ctx context.Context, owner address.Address, now int64) (*runtime.SessionView, error)
	SignatureStatus(ctx context.Context, signature string) (*ledger.Receipt, error)
	RecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Methods implements RPCHandler over a ledger runtime.
type Methods struct {
	ledger Ledger
	reader Reader
	now    func() time.Time
	logger *slog.Logger
}

// NewMethods creates the RPC method table.
func NewMethods(l Ledger, reader Reader, logger *slog.Logger) *Methods {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Methods{ledger: l, reader: reader, now: time.Now, logger: logger}
}

// Handle dispatches one RPC method.
func (m *Methods) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case MethodSendTransaction:
		var p SendTransactionParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if p.Transaction == nil {
			return nil, invalidParams("transaction is required")
		}
		receipt, err := m.ledger.Submit(ctx, p.Transaction)
		if err != nil {
			return nil, ToRPCError(err, receipt)
		}
		return receipt, nil

	case MethodGetAccountInfo:
		var p AddressParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return m.accountInfo(ctx, p.Address)

	case MethodGetBalance:
		var p AddressParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		balance, err := m.reader.Balance(ctx, p.Address)
		if err != nil {
			return nil, ToRPCError(err, nil)
		}
		return BalanceResult{Address: p.Address, Balance: balance}, nil

	case MethodGetSignatureStatus:
		var p SignatureParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if p.Signature == "" {
			return nil, invalidParams("signature is required")
		}
		receipt, err := m.reader.SignatureStatus(ctx, p.Signature)
		if err != nil {
			return nil, ToRPCError(err, nil)
		}
		return receipt, nil

	case MethodRequestAirdrop:
		var p AirdropParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		receipt, err := m.ledger.Airdrop(ctx, p.Address, p.Amount)
		if err != nil {
			return nil, ToRPCError(err, nil)
		}
		m.logger.Info("airdrop", "to", p.Address.Short(), "amount", p.Amount)
		return receipt, nil

	case MethodGetProgramState:
		state, err := m.reader.ProgramState(ctx)
		if err != nil {
			return nil, ToRPCError(err, nil)
		}
		return state, nil

	case MethodGetSession:
		var p SessionParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		view, err := m.reader.Session(ctx, p.Owner, m.now().Unix())
		if err != nil {
			return nil, ToRPCError(err, nil)
		}
		return view, nil

	case MethodGetAddresses:
		return m.reader.Addresses(), nil

	case MethodGetRecentActivity:
		var p ActivityParams
		if len(params) > 0 && string(params) != "null" {
			if err := decodeParams(params, &p); err != nil {
				return nil, err
			}
		}
		entries, err := m.reader.RecentActivity(ctx, activity.ListActivityOptions{
			Actor:        p.Actor,
			Account:      p.Account,
			ActivityType: p.Type,
			Limit:        p.Limit,
			Offset:       p.Offset,
		})
		if err != nil {
			return nil, ToRPCError(err, nil)
		}
		if entries == nil {
			entries = []activity.ActivityEntry{}
		}
		return entries, nil

	default:
		return nil, &Error{Code: ErrMethodNotFound, Message: fmt.Sprintf("method not found: %s", method)}
	}
}

func (m *Methods) accountInfo(ctx context.Context, addr address.Address) (*AccountInfo, error) {
	acct, err := m.reader.Account(ctx, addr)
	if err != nil {
		return nil, ToRPCError(err, nil)
	}
	info := &AccountInfo{Account: acct}
	switch acct.Kind {
	case ledger.KindGlobal:
		if info.Global, err = ledger.DecodeGlobal(acct); err != nil {
			return nil, err
		}
	case ledger.KindSession:
		if info.Session, err = ledger.DecodeSession(acct); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// ToRPCError maps a service error to a JSON-RPC error. Program errors keep
// their code and the receipt, if one was recorded.
func ToRPCError(err error, receipt *ledger.Receipt) *Error {
	var rpcErr *Error
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr
	case ledger.CodeOf(err) != "":
		return &Error{
			Code:    ErrProgram,
			Message: err.Error(),
			Data:    ProgramErrorData{Code: ledger.CodeOf(err), Receipt: receipt},
		}
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Code: ErrNotFound, Message: err.Error()}
	case errors.Is(err, runtime.ErrFaucetDisabled):
		return &Error{Code: ErrUnavailable, Message: err.Error()}
	default:
		return &Error{Code: ErrInternal, Message: err.Error()}
	}
}

func decodeParams(params json.RawMessage, dst any) error {
	if len(params) == 0 || string(params) == "null" {
		return invalidParams("params are required")
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return invalidParams(err.Error())
	}
	return nil
}

func invalidParams(msg string) *Error {
	return &Error{Code: ErrInvalidParams, Message: msg}
}

// SetClock replaces the clock used for session timing, for tests.
func (m *Methods) SetClock(now func() time.Time) {
	m.now = now
}
