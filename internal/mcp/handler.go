package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/activity"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/runtime"
	"github.com/rpggio/focusstake/internal/tx"
)

// Reader defines the ledger queries needed by MCP.
type Reader interface {
	Addresses() address.ProgramAddresses
	Balance(ctx context.Context, addr address.Address) (uint64, error)
	ProgramState(ctx context.Context) (*runtime.ProgramState, error)
	Session(ctx context.Context, owner address.Address, now int64) (*runtime.SessionView, error)
	SignatureStatus(ctx context.Context, signature string) (*ledger.Receipt, error)
	RecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Submitter applies signed transactions.
type Submitter interface {
	Submit(ctx context.Context, t *tx.Transaction) (*ledger.Receipt, error)
}

// Handler implements the MCP tools.
type Handler struct {
	reader    Reader
	submitter Submitter
	now       func() time.Time
}

// NewHandler creates a new MCP handler. A nil submitter makes the server
// read-only.
func NewHandler(reader Reader, submitter Submitter) *Handler {
	return &Handler{reader: reader, submitter: submitter, now: time.Now}
}

// GlobalState returns the global ledger and pool balances.
func (h *Handler) GlobalState(ctx context.Context) (*GlobalStateResponse, error) {
	state, err := h.reader.ProgramState(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return &GlobalStateResponse{
		Global:             state.Global,
		Addresses:          state.Addresses,
		VaultBalance:       state.VaultBalance,
		FocusPoolBalance:   state.FocusPoolBalance,
		FailurePoolBalance: state.FailurePoolBalance,
		FocusPoolTokens:    ledger.ToTokens(state.FocusPoolBalance),
		FailurePoolTokens:  ledger.ToTokens(state.FailurePoolBalance),
	}, nil
}

// Session returns the session record of an owner.
func (h *Handler) Session(ctx context.Context, req GetSessionParams) (*SessionResponse, error) {
	owner, err := parseAddress("owner", req.Owner)
	if err != nil {
		return nil, err
	}
	view, err := h.reader.Session(ctx, owner, h.now().Unix())
	if err != nil {
		return nil, mapError(err)
	}
	return &SessionResponse{
		SessionView:    view,
		StakeTokens:    ledger.ToTokens(view.Record.StakeAmount),
		CompletedTasks: view.Record.CompletedTasks(),
		TotalTasks:     len(view.Record.Tasks),
	}, nil
}

// Balance returns the balance of an account.
func (h *Handler) Balance(ctx context.Context, req GetBalanceParams) (*BalanceResponse, error) {
	addr, err := parseAddress("address", req.Address)
	if err != nil {
		return nil, err
	}
	balance, err := h.reader.Balance(ctx, addr)
	if err != nil {
		return nil, mapError(err)
	}
	return &BalanceResponse{Address: addr, Balance: balance, Tokens: ledger.ToTokens(balance)}, nil
}

// DeriveAddresses returns the program addresses, plus the session record
// address of owner when given.
func (h *Handler) DeriveAddresses(_ context.Context, req DeriveAddressesParams) (*DeriveAddressesResponse, error) {
	addrs := h.reader.Addresses()
	resp := &DeriveAddressesResponse{ProgramAddresses: addrs}
	if req.Owner != "" {
		owner, err := parseAddress("owner", req.Owner)
		if err != nil {
			return nil, err
		}
		userState := addrs.UserState(owner)
		resp.Owner = &owner
		resp.UserState = &userState
	}
	return resp, nil
}

// RecentActivity lists activity entries, newest first.
func (h *Handler) RecentActivity(ctx context.Context, req GetRecentActivityParams) (*RecentActivityResponse, error) {
	opts := activity.ListActivityOptions{Actor: req.Actor, Limit: req.Limit}
	if req.Account != "" {
		opts.Account = &req.Account
	}
	if req.Type != "" {
		kind := activity.ActivityType(req.Type)
		opts.ActivityType = &kind
	}
	entries, err := h.reader.RecentActivity(ctx, opts)
	if err != nil {
		return nil, mapError(err)
	}
	resp := &RecentActivityResponse{Entries: make([]ActivityEntryResponse, 0, len(entries))}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, ActivityEntryResponse{
			Timestamp: entry.CreatedAt,
			Type:      entry.ActivityType,
			Signature: entry.Signature,
			Actor:     entry.Actor,
			Account:   entry.Account,
			Amount:    entry.Amount,
			Summary:   entry.Summary,
			Details:   entry.Details,
		})
	}
	return resp, nil
}

// SignatureStatus returns the receipt of a processed transaction.
func (h *Handler) SignatureStatus(ctx context.Context, req GetSignatureStatusParams) (*ledger.Receipt, error) {
	if req.Signature == "" {
		return nil, &APIError{Code: "InvalidArguments", Message: "signature is required"}
	}
	receipt, err := h.reader.SignatureStatus(ctx, req.Signature)
	if err != nil {
		return nil, mapError(err)
	}
	return receipt, nil
}

// SubmitTransaction applies a signed transaction. Rejections carry the
// failed receipt in the error details.
func (h *Handler) SubmitTransaction(ctx context.Context, req SubmitTransactionParams) (*SubmitTransactionResponse, error) {
	if h.submitter == nil {
		return nil, &APIError{Code: "ReadOnly", Message: "this server does not accept transactions"}
	}
	var t tx.Transaction
	if err := json.Unmarshal([]byte(req.Transaction), &t); err != nil {
		return nil, &APIError{
			Code:         "InvalidArguments",
			Message:      fmt.Sprintf("decode transaction: %v", err),
			RecoveryHint: "Pass the signed transaction as a JSON string",
		}
	}
	receipt, err := h.submitter.Submit(ctx, &t)
	if err != nil {
		apiErr := MapError(err)
		if apiErr == nil {
			return nil, err
		}
		if receipt != nil {
			apiErr.Details = receipt
		}
		return nil, apiErr
	}
	return &SubmitTransactionResponse{Receipt: receipt}, nil
}

func parseAddress(field, s string) (address.Address, error) {
	addr, err := address.Parse(s)
	if err != nil {
		return address.Address{}, &APIError{
			Code:         "InvalidArguments",
			Message:      fmt.Sprintf("%s: %v", field, err),
			RecoveryHint: "Addresses are 64 hex characters",
		}
	}
	return addr, nil
}

// isAPIError reports whether err is already an MCP error.
func isAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
