package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names.
const (
	ToolGetGlobalState     = "get_global_state"
	ToolGetSession         = "get_session"
	ToolGetBalance         = "get_balance"
	ToolDeriveAddresses    = "derive_addresses"
	ToolGetRecentActivity  = "get_recent_activity"
	ToolGetSignatureStatus = "get_signature_status"
	ToolSubmitTransaction  = "submit_transaction"
)

// registerTools adds every tool to server. Tool failures are reported as
// tool errors carrying the ledger error code and a recovery hint.
func registerTools(server *sdkmcp.Server, h *Handler, logger *slog.Logger) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        ToolGetGlobalState,
		Description: "Get the global ledger: authority, completion mode, session count and the vault, focus pool and failure pool balances",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ GetGlobalStateParams) (*sdkmcp.CallToolResult, any, error) {
		resp, err := h.GlobalState(ctx)
		return done(logger, ToolGetGlobalState, resp, err)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        ToolGetSession,
		Description: "Get the focus session of a wallet with its tasks, status and remaining time",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetSessionParams) (*sdkmcp.CallToolResult, any, error) {
		resp, err := h.Session(ctx, in)
		return done(logger, ToolGetSession, resp, err)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        ToolGetBalance,
		Description: "Get the balance of any account in base units and tokens",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetBalanceParams) (*sdkmcp.CallToolResult, any, error) {
		resp, err := h.Balance(ctx, in)
		return done(logger, ToolGetBalance, resp, err)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        ToolDeriveAddresses,
		Description: "Derive the global ledger, vault and pool addresses, and optionally the session record address of a wallet",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in DeriveAddressesParams) (*sdkmcp.CallToolResult, any, error) {
		resp, err := h.DeriveAddresses(ctx, in)
		return done(logger, ToolDeriveAddresses, resp, err)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        ToolGetRecentActivity,
		Description: "List recent ledger activity, newest first, optionally filtered by signer, account or type",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetRecentActivityParams) (*sdkmcp.CallToolResult, any, error) {
		resp, err := h.RecentActivity(ctx, in)
		return done(logger, ToolGetRecentActivity, resp, err)
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        ToolGetSignatureStatus,
		Description: "Get the receipt of a processed transaction by signature",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetSignatureStatusParams) (*sdkmcp.CallToolResult, any, error) {
		resp, err := h.SignatureStatus(ctx, in)
		return done(logger, ToolGetSignatureStatus, resp, err)
	})

	if h.submitter == nil {
		return
	}
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        ToolSubmitTransaction,
		Description: "Submit a signed transaction and return its receipt. Resubmitting a processed transaction returns DuplicateSubmission with the original receipt",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in SubmitTransactionParams) (*sdkmcp.CallToolResult, any, error) {
		resp, err := h.SubmitTransaction(ctx, in)
		return done(logger, ToolSubmitTransaction, resp, err)
	})
}

func done[T any](logger *slog.Logger, tool string, out *T, err error) (*sdkmcp.CallToolResult, any, error) {
	if err != nil {
		if !isAPIError(err) {
			logger.Error("tool failed", "tool", tool, "error", err)
		}
		return nil, nil, err
	}
	return nil, out, nil
}
