// Package rpc is the HTTP JSON-RPC client for a ledger node.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/activity"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/repository"
	"github.com/rpggio/focusstake/internal/runtime"
	"github.com/rpggio/focusstake/internal/transport"
	"github.com/rpggio/focusstake/internal/tx"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// URL is the node base URL, e.g. "http://localhost:8899".
	URL string
	// Token is sent as a bearer token when set.
	Token string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls a ledger node over JSON-RPC.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	nextID     atomic.Int64
}

// NewClient creates a client for the node at config.URL.
func NewClient(config ClientConfig) (*Client, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("rpc: URL is required")
	}
	if _, err := url.Parse(config.URL); err != nil {
		return nil, fmt.Errorf("rpc: invalid URL %q: %w", config.URL, err)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL:    strings.TrimRight(config.URL, "/"),
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Error is a JSON-RPC error returned by the node. It unwraps to the
// matching ledger error or repository.ErrNotFound so callers can use
// errors.Is regardless of transport.
type Error struct {
	Code    int
	Message string
	// ProgramCode is the ledger error code of an ErrProgram response.
	ProgramCode string
	// Receipt is the receipt recorded for a rejected transaction.
	Receipt *ledger.Receipt
}

func (e *Error) Error() string {
	if e.ProgramCode != "" {
		return fmt.Sprintf("%s: %s", e.ProgramCode, e.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	switch e.Code {
	case transport.ErrProgram:
		if perr := ledger.ErrorByCode(e.ProgramCode); perr != nil {
			return perr
		}
	case transport.ErrNotFound:
		return repository.ErrNotFound
	}
	return nil
}

// SendTransaction submits a signed transaction. A rejected transaction
// returns its failed receipt together with the error.
func (c *Client) SendTransaction(ctx context.Context, t *tx.Transaction) (*ledger.Receipt, error) {
	var receipt ledger.Receipt
	err := c.call(ctx, transport.MethodSendTransaction, transport.SendTransactionParams{Transaction: t}, &receipt)
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) && rpcErr.Receipt != nil {
			return rpcErr.Receipt, err
		}
		return nil, err
	}
	return &receipt, nil
}

// GetAccountInfo fetches an account and its decoded state.
func (c *Client) GetAccountInfo(ctx context.Context, addr address.Address) (*transport.AccountInfo, error) {
	var info transport.AccountInfo
	if err := c.call(ctx, transport.MethodGetAccountInfo, transport.AddressParams{Address: addr}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetBalance returns the balance at addr; a missing account holds zero.
func (c *Client) GetBalance(ctx context.Context, addr address.Address) (uint64, error) {
	var res transport.BalanceResult
	if err := c.call(ctx, transport.MethodGetBalance, transport.AddressParams{Address: addr}, &res); err != nil {
		return 0, err
	}
	return res.Balance, nil
}

// GetSignatureStatus returns the receipt for signature.
func (c *Client) GetSignatureStatus(ctx context.Context, signature string) (*ledger.Receipt, error) {
	var receipt ledger.Receipt
	if err := c.call(ctx, transport.MethodGetSignatureStatus, transport.SignatureParams{Signature: signature}, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// RequestAirdrop asks the node faucet for amount base units.
func (c *Client) RequestAirdrop(ctx context.Context, to address.Address, amount uint64) (*ledger.Receipt, error) {
	var receipt ledger.Receipt
	if err := c.call(ctx, transport.MethodRequestAirdrop, transport.AirdropParams{Address: to, Amount: amount}, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// GetProgramState returns the global ledger and custody balances.
func (c *Client) GetProgramState(ctx context.Context) (*runtime.ProgramState, error) {
	var state runtime.ProgramState
	if err := c.call(ctx, transport.MethodGetProgramState, nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetSession returns the session record of owner.
func (c *Client) GetSession(ctx context.Context, owner address.Address) (*runtime.SessionView, error) {
	var view runtime.SessionView
	if err := c.call(ctx, transport.MethodGetSession, transport.SessionParams{Owner: owner}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// GetAddresses returns the derived program addresses the node serves.
func (c *Client) GetAddresses(ctx context.Context) (address.ProgramAddresses, error) {
	var addrs address.ProgramAddresses
	err := c.call(ctx, transport.MethodGetAddresses, nil, &addrs)
	return addrs, err
}

// GetRecentActivity lists activity entries, newest first.
func (c *Client) GetRecentActivity(ctx context.Context, params transport.ActivityParams) ([]activity.ActivityEntry, error) {
	var entries []activity.ActivityEntry
	if err := c.call(ctx, transport.MethodGetRecentActivity, params, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Health checks that the node is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("rpc: building health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc: health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc: health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	req := transport.Request{
		JSONRPC: "2.0",
		Method:  method,
		ID:      c.nextID.Add(1),
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("rpc: encoding %s params: %w", method, err)
		}
		req.Params = raw
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("rpc: encoding %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpc: building %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("rpc: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("rpc: %s: status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out transport.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("rpc: decoding %s response: %w", method, err)
	}
	if out.Error != nil {
		c.logger.Debug("rpc error", "method", method, "code", out.Error.Code, "message", out.Error.Message)
		return decodeError(out.Error)
	}
	if result == nil || len(out.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(out.Result, result); err != nil {
		return fmt.Errorf("rpc: decoding %s result: %w", method, err)
	}
	return nil
}

func decodeError(e *transport.Error) error {
	out := &Error{Code: e.Code, Message: e.Message}
	if e.Code != transport.ErrProgram || e.Data == nil {
		return out
	}
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return out
	}
	var data transport.ProgramErrorData
	if err := json.Unmarshal(raw, &data); err == nil {
		out.ProgramCode = data.Code
		out.Receipt = data.Receipt
	}
	return out
}
