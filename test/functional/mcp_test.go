package functional_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/domain/program"
	"github.com/rpggio/focusstake/internal/idl"
	"github.com/rpggio/focusstake/internal/rpc"
	"github.com/rpggio/focusstake/internal/testserver"
	"github.com/rpggio/focusstake/internal/tx"
	"github.com/stretchr/testify/require"
)

const testToken = "token"

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	return b.base.RoundTrip(req)
}

// connectHTTP opens an MCP session over streamable HTTP.
func connectHTTP(t *testing.T, ts *testserver.TestServer, token string) *sdkmcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	transport := &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.MCPURL(),
		HTTPClient: &http.Client{Transport: bearerTransport{token: token, base: http.DefaultTransport}},
	}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

// callTool calls a tool that must succeed and returns its JSON text.
func callTool(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) json.RawMessage {
	t.Helper()
	text, isErr := callToolResult(t, session, name, args)
	require.False(t, isErr, "tool %s returned error: %s", name, text)
	return json.RawMessage(text)
}

func callToolResult(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if args == nil {
		args = map[string]any{}
	}
	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, "CallTool %s failed", name)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	return text.Text, result.IsError
}

func keypair(t *testing.T, seed byte) *tx.Keypair {
	t.Helper()
	k, err := tx.KeypairFromSeed(bytes.Repeat([]byte{seed}, 32))
	require.NoError(t, err)
	return k
}

// signed builds, signs and JSON encodes a transaction for the default
// program.
func signed(t *testing.T, k *tx.Keypair, instruction string, args any, recipient address.Address) string {
	t.Helper()
	accounts, err := program.AccountsFor(address.DefaultProgram, instruction, k.Address(), recipient)
	require.NoError(t, err)
	tr, err := tx.New(address.DefaultProgram, instruction, args, accounts, k.Address())
	require.NoError(t, err)
	require.NoError(t, k.Sign(tr))
	raw, err := json.Marshal(tr)
	require.NoError(t, err)
	return string(raw)
}

func fund(t *testing.T, ts *testserver.TestServer, to address.Address, amount uint64) {
	t.Helper()
	conn, err := rpc.NewClient(rpc.ClientConfig{URL: ts.URL(), Token: ts.Token})
	require.NoError(t, err)
	_, err = conn.RequestAirdrop(context.Background(), to, amount)
	require.NoError(t, err)
}

func TestFunctional_Authentication(t *testing.T) {
	ts := testserver.New(t, testserver.Options{Token: testToken})

	anonymous := connectHTTP(t, ts, "")
	_, err := anonymous.CallTool(context.Background(), &sdkmcp.CallToolParams{
		Name:      "get_global_state",
		Arguments: map[string]any{},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unauthorized")

	wrong := connectHTTP(t, ts, "nope")
	_, err = wrong.CallTool(context.Background(), &sdkmcp.CallToolParams{
		Name:      "get_global_state",
		Arguments: map[string]any{},
	})
	require.Error(t, err)

	authed := connectHTTP(t, ts, testToken)
	text, isErr := callToolResult(t, authed, "get_global_state", nil)
	require.True(t, isErr)
	require.Contains(t, text, "NotInitialized")
}

func TestFunctional_ImmediateSessionLifecycle(t *testing.T) {
	ts := testserver.New(t, testserver.Options{Token: testToken})
	session := connectHTTP(t, ts, testToken)

	authority, alice, bob := keypair(t, 1), keypair(t, 2), keypair(t, 3)
	callTool(t, session, "submit_transaction", map[string]any{
		"transaction": signed(t, authority, idl.Initialize, nil, address.Address{}),
	})
	fund(t, ts, alice.Address(), ledger.BaseUnitsPerToken)
	fund(t, ts, bob.Address(), ledger.BaseUnitsPerToken)

	start := program.StartArgs{
		StakeAmount:     100_000_000,
		DurationMinutes: 25,
		Tasks:           []ledger.Task{{Description: "draft"}, {Description: "edit"}},
	}
	callTool(t, session, "submit_transaction", map[string]any{
		"transaction": signed(t, alice, idl.StartFocusSession, start, address.Address{}),
	})
	callTool(t, session, "submit_transaction", map[string]any{
		"transaction": signed(t, bob, idl.StartFocusSession, start, address.Address{}),
	})

	sessionResp := callTool(t, session, "get_session", map[string]any{"owner": alice.Address().String()})
	var view struct {
		IsActive    bool   `json:"is_active"`
		StakeTokens string `json:"stake_tokens"`
		TotalTasks  int    `json:"total_tasks"`
	}
	require.NoError(t, json.Unmarshal(sessionResp, &view))
	require.True(t, view.IsActive)
	require.Equal(t, "0.1", view.StakeTokens)
	require.Equal(t, 2, view.TotalTasks)

	callTool(t, session, "submit_transaction", map[string]any{
		"transaction": signed(t, alice, idl.CompleteFocusSession, nil, address.Address{}),
	})
	callTool(t, session, "submit_transaction", map[string]any{
		"transaction": signed(t, bob, idl.FailFocusSession, nil, address.Address{}),
	})

	stateResp := callTool(t, session, "get_global_state", nil)
	var state struct {
		Global struct {
			TotalSessions uint64 `json:"total_sessions"`
		} `json:"global"`
		VaultBalance       uint64 `json:"vault_balance"`
		FocusPoolBalance   uint64 `json:"focus_pool_balance"`
		FailurePoolBalance uint64 `json:"failure_pool_balance"`
	}
	require.NoError(t, json.Unmarshal(stateResp, &state))
	require.Equal(t, uint64(2), state.Global.TotalSessions)
	require.Zero(t, state.VaultBalance)
	require.Equal(t, uint64(2_000_000), state.FocusPoolBalance)
	require.Equal(t, uint64(99_000_000), state.FailurePoolBalance)

	text, isErr := callToolResult(t, session, "get_session", map[string]any{"owner": alice.Address().String()})
	require.True(t, isErr)
	require.Contains(t, text, "NotFound")

	balanceResp := callTool(t, session, "get_balance", map[string]any{"address": alice.Address().String()})
	var balance struct {
		Balance uint64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(balanceResp, &balance))
	require.Equal(t, ledger.BaseUnitsPerToken-1_000_000, balance.Balance)

	// Only the authority may drain a pool.
	text, isErr = callToolResult(t, session, "submit_transaction", map[string]any{
		"transaction": signed(t, bob, idl.WithdrawFailurePool, program.WithdrawArgs{Amount: 1}, address.Address{}),
	})
	require.True(t, isErr)
	require.Contains(t, text, "Unauthorized")

	callTool(t, session, "submit_transaction", map[string]any{
		"transaction": signed(t, authority, idl.WithdrawFailurePool, program.WithdrawArgs{Amount: 99_000_000}, bob.Address()),
	})
	require.NoError(t, json.Unmarshal(callTool(t, session, "get_balance", map[string]any{"address": bob.Address().String()}), &balance))
	require.Equal(t, ledger.BaseUnitsPerToken-1_000_000, balance.Balance)
}

func TestFunctional_DeferredClaimAndTasks(t *testing.T) {
	ts := testserver.New(t, testserver.Options{Token: testToken})
	session := connectHTTP(t, ts, testToken)

	authority, user := keypair(t, 1), keypair(t, 2)
	callTool(t, session, "submit_transaction", map[string]any{
		"transaction": signed(t, authority, idl.Initialize,
			program.InitializeArgs{CompletionMode: ledger.CompletionDeferred}, address.Address{}),
	})
	fund(t, ts, user.Address(), ledger.BaseUnitsPerToken)

	callTool(t, session, "submit_transaction", map[string]any{
		"transaction": signed(t, user, idl.StartFocusSession, program.StartArgs{
			StakeAmount:     50_000_000,
			DurationMinutes: 60,
			Tasks:           []ledger.Task{{Description: "read"}},
		}, address.Address{}),
	})

	text, isErr := callToolResult(t, session, "submit_transaction", map[string]any{
		"transaction": signed(t, user, idl.ClaimRewards, nil, address.Address{}),
	})
	require.True(t, isErr)
	require.Contains(t, text, "SessionNotActive")

	callTool(t, session, "submit_transaction", map[string]any{
		"transaction": signed(t, user, idl.CompleteFocusSession, nil, address.Address{}),
	})
	callTool(t, session, "submit_transaction", map[string]any{
		"transaction": signed(t, user, idl.UpdateTask, program.UpdateTaskArgs{TaskIndex: 0, Completed: true}, address.Address{}),
	})

	sessionResp := callTool(t, session, "get_session", map[string]any{"owner": user.Address().String()})
	var view struct {
		Record struct {
			Status         string `json:"status"`
			PendingBalance uint64 `json:"pending_balance"`
		} `json:"record"`
		CompletedTasks int `json:"completed_tasks"`
	}
	require.NoError(t, json.Unmarshal(sessionResp, &view))
	require.Equal(t, "awaiting_claim", view.Record.Status)
	require.Equal(t, uint64(49_500_000), view.Record.PendingBalance)
	require.Equal(t, 1, view.CompletedTasks)

	callTool(t, session, "submit_transaction", map[string]any{
		"transaction": signed(t, user, idl.ClaimRewards, nil, address.Address{}),
	})

	activityResp := callTool(t, session, "get_recent_activity", map[string]any{
		"actor": user.Address().String(),
		"limit": 10,
	})
	var recent struct {
		Entries []struct {
			Type string `json:"type"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(activityResp, &recent))
	types := make([]string, 0, len(recent.Entries))
	for _, e := range recent.Entries {
		types = append(types, e.Type)
	}
	require.Equal(t, []string{"rewards_claimed", "task_updated", "session_completed", "session_started", "airdrop"}, types)
}

func TestFunctional_DuplicateSubmission(t *testing.T) {
	ts := testserver.New(t, testserver.Options{Token: testToken})
	session := connectHTTP(t, ts, testToken)

	authority := keypair(t, 1)
	initTx := signed(t, authority, idl.Initialize, nil, address.Address{})
	first := callTool(t, session, "submit_transaction", map[string]any{"transaction": initTx})
	var submitted struct {
		Receipt struct {
			Signature string `json:"signature"`
			Status    string `json:"status"`
		} `json:"receipt"`
	}
	require.NoError(t, json.Unmarshal(first, &submitted))
	require.Equal(t, "succeeded", submitted.Receipt.Status)

	text, isErr := callToolResult(t, session, "submit_transaction", map[string]any{"transaction": initTx})
	require.True(t, isErr)
	require.Contains(t, text, "DuplicateSubmission")

	statusResp := callTool(t, session, "get_signature_status", map[string]any{"signature": submitted.Receipt.Signature})
	require.Contains(t, string(statusResp), `"status":"succeeded"`)
}

func TestFunctional_DeriveAddressesMatchesLedger(t *testing.T) {
	ts := testserver.New(t, testserver.Options{Token: testToken})
	session := connectHTTP(t, ts, testToken)
	user := keypair(t, 2)

	resp := callTool(t, session, "derive_addresses", map[string]any{"owner": user.Address().String()})
	var derived struct {
		GlobalState string `json:"global_state"`
		Vault       string `json:"vault"`
		UserState   string `json:"user_state"`
	}
	require.NoError(t, json.Unmarshal(resp, &derived))

	addrs := address.ForProgram(address.DefaultProgram)
	require.Equal(t, addrs.Global.String(), derived.GlobalState)
	require.Equal(t, addrs.Vault.String(), derived.Vault)
	require.Equal(t, addrs.UserState(user.Address()).String(), derived.UserState)
}
