package transport_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/activity"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/domain/program"
	"github.com/rpggio/focusstake/internal/idl"
	"github.com/rpggio/focusstake/internal/runtime"
	"github.com/rpggio/focusstake/internal/testserver"
	"github.com/rpggio/focusstake/internal/transport"
	"github.com/rpggio/focusstake/internal/tx"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0)

func call(t *testing.T, ts *testserver.TestServer, method string, params any) transport.Response {
	t.Helper()
	req := map[string]any{"jsonrpc": "2.0", "method": method, "id": 1}
	if params != nil {
		req["params"] = params
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPost, ts.URL(), bytes.NewReader(body))
	require.NoError(t, err)
	httpReq.Header.Set("Authorization", "Bearer "+ts.Token)
	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out transport.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func result[T any](t *testing.T, resp transport.Response) T {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected rpc error")
	var v T
	require.NoError(t, json.Unmarshal(resp.Result, &v))
	return v
}

func programCode(t *testing.T, resp transport.Response) (string, *ledger.Receipt) {
	t.Helper()
	require.NotNil(t, resp.Error)
	require.Equal(t, transport.ErrProgram, resp.Error.Code)
	raw, err := json.Marshal(resp.Error.Data)
	require.NoError(t, err)
	var data transport.ProgramErrorData
	require.NoError(t, json.Unmarshal(raw, &data))
	return data.Code, data.Receipt
}

func signed(t *testing.T, ts *testserver.TestServer, k *tx.Keypair, instruction string, args any) *tx.Transaction {
	t.Helper()
	accounts, err := program.AccountsFor(ts.Program, instruction, k.Address(), address.Address{})
	require.NoError(t, err)
	tr, err := tx.New(ts.Program, instruction, args, accounts, k.Address())
	require.NoError(t, err)
	require.NoError(t, k.Sign(tr))
	return tr
}

func keypair(t *testing.T, b byte) *tx.Keypair {
	t.Helper()
	k, err := tx.KeypairFromSeed(bytes.Repeat([]byte{b}, 32))
	require.NoError(t, err)
	return k
}

func TestMethods_SessionLifecycle(t *testing.T) {
	ts := testserver.New(t, testserver.Options{Token: "secret", Clock: func() time.Time { return epoch }})
	authority, user := keypair(t, 1), keypair(t, 2)

	resp := call(t, ts, transport.MethodGetProgramState, nil)
	code, _ := programCode(t, resp)
	require.Equal(t, "NotInitialized", code)

	initTx := signed(t, ts, authority, idl.Initialize, nil)
	receipt := result[ledger.Receipt](t, call(t, ts, transport.MethodSendTransaction, transport.SendTransactionParams{Transaction: initTx}))
	require.Equal(t, ledger.ReceiptSucceeded, receipt.Status)

	airdrop := result[ledger.Receipt](t, call(t, ts, transport.MethodRequestAirdrop, transport.AirdropParams{Address: user.Address(), Amount: ledger.BaseUnitsPerToken}))
	require.Equal(t, runtime.AirdropInstruction, airdrop.Instruction)

	start := signed(t, ts, user, idl.StartFocusSession, program.StartArgs{
		StakeAmount:     100_000_000,
		DurationMinutes: 25,
		Tasks:           []ledger.Task{{Description: "draft"}},
	})
	result[ledger.Receipt](t, call(t, ts, transport.MethodSendTransaction, transport.SendTransactionParams{Transaction: start}))

	state := result[runtime.ProgramState](t, call(t, ts, transport.MethodGetProgramState, nil))
	require.Equal(t, uint64(1_000_000), state.FocusPoolBalance)
	require.Equal(t, uint64(99_000_000), state.VaultBalance)

	view := result[runtime.SessionView](t, call(t, ts, transport.MethodGetSession, transport.SessionParams{Owner: user.Address()}))
	require.True(t, view.IsActive)
	require.Equal(t, int64(25*60), view.RemainingSeconds)

	info := result[transport.AccountInfo](t, call(t, ts, transport.MethodGetAccountInfo, transport.AddressParams{Address: view.Address}))
	require.Equal(t, ledger.KindSession, info.Account.Kind)
	require.NotNil(t, info.Session)
	require.Equal(t, uint64(100_000_000), info.Session.StakeAmount)

	info = result[transport.AccountInfo](t, call(t, ts, transport.MethodGetAccountInfo, transport.AddressParams{Address: state.Addresses.Global}))
	require.Equal(t, authority.Address(), info.Global.Authority)

	dup := call(t, ts, transport.MethodSendTransaction, transport.SendTransactionParams{Transaction: start})
	code, prior := programCode(t, dup)
	require.Equal(t, "DuplicateSubmission", code)
	require.Equal(t, ledger.ReceiptSucceeded, prior.Status)

	status := result[ledger.Receipt](t, call(t, ts, transport.MethodGetSignatureStatus, transport.SignatureParams{Signature: start.Signature}))
	require.Equal(t, idl.StartFocusSession, status.Instruction)

	complete := signed(t, ts, user, idl.CompleteFocusSession, nil)
	result[ledger.Receipt](t, call(t, ts, transport.MethodSendTransaction, transport.SendTransactionParams{Transaction: complete}))

	balance := result[transport.BalanceResult](t, call(t, ts, transport.MethodGetBalance, transport.AddressParams{Address: user.Address()}))
	require.Equal(t, ledger.BaseUnitsPerToken-1_000_000, balance.Balance)

	resp = call(t, ts, transport.MethodGetAccountInfo, transport.AddressParams{Address: view.Address})
	require.Equal(t, transport.ErrNotFound, resp.Error.Code)

	entries := result[[]activity.ActivityEntry](t, call(t, ts, transport.MethodGetRecentActivity, transport.ActivityParams{Actor: user.Address().String()}))
	require.Len(t, entries, 3)
	require.Equal(t, activity.TypeSessionCompleted, entries[0].ActivityType)
}

func TestMethods_ProgramErrorCarriesReceipt(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})
	authority, user := keypair(t, 1), keypair(t, 2)
	result[ledger.Receipt](t, call(t, ts, transport.MethodSendTransaction, transport.SendTransactionParams{Transaction: signed(t, ts, authority, idl.Initialize, nil)}))

	withdraw := signed(t, ts, user, idl.WithdrawFocusPool, program.WithdrawArgs{Amount: 1})
	code, receipt := programCode(t, call(t, ts, transport.MethodSendTransaction, transport.SendTransactionParams{Transaction: withdraw}))
	require.Equal(t, "Unauthorized", code)
	require.Equal(t, ledger.ReceiptFailed, receipt.Status)
	require.Equal(t, withdraw.Signature, receipt.Signature)
}

func TestMethods_InvalidParams(t *testing.T) {
	ts := testserver.New(t, testserver.Options{})

	resp := call(t, ts, transport.MethodSendTransaction, nil)
	require.Equal(t, transport.ErrInvalidParams, resp.Error.Code)

	resp = call(t, ts, transport.MethodGetBalance, map[string]string{"address": "not-hex"})
	require.Equal(t, transport.ErrInvalidParams, resp.Error.Code)

	resp = call(t, ts, "getSlot", nil)
	require.Equal(t, transport.ErrMethodNotFound, resp.Error.Code)

	resp = call(t, ts, transport.MethodGetSignatureStatus, transport.SignatureParams{Signature: "unknown"})
	require.Equal(t, transport.ErrNotFound, resp.Error.Code)

	resp = call(t, ts, transport.MethodRequestAirdrop, transport.AirdropParams{Address: keypair(t, 3).Address(), Amount: testserver.FaucetLimit + 1})
	code, _ := programCode(t, resp)
	require.Equal(t, "InvalidAmount", code)

	addrs := result[address.ProgramAddresses](t, call(t, ts, transport.MethodGetAddresses, nil))
	require.Equal(t, address.ForProgram(ts.Program), addrs)

	entries := result[[]activity.ActivityEntry](t, call(t, ts, transport.MethodGetRecentActivity, nil))
	require.Empty(t, entries)
}
