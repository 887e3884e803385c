package transport

import (
	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/activity"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/tx"
)

// RPC method names.
const (
	MethodSendTransaction    = "sendTransaction"
	MethodGetAccountInfo     = "getAccountInfo"
	MethodGetBalance         = "getBalance"
	MethodGetSignatureStatus = "getSignatureStatus"
	MethodRequestAirdrop     = "requestAirdrop"
	MethodGetProgramState    = "getProgramState"
	MethodGetSession         = "getSession"
	MethodGetAddresses       = "getAddresses"
	MethodGetRecentActivity  = "getRecentActivity"
)

// SendTransactionParams carries a signed transaction.
type SendTransactionParams struct {
	Transaction *tx.Transaction `json:"transaction"`
}

// AddressParams names a single account.
type AddressParams struct {
	Address address.Address `json:"address"`
}

// SessionParams names a session owner.
type SessionParams struct {
	Owner address.Address `json:"owner"`
}

// SignatureParams names a processed transaction.
type SignatureParams struct {
	Signature string `json:"signature"`
}

// AirdropParams requests faucet funds.
type AirdropParams struct {
	Address address.Address `json:"address"`
	Amount  uint64          `json:"amount"`
}

// ActivityParams filters getRecentActivity.
type ActivityParams struct {
	Actor   string                 `json:"actor,omitempty"`
	Account *string                `json:"account,omitempty"`
	Type    *activity.ActivityType `json:"type,omitempty"`
	Limit   int                    `json:"limit,omitempty"`
	Offset  int                    `json:"offset,omitempty"`
}

// AccountInfo is an account with its decoded state, when it has any.
type AccountInfo struct {
	Account *ledger.Account       `json:"account"`
	Global  *ledger.GlobalLedger  `json:"global,omitempty"`
	Session *ledger.SessionRecord `json:"session,omitempty"`
}

// BalanceResult is the result of getBalance.
type BalanceResult struct {
	Address address.Address `json:"address"`
	Balance uint64          `json:"balance"`
}

// ProgramErrorData is the error data of an ErrProgram response.
type ProgramErrorData struct {
	Code    string          `json:"code"`
	Receipt *ledger.Receipt `json:"receipt,omitempty"`
}
