package mcp

import (
	"time"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/activity"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/runtime"
)

type GetGlobalStateParams struct{}

type GetSessionParams struct {
	Owner string `json:"owner" jsonschema:"wallet address of the session owner, hex encoded"`
}

type GetBalanceParams struct {
	Address string `json:"address" jsonschema:"account address, hex encoded"`
}

type DeriveAddressesParams struct {
	Owner string `json:"owner,omitempty" jsonschema:"optional wallet address; adds its session record address"`
}

type GetRecentActivityParams struct {
	Actor   string `json:"actor,omitempty" jsonschema:"only entries signed by this address"`
	Account string `json:"account,omitempty" jsonschema:"only entries touching this account address"`
	Type    string `json:"type,omitempty" jsonschema:"only entries of this activity type"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of entries, default 50"`
}

type GetSignatureStatusParams struct {
	Signature string `json:"signature" jsonschema:"transaction signature returned on submission"`
}

type SubmitTransactionParams struct {
	Transaction string `json:"transaction" jsonschema:"JSON encoded signed transaction"`
}

type GlobalStateResponse struct {
	Global             *ledger.GlobalLedger     `json:"global"`
	Addresses          address.ProgramAddresses `json:"addresses"`
	VaultBalance       uint64                   `json:"vault_balance"`
	FocusPoolBalance   uint64                   `json:"focus_pool_balance"`
	FailurePoolBalance uint64                   `json:"failure_pool_balance"`
	FocusPoolTokens    string                   `json:"focus_pool_tokens"`
	FailurePoolTokens  string                   `json:"failure_pool_tokens"`
}

type SessionResponse struct {
	*runtime.SessionView
	StakeTokens    string `json:"stake_tokens"`
	CompletedTasks int    `json:"completed_tasks"`
	TotalTasks     int    `json:"total_tasks"`
}

type BalanceResponse struct {
	Address address.Address `json:"address"`
	Balance uint64          `json:"balance"`
	Tokens  string          `json:"tokens"`
}

type DeriveAddressesResponse struct {
	address.ProgramAddresses
	Owner     *address.Address `json:"owner,omitempty"`
	UserState *address.Address `json:"user_state,omitempty"`
}

type ActivityEntryResponse struct {
	Timestamp time.Time             `json:"timestamp"`
	Type      activity.ActivityType `json:"type"`
	Signature string                `json:"signature"`
	Actor     string                `json:"actor"`
	Account   *string               `json:"account,omitempty"`
	Amount    uint64                `json:"amount,omitempty"`
	Summary   string                `json:"summary"`
	Details   string                `json:"details,omitempty"`
}

type RecentActivityResponse struct {
	Entries []ActivityEntryResponse `json:"entries"`
}

type SubmitTransactionResponse struct {
	Receipt *ledger.Receipt `json:"receipt"`
}
