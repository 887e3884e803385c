package program

import (
	"time"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/activity"
	"github.com/rpggio/focusstake/internal/domain/ledger"
)

// Invocation is one instruction call as seen by the program. Accounts maps
// the declared role names to addresses.
type Invocation struct {
	Store    AccountStore
	Program  address.Address
	Signer   address.Address
	Accounts map[string]address.Address
	Now      time.Time
}

// InitializeArgs are the arguments of initialize.
type InitializeArgs struct {
	CompletionMode ledger.CompletionMode `json:"completion_mode,omitempty"`
}

// StartArgs are the arguments of start_focus_session.
type StartArgs struct {
	StakeAmount     uint64        `json:"stake_amount"`
	DurationMinutes uint64        `json:"duration_minutes"`
	Tasks           []ledger.Task `json:"tasks"`
}

// UpdateTaskArgs are the arguments of update_task.
type UpdateTaskArgs struct {
	TaskIndex uint32 `json:"task_index"`
	Completed bool   `json:"completed"`
}

// WithdrawArgs are the arguments of the pool withdrawals.
type WithdrawArgs struct {
	Amount uint64 `json:"amount"`
}

// Outcome is the effect of a successful instruction.
type Outcome struct {
	Transfers []ledger.Transfer
	Events    []activity.ActivityEntry
}
