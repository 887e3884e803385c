package ledger

import (
	"time"

	"github.com/rpggio/focusstake/internal/address"
)

// Protocol limits.
const (
	// BaseUnitsPerToken is the number of base units in one whole token.
	BaseUnitsPerToken uint64 = 1_000_000_000
	// MinStake is the smallest accepted stake, 0.01 token.
	MinStake uint64 = 10_000_000
	// MinDurationMinutes and MaxDurationMinutes bound a session length.
	MinDurationMinutes uint64 = 1
	MaxDurationMinutes uint64 = 480
	// MaxTasks bounds the checklist fixed at session start.
	MaxTasks = 20
	// MaxTaskDescriptionBytes bounds a single task description.
	MaxTaskDescriptionBytes = 128
	// DefaultRecordDeposit is held on a session record while it exists.
	DefaultRecordDeposit uint64 = 2_000_000
)

// AccountKind classifies an account row.
type AccountKind string

const (
	KindWallet  AccountKind = "wallet"
	KindGlobal  AccountKind = "global_state"
	KindCustody AccountKind = "custody"
	KindSession AccountKind = "user_state"
)

// Account is a balance holder with optional structured data.
type Account struct {
	Address   address.Address `json:"address"`
	Kind      AccountKind     `json:"kind"`
	Owner     address.Address `json:"owner"`
	Balance   uint64          `json:"balance"`
	Data      []byte          `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CompletionMode selects the completion lifecycle for the whole ledger.
type CompletionMode string

const (
	// CompletionImmediate pays out and closes the record on completion.
	CompletionImmediate CompletionMode = "immediate"
	// CompletionDeferred parks the payout until claim_rewards.
	CompletionDeferred CompletionMode = "deferred"
)

// Valid reports whether m is a known mode.
func (m CompletionMode) Valid() bool {
	return m == CompletionImmediate || m == CompletionDeferred
}

// GlobalLedger is the singleton program state.
type GlobalLedger struct {
	Authority      address.Address `cbor:"authority" json:"authority"`
	FocusPool      uint64          `cbor:"focus_pool" json:"focus_pool"`
	FailurePool    uint64          `cbor:"failure_pool" json:"failure_pool"`
	TotalSessions  uint64          `cbor:"total_sessions" json:"total_sessions"`
	Vault          address.Address `cbor:"vault" json:"vault"`
	FocusPoolVault address.Address `cbor:"focus_pool_vault" json:"focus_pool_vault"`
	FailureVault   address.Address `cbor:"failure_pool_vault" json:"failure_pool_vault"`
	CompletionMode CompletionMode  `cbor:"completion_mode" json:"completion_mode"`
	RecordDeposit  uint64          `cbor:"record_deposit" json:"record_deposit"`
}

// SessionStatus is the lifecycle state of a stored session record.
// Closed records are deleted, so they have no status.
type SessionStatus string

const (
	StatusActive        SessionStatus = "active"
	StatusAwaitingClaim SessionStatus = "awaiting_claim"
)

// Task is one checklist entry.
type Task struct {
	Description string `cbor:"description" json:"description"`
	Completed   bool   `cbor:"completed" json:"completed"`
}

// SessionRecord is the per-user focus session.
type SessionRecord struct {
	Owner           address.Address `cbor:"owner" json:"user"`
	Status          SessionStatus   `cbor:"status" json:"status"`
	StakeAmount     uint64          `cbor:"stake_amount" json:"stake_amount"`
	StartTime       int64           `cbor:"start_time" json:"start_time"`
	DurationMinutes uint64          `cbor:"duration_minutes" json:"duration_minutes"`
	PendingBalance  uint64          `cbor:"pending_balance" json:"pending_balance"`
	Tasks           []Task          `cbor:"tasks" json:"tasks"`
}

// IsActive reports whether the session is still counting down or
// awaiting its completion signal.
func (s *SessionRecord) IsActive() bool {
	return s.Status == StatusActive
}

// EndsAt returns the wall-clock time the committed duration elapses.
func (s *SessionRecord) EndsAt() time.Time {
	return time.Unix(s.StartTime, 0).Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// Remaining returns the time left at now, never negative.
func (s *SessionRecord) Remaining(now time.Time) time.Duration {
	left := s.EndsAt().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// CompletedTasks counts tasks marked complete.
func (s *SessionRecord) CompletedTasks() int {
	n := 0
	for _, t := range s.Tasks {
		if t.Completed {
			n++
		}
	}
	return n
}
