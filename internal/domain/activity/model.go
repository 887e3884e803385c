package activity

import "time"

// ActivityType represents the type of program event
type ActivityType string

const (
	TypeLedgerInitialized ActivityType = "ledger_initialized"
	TypeSessionStarted    ActivityType = "session_started"
	TypeSessionCompleted  ActivityType = "session_completed"
	TypeSessionFailed     ActivityType = "session_failed"
	TypeRewardsClaimed    ActivityType = "rewards_claimed"
	TypeTaskUpdated       ActivityType = "task_updated"
	TypePoolWithdrawn     ActivityType = "pool_withdrawn"
	TypeAirdrop           ActivityType = "airdrop"
)

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	Signature    string       `json:"signature,omitempty"`
	Actor        string       `json:"actor"`
	Account      *string      `json:"account,omitempty"`
	ActivityType ActivityType `json:"type"`
	Amount       uint64       `json:"amount"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
}
