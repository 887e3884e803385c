package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/repository"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var recoveryHints = map[*ledger.Error]string{
	ledger.ErrAlreadyInitialized:      "The ledger exists; read it with get_global_state",
	ledger.ErrNotInitialized:          "Submit an initialize transaction first",
	ledger.ErrStakeTooLow:             "Stake at least 0.01 token (10000000 base units)",
	ledger.ErrInvalidDuration:         "Use a duration between 1 and 480 minutes",
	ledger.ErrInvalidTasks:            "Provide 1 to 20 tasks of at most 128 bytes each",
	ledger.ErrSessionAlreadyActive:    "Complete, fail or claim the current session first",
	ledger.ErrSessionNotActive:        "Check the session status with get_session",
	ledger.ErrSessionStillActive:      "Complete or fail the session before this operation",
	ledger.ErrSessionNotFound:         "Start a session with start_focus_session",
	ledger.ErrNothingToClaim:          "There is no pending payout on this session",
	ledger.ErrTaskIndexOutOfBounds:    "Check the task list with get_session",
	ledger.ErrInsufficientPoolBalance: "Read pool balances with get_global_state",
	ledger.ErrInsufficientFunds:       "Fund the wallet before retrying",
	ledger.ErrInvalidAmount:           "Use a positive amount",
	ledger.ErrUnauthorized:            "Sign with the account the instruction requires",
	ledger.ErrAccountMismatch:         "Derive accounts with derive_addresses",
	ledger.ErrInvalidSignature:        "Re-sign the transaction without modifying it",
	ledger.ErrInvalidArguments:        "Read focusstake://docs/instructions for argument shapes",
	ledger.ErrUnknownInstruction:      "Read focusstake://docs/instructions for instruction names",
	ledger.ErrDuplicateSubmission:     "Already processed; the receipt in details is the outcome",
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var perr *ledger.Error
	switch {
	case errors.As(err, &perr):
		return &APIError{Code: perr.Code, Message: err.Error(), RecoveryHint: recoveryHints[perr]}
	case errors.Is(err, repository.ErrNotFound):
		return &APIError{Code: "NotFound", Message: err.Error(), RecoveryHint: "Check the address or signature"}
	default:
		return nil
	}
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
