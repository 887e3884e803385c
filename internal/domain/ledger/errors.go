package ledger

import "errors"

// Error is a program error with a stable code that survives the wire.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var registry = map[string]*Error{}

func newError(code, message string) *Error {
	e := &Error{Code: code, Message: message}
	registry[code] = e
	return e
}

var (
	// ErrAlreadyInitialized indicates the global ledger already exists.
	ErrAlreadyInitialized = newError("AlreadyInitialized", "ledger already initialized")
	// ErrNotInitialized indicates the global ledger has not been created.
	ErrNotInitialized = newError("NotInitialized", "ledger not initialized")
	// ErrStakeTooLow indicates a stake below MinStake.
	ErrStakeTooLow = newError("StakeTooLow", "stake amount below minimum")
	// ErrInvalidDuration indicates a duration outside 1..MaxDurationMinutes.
	ErrInvalidDuration = newError("InvalidDuration", "duration must be between 1 and 480 minutes")
	// ErrInvalidTasks indicates an empty, oversized or malformed task list.
	ErrInvalidTasks = newError("InvalidTasks", "tasks must contain 1 to 20 entries")
	// ErrSessionAlreadyActive indicates the owner already has a session record.
	ErrSessionAlreadyActive = newError("SessionAlreadyActive", "a session is already active")
	// ErrSessionNotActive indicates the session is not in the active state.
	ErrSessionNotActive = newError("SessionNotActive", "session is not active")
	// ErrSessionStillActive indicates an operation that requires an ended session.
	ErrSessionStillActive = newError("SessionStillActive", "session is still active")
	// ErrSessionNotFound indicates no session record exists for the owner.
	ErrSessionNotFound = newError("SessionNotFound", "session not found")
	// ErrNothingToClaim indicates a session with no pending payout.
	ErrNothingToClaim = newError("NothingToClaim", "no pending balance to claim")
	// ErrTaskIndexOutOfBounds indicates an update to a task that does not exist.
	ErrTaskIndexOutOfBounds = newError("TaskIndexOutOfBounds", "task index out of bounds")
	// ErrInsufficientPoolBalance indicates a withdrawal larger than the pool.
	ErrInsufficientPoolBalance = newError("InsufficientPoolBalance", "insufficient pool balance")
	// ErrInsufficientFunds indicates a payer that cannot cover a transfer.
	ErrInsufficientFunds = newError("InsufficientFunds", "insufficient funds")
	// ErrInvalidAmount indicates a zero or overflowing amount.
	ErrInvalidAmount = newError("InvalidAmount", "invalid amount")
	// ErrUnauthorized indicates the signer may not perform the instruction.
	ErrUnauthorized = newError("Unauthorized", "unauthorized")
	// ErrAccountMismatch indicates a declared account is not the derived one.
	ErrAccountMismatch = newError("AccountMismatch", "account does not match derived address")
	// ErrInvalidSignature indicates a transaction whose signature does not verify.
	ErrInvalidSignature = newError("InvalidSignature", "invalid transaction signature")
	// ErrInvalidArguments indicates instruction arguments that fail the interface schema.
	ErrInvalidArguments = newError("InvalidArguments", "invalid instruction arguments")
	// ErrUnknownInstruction indicates an instruction name the program does not define.
	ErrUnknownInstruction = newError("UnknownInstruction", "unknown instruction")
	// ErrDuplicateSubmission indicates a transaction that was already processed.
	ErrDuplicateSubmission = newError("DuplicateSubmission", "transaction already processed")
)

// ErrorByCode returns the program error for code, or nil.
func ErrorByCode(code string) *Error {
	return registry[code]
}

// CodeOf returns the program error code carried by err, or "".
func CodeOf(err error) string {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ""
}
