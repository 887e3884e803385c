package ledger

import (
	"time"

	"github.com/rpggio/focusstake/internal/address"
)

// Transfer is one balance movement performed by an instruction.
type Transfer struct {
	From   address.Address `cbor:"from" json:"from"`
	To     address.Address `cbor:"to" json:"to"`
	Amount uint64          `cbor:"amount" json:"amount"`
}

// ReceiptStatus is the final outcome of a processed transaction.
type ReceiptStatus string

const (
	ReceiptSucceeded ReceiptStatus = "succeeded"
	ReceiptFailed    ReceiptStatus = "failed"
)

// Receipt records how a transaction signature was processed. Failed
// receipts are kept so a resubmission is answered with the same outcome.
type Receipt struct {
	Signature   string          `json:"signature"`
	Sequence    int64           `json:"sequence"`
	Instruction string          `json:"instruction"`
	Signer      address.Address `json:"signer"`
	Status      ReceiptStatus   `json:"status"`
	ErrorCode   string          `json:"error_code,omitempty"`
	Error       string          `json:"error,omitempty"`
	Transfers   []Transfer      `json:"transfers,omitempty"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// Err returns the program error stored on a failed receipt, or nil.
func (r *Receipt) Err() error {
	if r.Status != ReceiptFailed {
		return nil
	}
	if e := ErrorByCode(r.ErrorCode); e != nil {
		return e
	}
	return &Error{Code: r.ErrorCode, Message: r.Error}
}
