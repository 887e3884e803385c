package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/codec"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/repository"
)

// ReceiptRepository implements repository.ReceiptRepository for SQLite
type ReceiptRepository struct {
	db querier
}

// NewReceiptRepository creates a new ReceiptRepository
func NewReceiptRepository(db *DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// Create stores a receipt and assigns its sequence number. A receipt for
// an already recorded signature returns repository.ErrConflict.
func (r *ReceiptRepository) Create(ctx context.Context, receipt *ledger.Receipt) error {
	if receipt.Signature == "" {
		return fmt.Errorf("%w: receipt without signature", repository.ErrInvalidInput)
	}
	if receipt.ProcessedAt.IsZero() {
		receipt.ProcessedAt = time.Now().UTC()
	}
	var transfers []byte
	if len(receipt.Transfers) > 0 {
		var err error
		if transfers, err = codec.Marshal(receipt.Transfers); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO receipts (signature, instruction, signer, status, error_code, error, transfers, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		receipt.Signature,
		receipt.Instruction,
		receipt.Signer.String(),
		receipt.Status,
		nullString(receipt.ErrorCode),
		nullString(receipt.Error),
		transfers,
		receipt.ProcessedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create receipt: %w", err)
	}
	if seq, err := result.LastInsertId(); err == nil {
		receipt.Sequence = seq
	}
	return nil
}

// Get retrieves the receipt of a signature
func (r *ReceiptRepository) Get(ctx context.Context, signature string) (*ledger.Receipt, error) {
	query := `
		SELECT sequence, signature, instruction, signer, status, error_code, error, transfers, processed_at
		FROM receipts
		WHERE signature = ?
	`

	var (
		receipt   ledger.Receipt
		signer    string
		errorCode sql.NullString
		errorMsg  sql.NullString
		transfers []byte
	)
	err := r.db.QueryRowContext(ctx, query, signature).Scan(
		&receipt.Sequence,
		&receipt.Signature,
		&receipt.Instruction,
		&signer,
		&receipt.Status,
		&errorCode,
		&errorMsg,
		&transfers,
		&receipt.ProcessedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	if receipt.Signer, err = address.Parse(signer); err != nil {
		return nil, fmt.Errorf("failed to parse receipt signer: %w", err)
	}
	receipt.ErrorCode = errorCode.String
	receipt.Error = errorMsg.String
	if len(transfers) > 0 {
		if err := codec.Unmarshal(transfers, &receipt.Transfers); err != nil {
			return nil, err
		}
	}
	return &receipt, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
