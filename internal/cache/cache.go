// Package cache keeps processed-transaction receipts close to the RPC
// surface. Receipts never change once written, so entries only expire.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/repository"
)

// ReceiptCache stores receipts by signature. Get returns nil, nil on a miss.
type ReceiptCache interface {
	Get(ctx context.Context, signature string) (*ledger.Receipt, error)
	Put(ctx context.Context, receipt *ledger.Receipt) error
}

// ReceiptReader is the durable receipt source behind the cache.
type ReceiptReader interface {
	Get(ctx context.Context, signature string) (*ledger.Receipt, error)
}

// Statuses answers signature status lookups from the cache, falling back
// to the receipt store.
type Statuses struct {
	cache    ReceiptCache
	receipts ReceiptReader
	logger   *slog.Logger
}

// NewStatuses creates a status lookup.
func NewStatuses(cache ReceiptCache, receipts ReceiptReader, logger *slog.Logger) *Statuses {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Statuses{cache: cache, receipts: receipts, logger: logger}
}

// Lookup returns the receipt of signature, or repository.ErrNotFound.
func (s *Statuses) Lookup(ctx context.Context, signature string) (*ledger.Receipt, error) {
	if r, err := s.cache.Get(ctx, signature); err != nil {
		s.logger.Warn("receipt cache read failed", "error", err)
	} else if r != nil {
		return r, nil
	}

	r, err := s.receipts.Get(ctx, signature)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("loading receipt: %w", err)
	}
	s.Remember(ctx, r)
	return r, nil
}

// Remember stores a receipt that was just written. Cache failures are
// logged, never returned.
func (s *Statuses) Remember(ctx context.Context, r *ledger.Receipt) {
	if err := s.cache.Put(ctx, r); err != nil {
		s.logger.Warn("receipt cache write failed", "signature", r.Signature, "error", err)
	}
}
