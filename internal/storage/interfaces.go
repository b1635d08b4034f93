// Package storage defines the persistence side-channel interfaces the
// tracker writes through after committing in-memory state. All writes are
// best-effort: callers log failures and never block or fail ingestion on
// them.
package storage

import (
	"context"

	"pump-vision/internal/domain"
	"pump-vision/internal/risk"
)

// TokenRepository persists token snapshots, trades and holder positions.
type TokenRepository interface {
	// SaveToken upserts the token keyed on its address.
	SaveToken(ctx context.Context, t *domain.Token) error

	// AppendTrade inserts one trade. Returns ErrDuplicateKey when the
	// signature was already recorded; callers treat that as an idempotent
	// no-op.
	AppendTrade(ctx context.Context, tokenAddress string, tr *domain.Trade) error

	// UpsertHolders replaces the holder set derived from the current
	// trade window.
	UpsertHolders(ctx context.Context, tokenAddress string, holders []risk.Holder) error
}

// TradeArchive is an append-only sink for raw trade ticks.
type TradeArchive interface {
	// ArchiveTrades appends a batch of trades for a token.
	ArchiveTrades(ctx context.Context, tokenAddress string, trades []*domain.Trade) error
}
