package clickhouse

import (
	"context"
	"fmt"

	"pump-vision/internal/domain"
	"pump-vision/internal/storage"
)

// TradeArchive implements storage.TradeArchive using ClickHouse. The
// archive is append-only and best-effort: MergeTree does not enforce
// uniqueness and duplicate ticks are tolerated downstream.
type TradeArchive struct {
	conn *Conn
}

// NewTradeArchive creates a new TradeArchive.
func NewTradeArchive(conn *Conn) *TradeArchive {
	return &TradeArchive{conn: conn}
}

var _ storage.TradeArchive = (*TradeArchive)(nil)

// ArchiveTrades appends a batch of trades for a token.
func (a *TradeArchive) ArchiveTrades(ctx context.Context, tokenAddress string, trades []*domain.Trade) error {
	if tokenAddress == "" {
		return storage.ErrInvalidInput
	}
	if len(trades) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO trade_ticks (
			token_address, tx_signature, timestamp, side, trader,
			token_amount, sol_amount, price_sol, price_usd
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		err = batch.Append(
			tokenAddress, t.Signature, t.Timestamp, t.Side, t.Trader,
			t.TokenAmount, t.SolAmount, t.PriceSol, t.PriceUsd,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// TickCount returns the number of archived ticks for a token.
func (a *TradeArchive) TickCount(ctx context.Context, tokenAddress string) (uint64, error) {
	var n uint64
	err := a.conn.QueryRow(ctx,
		`SELECT count() FROM trade_ticks WHERE token_address = ?`, tokenAddress,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ticks: %w", err)
	}
	return n, nil
}
