package postgres

import (
	"context"
	"fmt"
	"time"

	"pump-vision/internal/domain"
	"pump-vision/internal/risk"
	"pump-vision/internal/storage"
)

// TokenRepository implements storage.TokenRepository using PostgreSQL.
type TokenRepository struct {
	pool *Pool
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(pool *Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

var _ storage.TokenRepository = (*TokenRepository)(nil)

// SaveToken upserts the token snapshot keyed on its address.
func (r *TokenRepository) SaveToken(ctx context.Context, t *domain.Token) error {
	if t == nil || t.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tokens (
			address, symbol, name, bonding_curve_key, dev_wallet,
			sol_reserve, token_reserve,
			price_sol, price_usd, market_cap_sol, market_cap_usd,
			volume_24h_sol, volume_24h_usd, total_risk, is_new,
			image_url, website_url, twitter_url, telegram_url,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
		ON CONFLICT (address) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			bonding_curve_key = EXCLUDED.bonding_curve_key,
			sol_reserve = EXCLUDED.sol_reserve,
			token_reserve = EXCLUDED.token_reserve,
			price_sol = EXCLUDED.price_sol,
			price_usd = EXCLUDED.price_usd,
			market_cap_sol = EXCLUDED.market_cap_sol,
			market_cap_usd = EXCLUDED.market_cap_usd,
			volume_24h_sol = EXCLUDED.volume_24h_sol,
			volume_24h_usd = EXCLUDED.volume_24h_usd,
			total_risk = EXCLUDED.total_risk,
			is_new = EXCLUDED.is_new,
			image_url = EXCLUDED.image_url,
			website_url = EXCLUDED.website_url,
			twitter_url = EXCLUDED.twitter_url,
			telegram_url = EXCLUDED.telegram_url,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		t.Address,
		t.Symbol,
		t.Name,
		t.BondingCurveKey,
		t.DevWallet,
		t.Reserves.Sol,
		t.Reserves.Token,
		t.Quote.PriceSol,
		t.Quote.PriceUsd,
		t.Quote.MarketCapSol,
		t.Quote.MarketCapUsd,
		t.Volume24h.Sol,
		t.Volume24h.Usd,
		t.Risk.TotalRisk,
		t.IsNew,
		t.Metadata.ImageURL,
		t.Metadata.Website,
		t.Metadata.Twitter,
		t.Metadata.Telegram,
		t.CreatedAt,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// AppendTrade inserts one trade. Returns ErrDuplicateKey when the signature
// was already recorded.
func (r *TokenRepository) AppendTrade(ctx context.Context, tokenAddress string, tr *domain.Trade) error {
	if tokenAddress == "" || tr == nil || tr.Signature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_trades (
			token_address, tx_signature, timestamp, side, trader,
			counterparty, token_amount, sol_amount, price_sol, price_usd
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		tokenAddress,
		tr.Signature,
		tr.Timestamp,
		tr.Side,
		tr.Trader,
		tr.Counterparty,
		tr.TokenAmount,
		tr.SolAmount,
		tr.PriceSol,
		tr.PriceUsd,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("append trade: %w", err)
	}
	return nil
}

// UpsertHolders replaces the holder set derived from the current trade
// window.
func (r *TokenRepository) UpsertHolders(ctx context.Context, tokenAddress string, holders []risk.Holder) error {
	if tokenAddress == "" {
		return storage.ErrInvalidInput
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM token_holders WHERE token_address = $1`, tokenAddress); err != nil {
		return fmt.Errorf("clear holders: %w", err)
	}

	query := `
		INSERT INTO token_holders (token_address, wallet_address, balance, percentage, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	now := time.Now().UnixMilli()
	for _, h := range holders {
		if h.Balance <= 0 {
			continue
		}
		if _, err := tx.Exec(ctx, query, tokenAddress, h.Wallet, h.Balance, h.Percentage, now); err != nil {
			return fmt.Errorf("upsert holder %s: %w", h.Wallet, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit holders: %w", err)
	}
	return nil
}

// GetToken retrieves a persisted token snapshot by address.
func (r *TokenRepository) GetToken(ctx context.Context, address string) (*domain.Token, error) {
	query := `
		SELECT address, symbol, name, bonding_curve_key, dev_wallet,
		       sol_reserve, token_reserve,
		       price_sol, price_usd, market_cap_sol, market_cap_usd,
		       volume_24h_sol, volume_24h_usd, total_risk, is_new,
		       image_url, website_url, twitter_url, telegram_url, created_at
		FROM tokens WHERE address = $1
	`

	var t domain.Token
	err := r.pool.QueryRow(ctx, query, address).Scan(
		&t.Address,
		&t.Symbol,
		&t.Name,
		&t.BondingCurveKey,
		&t.DevWallet,
		&t.Reserves.Sol,
		&t.Reserves.Token,
		&t.Quote.PriceSol,
		&t.Quote.PriceUsd,
		&t.Quote.MarketCapSol,
		&t.Quote.MarketCapUsd,
		&t.Volume24h.Sol,
		&t.Volume24h.Usd,
		&t.Risk.TotalRisk,
		&t.IsNew,
		&t.Metadata.ImageURL,
		&t.Metadata.Website,
		&t.Metadata.Twitter,
		&t.Metadata.Telegram,
		&t.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &t, nil
}

// TradeCount returns the number of persisted trades for a token.
func (r *TokenRepository) TradeCount(ctx context.Context, address string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM token_trades WHERE token_address = $1`, address,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return n, nil
}
