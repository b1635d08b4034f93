// Package memory provides in-memory repository implementations used by
// tests and by the server's --use-memory mode.
package memory

import (
	"context"
	"sync"

	"pump-vision/internal/domain"
	"pump-vision/internal/risk"
	"pump-vision/internal/storage"
)

// TokenRepository is an in-memory implementation of storage.TokenRepository.
type TokenRepository struct {
	mu      sync.RWMutex
	tokens  map[string]*domain.Token
	trades  map[string][]*domain.Trade    // keyed by token address
	sigs    map[string]struct{}           // seen trade signatures
	holders map[string]map[string]float64 // token address -> wallet -> balance
}

// NewTokenRepository creates a new in-memory token repository.
func NewTokenRepository() *TokenRepository {
	return &TokenRepository{
		tokens:  make(map[string]*domain.Token),
		trades:  make(map[string][]*domain.Trade),
		sigs:    make(map[string]struct{}),
		holders: make(map[string]map[string]float64),
	}
}

var _ storage.TokenRepository = (*TokenRepository)(nil)

// SaveToken upserts the token keyed on its address.
func (r *TokenRepository) SaveToken(_ context.Context, t *domain.Token) error {
	if t == nil || t.Address == "" {
		return storage.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[t.Address] = t.Clone()
	return nil
}

// AppendTrade inserts one trade, deduplicating on signature.
func (r *TokenRepository) AppendTrade(_ context.Context, tokenAddress string, tr *domain.Trade) error {
	if tokenAddress == "" || tr == nil || tr.Signature == "" {
		return storage.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, seen := r.sigs[tr.Signature]; seen {
		return storage.ErrDuplicateKey
	}
	r.sigs[tr.Signature] = struct{}{}

	cp := *tr
	r.trades[tokenAddress] = append(r.trades[tokenAddress], &cp)
	return nil
}

// UpsertHolders replaces the holder set for a token.
func (r *TokenRepository) UpsertHolders(_ context.Context, tokenAddress string, holders []risk.Holder) error {
	if tokenAddress == "" {
		return storage.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set := make(map[string]float64, len(holders))
	for _, h := range holders {
		if h.Balance > 0 {
			set[h.Wallet] = h.Balance
		}
	}
	r.holders[tokenAddress] = set
	return nil
}

// GetToken retrieves a persisted token snapshot. Returns ErrNotFound if the
// address was never saved.
func (r *TokenRepository) GetToken(_ context.Context, address string) (*domain.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

// TradesFor returns the appended trades for a token in insertion order.
func (r *TokenRepository) TradesFor(_ context.Context, address string) ([]*domain.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.trades[address]
	out := make([]*domain.Trade, len(src))
	for i, tr := range src {
		cp := *tr
		out[i] = &cp
	}
	return out, nil
}

// HoldersFor returns the stored holder balances for a token.
func (r *TokenRepository) HoldersFor(_ context.Context, address string) (map[string]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.holders[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out, nil
}
