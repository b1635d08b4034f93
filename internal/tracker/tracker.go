// Package tracker holds the live bounded universe of tracked tokens and
// recomputes derived metrics on every ingested event. A single writer lock
// serializes ingestion; reads hand out deep copies so consumers never
// observe a token whose reserves and derived metrics disagree.
package tracker

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"pump-vision/internal/domain"
	"pump-vision/internal/metrics"
	"pump-vision/internal/observability"
	"pump-vision/internal/risk"
	"pump-vision/internal/storage"
)

const persistTimeout = 5 * time.Second

// TokenCreate carries the normalized fields of a creation event.
type TokenCreate struct {
	Address         string
	Name            string
	Symbol          string
	URI             string
	BondingCurveKey string
	Reserves        domain.Reserves
	DevWallet       string
	Timestamp       int64
	// Trades optionally carried by the event; merged into an existing
	// token's window on upsert.
	Trades []*domain.Trade
}

// Options configures a Tracker.
type Options struct {
	// Repository receives best-effort snapshots after each in-memory
	// commit. Nil disables the side-channel.
	Repository storage.TokenRepository
	// Archive receives raw trade ticks. Nil disables archiving.
	Archive storage.TradeArchive
	Logger  *log.Logger
	// Metrics counts ingestion and side-channel activity. Nil disables
	// instrumentation.
	Metrics *observability.Metrics
	// Now overrides the clock, for tests.
	Now func() int64
}

// Tracker is the stateful token aggregate store.
type Tracker struct {
	mu sync.RWMutex

	// tokens is ordered newest-created first and bounded to
	// domain.MaxTrackedTokens; index mirrors it by address.
	tokens []*domain.Token
	index  map[string]*domain.Token

	solUsd float64

	repo    storage.TokenRepository
	archive storage.TradeArchive
	logger  *log.Logger
	obs     *observability.Metrics
	now     func() int64

	subs *subscriberSet
}

// New creates an empty Tracker.
func New(opts Options) *Tracker {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Tracker{
		index:   make(map[string]*domain.Token),
		repo:    opts.Repository,
		archive: opts.Archive,
		logger:  logger,
		obs:     opts.Metrics,
		now:     now,
		subs:    newSubscriberSet(),
	}
}

// SetSolPrice updates the process-wide SOL/USD rate. Historical trades keep
// their frozen prices; only future recomputations see the new rate.
func (tr *Tracker) SetSolPrice(rate float64) {
	if rate <= 0 {
		return
	}
	tr.mu.Lock()
	tr.solUsd = rate
	tr.mu.Unlock()
}

// SolPrice returns the current SOL/USD rate.
func (tr *Tracker) SolPrice() float64 {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.solUsd
}

// UpsertToken ingests a creation event. An unknown address becomes a new
// token marked IsNew at the front of the list; a known address is merged in
// place and moved to the front. The list is truncated to
// domain.MaxTrackedTokens by dropping the tail.
func (tr *Tracker) UpsertToken(ev TokenCreate) {
	if ev.Address == "" {
		tr.logger.Printf("dropping create event without mint address")
		return
	}

	tr.mu.Lock()

	name := ev.Name
	if name == "" {
		name = "Token " + truncate(ev.Address, 8)
	}
	symbol := ev.Symbol
	if symbol == "" {
		symbol = strings.ToUpper(truncate(ev.Address, 6))
	}
	ts := ev.Timestamp
	if ts == 0 {
		ts = tr.now()
	}

	token, exists := tr.index[ev.Address]
	if exists {
		// Merge: metadata overwrite, trade concat bounded, keep the
		// original creation timestamp and dev wallet.
		token.Name = name
		token.Symbol = symbol
		token.BondingCurveKey = ev.BondingCurveKey
		token.Reserves = ev.Reserves
		if ev.URI != "" {
			token.Metadata.URI = ev.URI
		}
		if len(ev.Trades) > 0 {
			token.RecentTrades = append(token.RecentTrades, ev.Trades...)
			if len(token.RecentTrades) > domain.MaxTradesPerToken {
				token.RecentTrades = token.RecentTrades[:domain.MaxTradesPerToken]
			}
		}
		tr.moveToFrontLocked(token)
	} else {
		token = &domain.Token{
			Address:         ev.Address,
			Name:            name,
			Symbol:          symbol,
			BondingCurveKey: ev.BondingCurveKey,
			Reserves:        ev.Reserves,
			DevWallet:       ev.DevWallet,
			CreatedAt:       ts,
			IsNew:           true,
			Metadata:        domain.TokenMetadata{Decimals: 9, URI: ev.URI},
		}
		tr.index[token.Address] = token
		tr.tokens = append([]*domain.Token{token}, tr.tokens...)
		tr.evictLocked()
	}

	tr.recomputeLocked(token)
	snapshot := token.Clone()
	tr.mu.Unlock()

	tr.persistToken(snapshot)
	tr.subs.publish(Update{Kind: UpdateTokenCreated, Token: snapshot})
}

// AddTrade ingests one trade for a known token. Trades for unknown
// addresses are dropped with a log line, never queued. The trade's reserve
// snapshot overwrites the token's reserves verbatim.
func (tr *Tracker) AddTrade(address string, trade *domain.Trade) {
	if address == "" || trade == nil {
		return
	}

	tr.mu.Lock()
	token, ok := tr.index[address]
	if !ok {
		tr.mu.Unlock()
		tr.logger.Printf("dropping trade for unknown token %s", truncate(address, 8))
		return
	}

	token.RecentTrades = append([]*domain.Trade{trade}, token.RecentTrades...)
	if len(token.RecentTrades) > domain.MaxTradesPerToken {
		token.RecentTrades = token.RecentTrades[:domain.MaxTradesPerToken]
	}
	if trade.BondingCurveKey != "" {
		token.BondingCurveKey = trade.BondingCurveKey
	}
	token.Reserves = trade.Reserves

	tr.recomputeLocked(token)
	snapshot := token.Clone()
	tr.mu.Unlock()

	if tr.obs != nil {
		tr.obs.TradesIngested.Inc()
	}
	tr.persistTrade(snapshot, trade)
	tr.subs.publish(Update{Kind: UpdateTrade, Token: snapshot})
}

// UpdateQuote re-prices a token's live USD quote, typically after the
// SOL/USD rate moves. A zero incoming price never clobbers an existing
// nonzero price; that protects against transient bad oracle reads.
func (tr *Tracker) UpdateQuote(address string, priceUsd float64) {
	tr.mu.Lock()
	token, ok := tr.index[address]
	if !ok {
		tr.mu.Unlock()
		return
	}

	if priceUsd == 0 && token.Quote.PriceUsd > 0 {
		tr.mu.Unlock()
		return
	}

	token.Quote.PriceUsd = priceUsd
	if tr.solUsd > 0 {
		token.Quote.PriceSol = priceUsd / tr.solUsd
	} else {
		token.Quote.PriceSol = 0
	}
	snapshot := token.Clone()
	tr.mu.Unlock()

	tr.subs.publish(Update{Kind: UpdateQuote, Token: snapshot})
}

// MarkActive clears the IsNew flag. The tracker never clears it on its own;
// lifecycle reclassification is the caller's decision.
func (tr *Tracker) MarkActive(address string) {
	tr.mu.Lock()
	token, ok := tr.index[address]
	if ok {
		token.IsNew = false
	}
	tr.mu.Unlock()
}

// SetMetadata patches asynchronously fetched metadata into a token. Missing
// tokens are ignored; the fetch may outlive an evicted token.
func (tr *Tracker) SetMetadata(address string, md domain.TokenMetadata) {
	tr.mu.Lock()
	token, ok := tr.index[address]
	if !ok {
		tr.mu.Unlock()
		return
	}
	if md.Decimals == 0 {
		md.Decimals = token.Metadata.Decimals
	}
	if md.URI == "" {
		md.URI = token.Metadata.URI
	}
	token.Metadata = md
	snapshot := token.Clone()
	tr.mu.Unlock()

	tr.persistToken(snapshot)
}

// Get returns a deep copy of the token, or false if untracked.
func (tr *Tracker) Get(address string) (*domain.Token, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	token, ok := tr.index[address]
	if !ok {
		return nil, false
	}
	return token.Clone(), true
}

// List returns deep copies of all tracked tokens, newest-created first.
func (tr *Tracker) List() []*domain.Token {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	out := make([]*domain.Token, len(tr.tokens))
	for i, t := range tr.tokens {
		out[i] = t.Clone()
	}
	return out
}

// ListByBucket returns deep copies of tokens in the given lifecycle bucket,
// preserving list order.
func (tr *Tracker) ListByBucket(bucket domain.Bucket) []*domain.Token {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	var out []*domain.Token
	for _, t := range tr.tokens {
		if t.Bucket() == bucket {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Counts returns the number of tracked tokens per lifecycle bucket.
func (tr *Tracker) Counts() map[domain.Bucket]int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	counts := make(map[domain.Bucket]int)
	for _, t := range tr.tokens {
		if b := t.Bucket(); b != "" {
			counts[b]++
		}
	}
	return counts
}

// Len returns the number of tracked tokens.
func (tr *Tracker) Len() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.tokens)
}

// recomputeLocked refreshes the cached quote, volume and risk for a token.
// Caller holds the write lock.
func (tr *Tracker) recomputeLocked(t *domain.Token) {
	now := tr.now()
	t.Quote = metrics.ComputeQuote(t.Reserves, tr.solUsd)
	t.Volume24h = metrics.ComputeVolume24h(t.RecentTrades, now)
	t.Risk = risk.Score(t, now)
}

// moveToFrontLocked moves an existing token to the head of the list.
func (tr *Tracker) moveToFrontLocked(token *domain.Token) {
	for i, t := range tr.tokens {
		if t == token {
			copy(tr.tokens[1:i+1], tr.tokens[:i])
			tr.tokens[0] = token
			return
		}
	}
}

// evictLocked drops tail tokens beyond capacity. Evicted tokens lose their
// trade history; a later event for the same address re-creates them.
func (tr *Tracker) evictLocked() {
	for len(tr.tokens) > domain.MaxTrackedTokens {
		victim := tr.tokens[len(tr.tokens)-1]
		tr.tokens = tr.tokens[:len(tr.tokens)-1]
		delete(tr.index, victim.Address)
		if tr.obs != nil {
			tr.obs.TokensEvicted.Inc()
		}
	}
}

// persistToken writes a token snapshot through the side-channel without
// blocking ingestion.
func (tr *Tracker) persistToken(snapshot *domain.Token) {
	if tr.repo == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := tr.repo.SaveToken(ctx, snapshot); err != nil {
			tr.countPersistError("repository")
			tr.logger.Printf("persist token %s: %v", truncate(snapshot.Address, 8), err)
		}
	}()
}

// persistTrade writes a trade and the refreshed holder set through the
// side-channel without blocking ingestion.
func (tr *Tracker) persistTrade(snapshot *domain.Token, trade *domain.Trade) {
	if tr.repo == nil && tr.archive == nil {
		return
	}
	tradeCp := *trade
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if tr.repo != nil {
			if err := tr.repo.SaveToken(ctx, snapshot); err != nil {
				tr.countPersistError("repository")
				tr.logger.Printf("persist token %s: %v", truncate(snapshot.Address, 8), err)
			}
			err := tr.repo.AppendTrade(ctx, snapshot.Address, &tradeCp)
			if err != nil && err != storage.ErrDuplicateKey {
				tr.countPersistError("repository")
				tr.logger.Printf("persist trade %s: %v", truncate(tradeCp.Signature, 8), err)
			}
			if err := tr.repo.UpsertHolders(ctx, snapshot.Address, risk.Holders(snapshot)); err != nil {
				tr.countPersistError("repository")
				tr.logger.Printf("persist holders %s: %v", truncate(snapshot.Address, 8), err)
			}
		}
		if tr.archive != nil {
			if err := tr.archive.ArchiveTrades(ctx, snapshot.Address, []*domain.Trade{&tradeCp}); err != nil {
				tr.countPersistError("archive")
				tr.logger.Printf("archive trade %s: %v", truncate(tradeCp.Signature, 8), err)
			}
		}
	}()
}

// countPersistError increments the per-sink error counter when metrics are
// attached.
func (tr *Tracker) countPersistError(sink string) {
	if tr.obs != nil {
		tr.obs.PersistErrors.WithLabelValues(sink).Inc()
	}
}

// truncate shortens an address for logs and display defaults.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
