package ingestion

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"pump-vision/internal/domain"
	"pump-vision/internal/observability"
	"pump-vision/internal/tracker"
)

const defaultFetchTimeout = 10 * time.Second

// MetadataFetcher dereferences a token's off-chain metadata URI.
type MetadataFetcher interface {
	Fetch(ctx context.Context, uri string) (*domain.TokenMetadata, error)
}

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	Tracker *tracker.Tracker
	// Fetcher enriches create events; nil disables enrichment.
	Fetcher MetadataFetcher
	// FetchTimeout bounds each metadata fetch. Zero uses the default.
	FetchTimeout time.Duration
	Metrics      *observability.Metrics
	Logger       *log.Logger
}

// Adapter dispatches parsed stream envelopes into the tracker. Malformed
// and unknown envelopes are dropped with counters; nothing in the dispatch
// path blocks on network I/O.
type Adapter struct {
	book         *tracker.Tracker
	fetcher      MetadataFetcher
	fetchTimeout time.Duration
	obs          *observability.Metrics
	logger       *log.Logger

	lastEvent atomic.Int64 // ms
}

// NewAdapter creates an Adapter.
func NewAdapter(opts AdapterOptions) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	fetchTimeout := opts.FetchTimeout
	if fetchTimeout == 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Adapter{
		book:         opts.Tracker,
		fetcher:      opts.Fetcher,
		fetchTimeout: fetchTimeout,
		obs:          opts.Metrics,
		logger:       logger,
	}
}

// Run consumes raw frames until the channel closes or ctx is cancelled.
func (a *Adapter) Run(ctx context.Context, frames <-chan []byte) {
	for {
		select {
		case data, ok := <-frames:
			if !ok {
				return
			}
			a.Dispatch(data)
		case <-ctx.Done():
			return
		}
	}
}

// Dispatch parses and routes one frame.
func (a *Adapter) Dispatch(data []byte) {
	env, err := ParseEnvelope(data)
	if err != nil {
		a.logger.Printf("dropping malformed event: %v", err)
		a.countDropped("malformed")
		return
	}

	a.lastEvent.Store(time.Now().UnixMilli())

	switch env.Kind {
	case KindCreate:
		a.handleCreate(env.Create)
	case KindTrade:
		a.handleTrade(env.Trade)
	case KindHeartbeat:
		a.countProcessed("heartbeat")
	default:
		a.countDropped("unknown_kind")
	}
}

// LastEventAt returns the timestamp (ms) of the last frame seen, zero if
// none.
func (a *Adapter) LastEventAt() int64 {
	return a.lastEvent.Load()
}

func (a *Adapter) handleCreate(ev *CreateEvent) {
	if !validPubkey(ev.Mint) {
		a.logger.Printf("dropping create with invalid mint %q", ev.Mint)
		a.countDropped("invalid_mint")
		return
	}

	// The feed reports the creating wallet as traderPublicKey. A value
	// that is not an on-curve key is a program account, not a creator.
	devWallet := ev.Creator
	if devWallet != "" && !walletPubkey(devWallet) {
		devWallet = ""
	}

	ts := ev.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	a.book.UpsertToken(tracker.TokenCreate{
		Address:         ev.Mint,
		Name:            ev.Name,
		Symbol:          ev.Symbol,
		URI:             ev.URI,
		BondingCurveKey: ev.BondingCurveKey,
		Reserves:        domain.Reserves{Sol: ev.VSol, Token: ev.VTokens},
		DevWallet:       devWallet,
		Timestamp:       ts,
	})
	a.countProcessed("create")

	if a.fetcher != nil && ev.URI != "" {
		// Best-effort enrichment; never blocks event processing.
		go a.enrich(ev.Mint, ev.URI)
	}
}

func (a *Adapter) handleTrade(ev *TradeEvent) {
	if !validPubkey(ev.Mint) {
		a.logger.Printf("dropping trade with invalid mint %q", ev.Mint)
		a.countDropped("invalid_mint")
		return
	}

	ts := ev.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	// Freeze the USD leg at today's rate; it is never repriced later.
	priceSol := 0.0
	if ev.VTokens > 0 {
		priceSol = ev.VSol / ev.VTokens
	}
	priceUsd := priceSol * a.book.SolPrice()

	a.book.AddTrade(ev.Mint, &domain.Trade{
		Signature:       ev.Signature,
		Timestamp:       ts,
		Side:            ev.Side,
		Trader:          ev.Trader,
		Counterparty:    ev.Counterparty,
		TokenAmount:     ev.TokenAmount,
		SolAmount:       ev.SolAmount,
		BondingCurveKey: ev.BondingCurveKey,
		Reserves:        domain.Reserves{Sol: ev.VSol, Token: ev.VTokens},
		MarketCapSol:    ev.MarketCapSol,
		PriceSol:        priceSol,
		PriceUsd:        priceUsd,
	})
	a.countProcessed(ev.Side)
}

// enrich fetches off-chain metadata and patches it into the tracker when
// it lands. Failures leave the fields empty.
func (a *Adapter) enrich(mint, uri string) {
	ctx, cancel := context.WithTimeout(context.Background(), a.fetchTimeout)
	defer cancel()

	md, err := a.fetcher.Fetch(ctx, uri)
	if err != nil || md == nil {
		if err != nil {
			a.logger.Printf("metadata fetch for %s: %v", truncate(mint, 8), err)
		}
		return
	}
	a.book.SetMetadata(mint, *md)
}

func (a *Adapter) countProcessed(kind string) {
	if a.obs != nil {
		a.obs.EventsProcessed.WithLabelValues(kind).Inc()
	}
}

func (a *Adapter) countDropped(reason string) {
	if a.obs != nil {
		a.obs.EventsDropped.WithLabelValues(reason).Inc()
	}
}

// truncate shortens an address for log lines.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
