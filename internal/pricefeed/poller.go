// Package pricefeed polls an exchange ticker for the SOL/USD rate.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"pump-vision/internal/observability"
)

const (
	// DefaultTickerURL is the Binance spot ticker for SOL/USDT.
	DefaultTickerURL = "https://api.binance.com/api/v3/ticker/price?symbol=SOLUSDT"

	defaultInterval = 10 * time.Second
	requestTimeout  = 5 * time.Second
)

// RateSink receives the polled rate. *tracker.Tracker satisfies it.
type RateSink interface {
	SetSolPrice(rate float64)
}

// Options configures a Poller.
type Options struct {
	// URL of the ticker endpoint. Empty uses DefaultTickerURL.
	URL string
	// Interval between polls. Zero uses 10s.
	Interval time.Duration
	Sink     RateSink
	Client   *http.Client
	Metrics  *observability.Metrics
	Logger   *log.Logger
}

// Poller periodically refreshes the SOL/USD rate. Failed polls are logged
// and skipped; the sink keeps its previous rate.
type Poller struct {
	url      string
	interval time.Duration
	sink     RateSink
	client   *http.Client
	obs      *observability.Metrics
	logger   *log.Logger
}

// tickerResponse matches the Binance spot ticker payload. The price comes
// back as a decimal string.
type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// NewPoller creates a Poller.
func NewPoller(opts Options) *Poller {
	url := opts.URL
	if url == "" {
		url = DefaultTickerURL
	}
	interval := opts.Interval
	if interval == 0 {
		interval = defaultInterval
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		url:      url,
		interval: interval,
		sink:     opts.Sink,
		client:   client,
		obs:      opts.Metrics,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	p.pollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// pollOnce fetches the rate and pushes it into the sink. Errors keep the
// previous rate.
func (p *Poller) pollOnce(ctx context.Context) {
	rate, err := p.Fetch(ctx)
	if err != nil {
		p.logger.Printf("sol price poll: %v", err)
		return
	}

	p.sink.SetSolPrice(rate)
	if p.obs != nil {
		p.obs.SolPriceUsd.Set(rate)
	}
}

// Fetch performs a single ticker request and parses the rate.
func (p *Poller) Fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return 0, fmt.Errorf("build ticker request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch ticker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch ticker: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return 0, fmt.Errorf("read ticker body: %w", err)
	}

	var tick tickerResponse
	if err := json.Unmarshal(body, &tick); err != nil {
		return 0, fmt.Errorf("parse ticker: %w", err)
	}

	rate, err := strconv.ParseFloat(tick.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ticker price %q: %w", tick.Price, err)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("non-positive ticker price %v", rate)
	}
	return rate, nil
}
