// Package metadata dereferences off-chain token metadata URIs.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pump-vision/internal/domain"
)

const (
	// defaultGateway resolves ipfs:// URIs over HTTP.
	defaultGateway = "https://ipfs.io/ipfs/"

	// maxBodyBytes bounds metadata documents; anything larger is hostile
	// or broken.
	maxBodyBytes = 1 << 20

	defaultTimeout = 10 * time.Second
)

// document is the wire shape of pump.fun-style token metadata. Social links
// appear under either the plain or the *_url key depending on the minting
// client.
type document struct {
	Image       string `json:"image"`
	Website     string `json:"website"`
	WebsiteURL  string `json:"website_url"`
	Twitter     string `json:"twitter"`
	TwitterURL  string `json:"twitter_url"`
	Telegram    string `json:"telegram"`
	TelegramURL string `json:"telegram_url"`
	Decimals    int    `json:"decimals"`
}

// Fetcher resolves token metadata documents over HTTP, rewriting ipfs://
// references through a public gateway.
type Fetcher struct {
	client  *http.Client
	gateway string
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithClient overrides the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithGateway overrides the IPFS gateway base URL.
func WithGateway(gateway string) Option {
	return func(f *Fetcher) { f.gateway = gateway }
}

// NewFetcher creates a Fetcher with a default client and gateway.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{Timeout: defaultTimeout},
		gateway: defaultGateway,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch dereferences uri and returns the parsed metadata. The returned URI
// is the original, not the gateway-rewritten form.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (*domain.TokenMetadata, error) {
	if uri == "" {
		return nil, fmt.Errorf("empty metadata uri")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.resolve(uri), nil)
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch metadata: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read metadata body: %w", err)
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	return &domain.TokenMetadata{
		Decimals: doc.Decimals,
		URI:      uri,
		ImageURL: f.resolve(doc.Image),
		Website:  firstNonEmpty(doc.WebsiteURL, doc.Website),
		Twitter:  firstNonEmpty(doc.TwitterURL, doc.Twitter),
		Telegram: firstNonEmpty(doc.TelegramURL, doc.Telegram),
	}, nil
}

// resolve rewrites ipfs:// references through the gateway; everything else
// passes through untouched.
func (f *Fetcher) resolve(uri string) string {
	if strings.HasPrefix(uri, "ipfs://") {
		return f.gateway + strings.TrimPrefix(uri, "ipfs://")
	}
	return uri
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
