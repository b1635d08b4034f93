// Package api serves the dashboard read API over HTTP. All responses are
// built from deep-copied tracker snapshots, so handlers never block
// ingestion.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pump-vision/internal/domain"
	"pump-vision/internal/observability"
	"pump-vision/internal/risk"
	"pump-vision/internal/tracker"
)

// defaultTradeLimit bounds the trades returned on the detail endpoint
// unless the caller asks for more.
const defaultTradeLimit = 100

// Options configures a Server.
type Options struct {
	Tracker *tracker.Tracker
	Metrics *observability.Metrics
	Logger  *log.Logger
	// LastEventAt reports the timestamp (ms) of the last stream event, for
	// the status endpoint. Nil is allowed.
	LastEventAt func() int64
	// Connected reports whether the upstream stream is connected. Nil means
	// no stream is attached and the status reports running.
	Connected func() bool
}

// Server exposes the tracked token universe as JSON.
type Server struct {
	tracker     *tracker.Tracker
	obs         *observability.Metrics
	logger      *log.Logger
	lastEventAt func() int64
	connected   func() bool
	started     time.Time
}

// NewServer creates an API server around a tracker.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		tracker:     opts.Tracker,
		obs:         opts.Metrics,
		logger:      logger,
		lastEventAt: opts.LastEventAt,
		connected:   opts.Connected,
		started:     time.Now(),
	}
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if s.obs != nil {
		mux.Handle("/metrics", s.obs.Handler())
	}

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/tokens", s.handleTokens)
	mux.HandleFunc("/api/tokens/", s.handleTokenDetail)

	return mux
}

// TokenSummary is the list-endpoint view of a token.
type TokenSummary struct {
	Address      string  `json:"address"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Bucket       string  `json:"bucket"`
	PriceSol     float64 `json:"price_sol"`
	PriceUsd     float64 `json:"price_usd"`
	MarketCapSol float64 `json:"market_cap_sol"`
	MarketCapUsd float64 `json:"market_cap_usd"`
	Volume24hSol float64 `json:"volume_24h_sol"`
	Volume24hUsd float64 `json:"volume_24h_usd"`
	TradeCount   int     `json:"trade_count"`
	TotalRisk    float64 `json:"total_risk"`
	CreatedAt    int64   `json:"created_at"`
	ImageURL     string  `json:"image_url,omitempty"`
}

// TradeView is the JSON view of a single trade.
type TradeView struct {
	Signature   string  `json:"signature"`
	Timestamp   int64   `json:"timestamp"`
	Side        string  `json:"side"`
	Trader      string  `json:"trader"`
	TokenAmount float64 `json:"token_amount"`
	SolAmount   float64 `json:"sol_amount"`
	PriceSol    float64 `json:"price_sol"`
	PriceUsd    float64 `json:"price_usd"`
}

// HolderView is the JSON view of one reconstructed holder.
type HolderView struct {
	Wallet     string  `json:"wallet"`
	Balance    float64 `json:"balance"`
	Percentage float64 `json:"percentage"`
}

// RiskView is the JSON view of the risk breakdown.
type RiskView struct {
	HoldersRisk   float64 `json:"holders_risk"`
	VolumeRisk    float64 `json:"volume_risk"`
	DevWalletRisk float64 `json:"dev_wallet_risk"`
	InsiderRisk   float64 `json:"insider_risk"`
	TotalRisk     float64 `json:"total_risk"`
}

// TokenDetail is the detail-endpoint view of a token.
type TokenDetail struct {
	TokenSummary
	BondingCurveKey string       `json:"bonding_curve_key,omitempty"`
	DevWallet       string       `json:"dev_wallet,omitempty"`
	ReservesSol     float64      `json:"reserves_sol"`
	ReservesToken   float64      `json:"reserves_token"`
	Risk            RiskView     `json:"risk"`
	URI             string       `json:"uri,omitempty"`
	Website         string       `json:"website,omitempty"`
	Twitter         string       `json:"twitter,omitempty"`
	Telegram        string       `json:"telegram,omitempty"`
	Trades          []TradeView  `json:"trades"`
	Holders         []HolderView `json:"holders"`
}

// StatusResponse is the JSON response for /api/status. Status stays
// "disconnected" once the stream client exhausts its reconnect budget,
// so the UI can surface the dead feed.
type StatusResponse struct {
	Status        string         `json:"status"`
	Connected     bool           `json:"connected"`
	Uptime        string         `json:"uptime"`
	TrackedTokens int            `json:"tracked_tokens"`
	BucketCounts  map[string]int `json:"bucket_counts"`
	SolPriceUsd   float64        `json:"sol_price_usd"`
	LastEventAt   int64          `json:"last_event_at,omitempty"`
}

// handleTokens serves GET /api/tokens with an optional bucket filter.
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var tokens []*domain.Token
	if raw := r.URL.Query().Get("bucket"); raw != "" {
		bucket := domain.Bucket(strings.ToUpper(raw))
		switch bucket {
		case domain.BucketNew, domain.BucketAboutToGraduate, domain.BucketGraduated:
			tokens = s.tracker.ListByBucket(bucket)
		default:
			http.Error(w, "unknown bucket: "+raw, http.StatusBadRequest)
			return
		}
	} else {
		tokens = s.tracker.List()
	}

	out := make([]TokenSummary, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, summarize(t))
	}
	writeJSON(w, out)
}

// handleTokenDetail serves GET /api/tokens/{address}.
func (s *Server) handleTokenDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	address := strings.TrimPrefix(r.URL.Path, "/api/tokens/")
	if address == "" || strings.Contains(address, "/") {
		http.NotFound(w, r)
		return
	}

	token, ok := s.tracker.Get(address)
	if !ok {
		http.Error(w, "token not found", http.StatusNotFound)
		return
	}

	limit := defaultTradeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit: "+raw, http.StatusBadRequest)
			return
		}
		limit = n
	}

	detail := TokenDetail{
		TokenSummary:    summarize(token),
		BondingCurveKey: token.BondingCurveKey,
		DevWallet:       token.DevWallet,
		ReservesSol:     token.Reserves.Sol,
		ReservesToken:   token.Reserves.Token,
		Risk: RiskView{
			HoldersRisk:   token.Risk.HoldersRisk,
			VolumeRisk:    token.Risk.VolumeRisk,
			DevWalletRisk: token.Risk.DevWalletRisk,
			InsiderRisk:   token.Risk.InsiderRisk,
			TotalRisk:     token.Risk.TotalRisk,
		},
		URI:      token.Metadata.URI,
		Website:  token.Metadata.Website,
		Twitter:  token.Metadata.Twitter,
		Telegram: token.Metadata.Telegram,
	}

	trades := token.RecentTrades
	if len(trades) > limit {
		trades = trades[:limit]
	}
	detail.Trades = make([]TradeView, 0, len(trades))
	for _, tr := range trades {
		detail.Trades = append(detail.Trades, TradeView{
			Signature:   tr.Signature,
			Timestamp:   tr.Timestamp,
			Side:        tr.Side,
			Trader:      tr.Trader,
			TokenAmount: tr.TokenAmount,
			SolAmount:   tr.SolAmount,
			PriceSol:    tr.PriceSol,
			PriceUsd:    tr.PriceUsd,
		})
	}

	holders := risk.Holders(token)
	detail.Holders = make([]HolderView, 0, len(holders))
	for _, h := range holders {
		detail.Holders = append(detail.Holders, HolderView{
			Wallet:     h.Wallet,
			Balance:    h.Balance,
			Percentage: h.Percentage,
		})
	}

	writeJSON(w, detail)
}

// handleStatus serves GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	counts := s.tracker.Counts()
	bucketCounts := make(map[string]int, len(counts))
	for b, n := range counts {
		bucketCounts[string(b)] = n
	}

	status := "running"
	connected := true
	if s.connected != nil {
		connected = s.connected()
		if !connected {
			status = "disconnected"
		}
	}

	resp := StatusResponse{
		Status:        status,
		Connected:     connected,
		Uptime:        time.Since(s.started).String(),
		TrackedTokens: s.tracker.Len(),
		BucketCounts:  bucketCounts,
		SolPriceUsd:   s.tracker.SolPrice(),
	}
	if s.lastEventAt != nil {
		resp.LastEventAt = s.lastEventAt()
	}
	writeJSON(w, resp)
}

func summarize(t *domain.Token) TokenSummary {
	return TokenSummary{
		Address:      t.Address,
		Symbol:       t.Symbol,
		Name:         t.Name,
		Bucket:       string(t.Bucket()),
		PriceSol:     t.Quote.PriceSol,
		PriceUsd:     t.Quote.PriceUsd,
		MarketCapSol: t.Quote.MarketCapSol,
		MarketCapUsd: t.Quote.MarketCapUsd,
		Volume24hSol: t.Volume24h.Sol,
		Volume24hUsd: t.Volume24h.Usd,
		TradeCount:   len(t.RecentTrades),
		TotalRisk:    t.Risk.TotalRisk,
		CreatedAt:    t.CreatedAt,
		ImageURL:     t.Metadata.ImageURL,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
