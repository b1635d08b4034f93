package domain

// Bounds on the in-memory universe. Tokens beyond MaxTrackedTokens are
// evicted from the tail; trades beyond MaxTradesPerToken are dropped oldest
// first.
const (
	MaxTradesPerToken = 1000
	MaxTrackedTokens  = 50
)

// Graduation thresholds in SOL-denominated market cap.
const (
	GraduateLowerSol = 70.0
	GraduateUpperSol = 100.0
)

// Bucket classifies a token's lifecycle stage.
type Bucket string

const (
	BucketNew             Bucket = "NEW"
	BucketAboutToGraduate Bucket = "ABOUT_TO_GRADUATE"
	BucketGraduated       Bucket = "GRADUATED"
)

// Reserves holds the virtual bonding-curve reserves for a token.
// Trade events carry post-trade absolute reserves; these are always
// overwritten from the latest snapshot, never derived from deltas.
type Reserves struct {
	Sol   float64 // virtual SOL reserve
	Token float64 // virtual token reserve
}

// TokenMetadata holds off-chain metadata, enriched asynchronously from the
// token URI. All fields may be empty if the fetch failed or never ran.
type TokenMetadata struct {
	Decimals int
	URI      string
	ImageURL string
	Website  string
	Twitter  string
	Telegram string
}

// Quote is a point-in-time price/market-cap computation.
type Quote struct {
	PriceSol     float64
	PriceUsd     float64
	MarketCapSol float64
	MarketCapUsd float64
}

// Volume holds 24h rolling volume figures.
type Volume struct {
	Sol float64
	Usd float64
}

// RiskBreakdown is the per-token risk score set. Holders, Volume and
// DevWallet are on a 0-100 scale; Insider is a 0-10 pattern score that is
// rescaled by 10 when averaged into Total.
type RiskBreakdown struct {
	HoldersRisk   float64
	VolumeRisk    float64
	DevWalletRisk float64
	InsiderRisk   float64
	TotalRisk     float64
}

// Token is one tracked bonding-curve asset.
type Token struct {
	Address         string // mint address, primary key
	Symbol          string
	Name            string
	BondingCurveKey string
	Reserves        Reserves
	DevWallet       string // creator wallet, immutable after creation
	CreatedAt       int64  // creation event timestamp (ms)
	IsNew           bool   // caller-managed; cleared only via MarkActive

	// RecentTrades is ordered newest-first and bounded to
	// MaxTradesPerToken entries.
	RecentTrades []*Trade

	Metadata TokenMetadata

	// Derived metrics, recomputed on every ingested trade so reads stay
	// O(1).
	Quote     Quote
	Volume24h Volume
	Risk      RiskBreakdown
}

// BucketFor classifies market cap and the IsNew flag into a lifecycle bucket.
func BucketFor(isNew bool, marketCapSol float64) Bucket {
	if isNew {
		return BucketNew
	}
	if marketCapSol >= GraduateUpperSol {
		return BucketGraduated
	}
	if marketCapSol >= GraduateLowerSol {
		return BucketAboutToGraduate
	}
	return Bucket("")
}

// Bucket returns the token's current lifecycle bucket. Tokens below the
// lower graduation threshold that are no longer new fall outside all three
// buckets and return the empty bucket.
func (t *Token) Bucket() Bucket {
	return BucketFor(t.IsNew, t.Quote.MarketCapSol)
}

// Clone returns a deep copy safe to hand to readers while ingestion
// continues.
func (t *Token) Clone() *Token {
	cp := *t
	cp.RecentTrades = make([]*Trade, len(t.RecentTrades))
	for i, tr := range t.RecentTrades {
		trCp := *tr
		cp.RecentTrades[i] = &trCp
	}
	return &cp
}
