package domain

// Trade side constants
const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
)

// Trade is one buy or sell against a token's bonding curve.
type Trade struct {
	Signature    string // transaction signature, dedup key at the persistence boundary
	Timestamp    int64  // Unix timestamp in milliseconds
	Side         string // "buy" | "sell"
	Trader       string // wallet that initiated the trade
	Counterparty string // optional counterparty wallet
	TokenAmount  float64
	SolAmount    float64

	// Post-trade reserve snapshot carried by the event.
	BondingCurveKey string
	Reserves        Reserves
	MarketCapSol    float64

	// USD price frozen at ingestion time using the SOL/USD rate observed
	// then. Never repriced retroactively.
	PriceSol float64
	PriceUsd float64
}
