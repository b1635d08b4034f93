// Package metrics computes price, market-cap and volume figures from
// bonding-curve reserves and trade windows. All functions are pure and
// guard against degenerate inputs instead of returning NaN or Inf.
package metrics

import (
	"time"

	"pump-vision/internal/domain"
)

// Volume24hWindow is the lookback for rolling volume.
const Volume24hWindow = 24 * time.Hour

// ComputeQuote derives price and market cap from bonding-curve reserves.
// The virtual SOL reserve is the SOL-denominated market cap by convention.
// Any non-positive reserve or rate yields an all-zero quote.
func ComputeQuote(reserves domain.Reserves, solUsdRate float64) domain.Quote {
	if reserves.Token <= 0 || reserves.Sol <= 0 || solUsdRate <= 0 {
		return domain.Quote{}
	}

	priceSol := reserves.Sol / reserves.Token
	return domain.Quote{
		PriceSol:     priceSol,
		PriceUsd:     priceSol * solUsdRate,
		MarketCapSol: reserves.Sol,
		MarketCapUsd: reserves.Sol * solUsdRate,
	}
}

// ComputeVolume24h sums SOL volume over trades newer than 24h before now.
// trades must be ordered newest-first. The USD leg uses the newest trade's
// frozen per-trade USD price, not the live quote.
func ComputeVolume24h(trades []*domain.Trade, now int64) domain.Volume {
	if len(trades) == 0 {
		return domain.Volume{}
	}

	cutoff := now - Volume24hWindow.Milliseconds()
	volSol := 0.0
	for _, t := range trades {
		if t.Timestamp > cutoff {
			volSol += t.SolAmount
		}
	}

	latestPrice := trades[0].PriceUsd
	return domain.Volume{
		Sol: volSol,
		Usd: volSol * latestPrice,
	}
}
