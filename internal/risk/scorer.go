// Package risk derives manipulation-risk scores for a token from its
// bounded trade window. Every scorer tolerates empty trade lists and
// missing dev wallets by returning a documented fallback constant; none
// may panic or propagate NaN.
package risk

import (
	"math"
	"time"

	"pump-vision/internal/domain"
)

// Fallback constants for tokens that cannot be scored.
const (
	// fallbackUnknown is the score for a token with no trade history at
	// all: worst case, since nothing is known about it.
	fallbackUnknown = 100.0
	// fallbackStale penalizes a token whose trades all predate the 24h
	// window. Recent inactivity is distinct from never having traded.
	fallbackStale = 75.0
	// fallbackNoDevInfo is the neutral score when the dev wallet is
	// unknown or there is no trade history to attribute.
	fallbackNoDevInfo = 50.0
	// fallbackDevInactive applies when the dev wallet is known but has no
	// trades in the window.
	fallbackDevInactive = 25.0
)

const recentConcentrationWindow = 10

// Score computes the full risk breakdown for a token. The no-trades
// fallback is exactly {100, 100, 50, 0} with a 83.33 weighted total.
func Score(token *domain.Token, now int64) domain.RiskBreakdown {
	if len(token.RecentTrades) == 0 {
		return domain.RiskBreakdown{
			HoldersRisk:   fallbackUnknown,
			VolumeRisk:    fallbackUnknown,
			DevWalletRisk: fallbackNoDevInfo,
			InsiderRisk:   0,
			TotalRisk:     83.33,
		}
	}

	holders := HoldersRisk(token.RecentTrades)
	volume := VolumeRisk(token.RecentTrades, now)
	dev := DevWalletRisk(token)

	creation := token.CreatedAt
	if creation == 0 {
		creation = now
	}
	insider := InsiderMetricsFor(token, creation).PatternRisk

	return domain.RiskBreakdown{
		HoldersRisk:   holders,
		VolumeRisk:    volume,
		DevWalletRisk: dev,
		InsiderRisk:   insider,
		// Insider is a 0-10 pattern score; rescale onto 0-100 before
		// averaging with the other three.
		TotalRisk: (holders + volume + dev + insider*10) / 4,
	}
}

// HoldersRisk scores trader concentration: few unique wallets relative to
// trade count reads as high risk. The headline ratio is blended 70/30 with
// the same ratio over the most recent min(10, n) trades.
func HoldersRisk(trades []*domain.Trade) float64 {
	total := len(trades)
	if total == 0 {
		return fallbackUnknown
	}

	unique := make(map[string]struct{}, total)
	for _, t := range trades {
		unique[t.Trader] = struct{}{}
	}
	concentration := float64(len(unique)) / float64(total)
	normalized := math.Max(0, 100-concentration*100)

	window := recentConcentrationWindow
	if total < window {
		window = total
	}
	recent := trades[:window]
	recentUnique := make(map[string]struct{}, window)
	for _, t := range recent {
		recentUnique[t.Trader] = struct{}{}
	}
	recentConcentration := float64(len(recentUnique)) / float64(window)

	return normalized*0.7 + (1-recentConcentration)*100*0.3
}

// VolumeRisk scores irregularity in trade sizes and spacing over the last
// 24h. High variance in either reads as wash-trading pressure.
func VolumeRisk(trades []*domain.Trade, now int64) float64 {
	if len(trades) == 0 {
		return fallbackUnknown
	}

	cutoff := now - (24 * time.Hour).Milliseconds()
	var recent []*domain.Trade
	for _, t := range trades {
		if t.Timestamp > cutoff {
			recent = append(recent, t)
		}
	}
	if len(recent) == 0 {
		return fallbackStale
	}

	amounts := make([]float64, len(recent))
	for i, t := range recent {
		amounts[i] = t.SolAmount
	}
	avg := mean(amounts)
	if avg == 0 {
		return fallbackUnknown
	}
	volumeVariance := stddev(amounts, avg) / avg

	timeVariance := 0.0
	if len(recent) >= 2 {
		gaps := make([]float64, 0, len(recent)-1)
		for i := 1; i < len(recent); i++ {
			gaps = append(gaps, float64(recent[i].Timestamp-recent[i-1].Timestamp))
		}
		if avgGap := mean(gaps); avgGap != 0 {
			timeVariance = stddev(gaps, avgGap) / avgGap
		}
	}

	return math.Min(100, volumeVariance*50+timeVariance*25)
}

// DevWalletRisk scores how dominant the creator wallet is in the token's
// trading, weighting volume share over trade-count share and doubling the
// blend to amplify dev activity as a signal.
func DevWalletRisk(token *domain.Token) float64 {
	if token.DevWallet == "" || len(token.RecentTrades) == 0 {
		return fallbackNoDevInfo
	}

	var devTrades []*domain.Trade
	for _, t := range token.RecentTrades {
		if t.Trader == token.DevWallet || t.Counterparty == token.DevWallet {
			devTrades = append(devTrades, t)
		}
	}
	if len(devTrades) == 0 {
		return fallbackDevInactive
	}

	countShare := float64(len(devTrades)) / float64(len(token.RecentTrades)) * 100

	totalVolume := 0.0
	for _, t := range token.RecentTrades {
		totalVolume += t.SolAmount
	}
	devVolume := 0.0
	for _, t := range devTrades {
		devVolume += t.SolAmount
	}
	volumeShare := 0.0
	if totalVolume > 0 {
		volumeShare = devVolume / totalVolume * 100
	}

	weighted := countShare*0.4 + volumeShare*0.6
	return math.Min(100, weighted*2)
}

// mean calculates the arithmetic mean.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev calculates population standard deviation (n denominator).
func stddev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
