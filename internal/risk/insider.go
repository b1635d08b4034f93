package risk

import (
	"math"
	"sort"
	"time"

	"pump-vision/internal/domain"
)

// Detection windows and thresholds for insider/sniper classification.
const (
	// EarlyTraderWindow bounds how long after creation a wallet's first
	// trade may land for the wallet to count as an early trader.
	EarlyTraderWindow = 6 * time.Hour
	// SniperWindow is the much tighter first-buy window that marks a
	// wallet as a sniper. Distinct concept from the early-trader window.
	SniperWindow = 15 * time.Second
	// QuickFlipWindow is the max distance between a wallet's sell and a
	// subsequent buy for the buy to count as a quick flip.
	QuickFlipWindow = 5 * time.Minute
	// CoordinatedBucket is the bucket width used to find coordinated buy
	// bursts in the first hour after creation.
	CoordinatedBucket = time.Minute
	// CoordinatedMinTrades is the bucket population that counts as one
	// coordinated window.
	CoordinatedMinTrades = 3
	// LargeHolderShare is the fraction of the current token reserve above
	// which an early trader counts as a large holder.
	LargeHolderShare = 0.05
)

// InsiderPatterns counts the individual suspicious patterns found.
type InsiderPatterns struct {
	QuickFlippers   int // early traders with more than 2 quick flips
	LargeHolders    int // early traders holding >5% of the token reserve
	CoordinatedBuys int // 1-minute windows in the first hour with >=3 trades
}

// InsiderMetrics summarizes early-trader behavior for one token.
type InsiderMetrics struct {
	// Percentage is the early traders' combined share of the current
	// token reserve, clamped to 100.
	Percentage float64
	// PatternRisk is a 0-10 score derived from the pattern counts.
	PatternRisk float64
	// EarlyTraderCount is the number of distinct non-dev wallets whose
	// first trade landed within EarlyTraderWindow of creation.
	EarlyTraderCount int
	Patterns         InsiderPatterns
}

// walletActivity tracks one wallet's replayed position on a token.
type walletActivity struct {
	firstTrade int64
	balance    float64
	quickFlips int
	volume     float64
	sells      []int64
}

// InsiderMetricsFor replays the token's trade window in chronological order
// and derives insider metrics relative to the creation timestamp. The dev
// wallet is excluded throughout.
func InsiderMetricsFor(token *domain.Token, creationTs int64) InsiderMetrics {
	trades := token.RecentTrades
	sorted := make([]*domain.Trade, len(trades))
	copy(sorted, trades)
	// Stable so same-timestamp fills keep their window order; an unstable
	// sort could swap a sell/buy pair and flip flip-detection between runs.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	activity := make(map[string]*walletActivity)
	for _, t := range sorted {
		wallet := t.Trader
		if wallet == "" || wallet == token.DevWallet {
			continue
		}

		act, ok := activity[wallet]
		if !ok {
			act = &walletActivity{firstTrade: t.Timestamp}
			activity[wallet] = act
		}

		act.volume += t.SolAmount
		if t.Side == domain.TradeSideBuy {
			act.balance += t.TokenAmount
			// A buy shortly after the same wallet's sell is churn.
			for _, sellTs := range act.sells {
				if t.Timestamp-sellTs < QuickFlipWindow.Milliseconds() {
					act.quickFlips++
					break
				}
			}
		} else {
			act.balance -= t.TokenAmount
			act.sells = append(act.sells, t.Timestamp)
		}
	}

	earlyCutoff := creationTs + EarlyTraderWindow.Milliseconds()
	reserve := token.Reserves.Token

	var patterns InsiderPatterns
	totalEarlyBalance := 0.0
	earlyCount := 0
	for _, act := range activity {
		if act.firstTrade > earlyCutoff {
			continue
		}
		earlyCount++
		if act.quickFlips > 2 {
			patterns.QuickFlippers++
		}
		if reserve > 0 && act.balance/reserve*100 > LargeHolderShare*100 {
			patterns.LargeHolders++
		}
		totalEarlyBalance += act.balance
	}

	// Coordinated buys: bucket the first post-creation hour into minutes.
	firstHourCutoff := creationTs + time.Hour.Milliseconds()
	buckets := make(map[int64]int)
	for _, t := range sorted {
		if t.Timestamp <= firstHourCutoff {
			buckets[t.Timestamp/CoordinatedBucket.Milliseconds()]++
		}
	}
	for _, count := range buckets {
		if count >= CoordinatedMinTrades {
			patterns.CoordinatedBuys++
		}
	}

	percentage := 0.0
	if reserve > 0 {
		percentage = math.Min(100, totalEarlyBalance/reserve*100)
	}

	patternRisk := float64(patterns.QuickFlippers*2+patterns.LargeHolders*3+patterns.CoordinatedBuys*2) / 7
	patternRisk = math.Min(10, math.Round(patternRisk))

	return InsiderMetrics{
		Percentage:       percentage,
		PatternRisk:      patternRisk,
		EarlyTraderCount: earlyCount,
		Patterns:         patterns,
	}
}

// SniperStats summarizes wallets that bought within SniperWindow of
// creation.
type SniperStats struct {
	Count         int
	VolumeSol     float64
	AverageAmount float64
}

// Snipers counts distinct non-dev wallets whose first buy landed within
// SniperWindow of the creation timestamp.
func Snipers(token *domain.Token, creationTs int64) SniperStats {
	cutoff := creationTs + SniperWindow.Milliseconds()

	firstBuys := make(map[string]*domain.Trade)
	for _, t := range token.RecentTrades {
		if t.Side != domain.TradeSideBuy || t.Trader == "" || t.Trader == token.DevWallet {
			continue
		}
		if prev, ok := firstBuys[t.Trader]; !ok || t.Timestamp < prev.Timestamp {
			firstBuys[t.Trader] = t
		}
	}

	var stats SniperStats
	for _, t := range firstBuys {
		if t.Timestamp <= cutoff {
			stats.Count++
			stats.VolumeSol += t.SolAmount
		}
	}
	if stats.Count > 0 {
		stats.AverageAmount = stats.VolumeSol / float64(stats.Count)
	}
	return stats
}
