package risk

import (
	"fmt"
	"testing"

	"pump-vision/internal/domain"
)

const creation = int64(1_700_000_100_000)

func buy(wallet string, ts int64, tokens, sol float64) *domain.Trade {
	return &domain.Trade{Trader: wallet, Timestamp: ts, Side: domain.TradeSideBuy, TokenAmount: tokens, SolAmount: sol}
}

func sell(wallet string, ts int64, tokens, sol float64) *domain.Trade {
	return &domain.Trade{Trader: wallet, Timestamp: ts, Side: domain.TradeSideSell, TokenAmount: tokens, SolAmount: sol}
}

func TestInsiderMetricsQuickFlipper(t *testing.T) {
	// One sell followed by three buys inside the flip window: three flips,
	// above the >2 bar.
	token := &domain.Token{
		Address:  "MintFlip",
		Reserves: domain.Reserves{Token: 1_000_000},
		RecentTrades: []*domain.Trade{
			sell("flipper", creation+10_000, 100, 0.1),
			buy("flipper", creation+20_000, 100, 0.1),
			buy("flipper", creation+30_000, 100, 0.1),
			buy("flipper", creation+40_000, 100, 0.1),
		},
	}

	m := InsiderMetricsFor(token, creation)
	if m.Patterns.QuickFlippers != 1 {
		t.Errorf("QuickFlippers = %d, want 1", m.Patterns.QuickFlippers)
	}
	if m.EarlyTraderCount != 1 {
		t.Errorf("EarlyTraderCount = %d, want 1", m.EarlyTraderCount)
	}
}

func TestInsiderMetricsTwoFlipsNotEnough(t *testing.T) {
	token := &domain.Token{
		Address:  "MintMild",
		Reserves: domain.Reserves{Token: 1_000_000},
		RecentTrades: []*domain.Trade{
			sell("trader", creation+10_000, 100, 0.1),
			buy("trader", creation+20_000, 100, 0.1),
			buy("trader", creation+30_000, 100, 0.1),
		},
	}

	m := InsiderMetricsFor(token, creation)
	if m.Patterns.QuickFlippers != 0 {
		t.Errorf("QuickFlippers = %d, want 0 for only two flips", m.Patterns.QuickFlippers)
	}
}

func TestInsiderMetricsSameTimestampFillsKeepOrder(t *testing.T) {
	// Same-block fills share one timestamp. Classification must follow the
	// recorded fill order; the sell has to stay ahead of the buys so the
	// churn is still counted.
	ts := creation + 10_000
	trades := []*domain.Trade{
		sell("churner", ts, 100, 0.1),
		buy("churner", ts, 100, 0.1),
		buy("churner", ts, 100, 0.1),
		buy("churner", ts, 100, 0.1),
	}
	// Enough same-timestamp fills from other wallets that an unstable sort
	// would be free to shuffle the ties.
	for i := 0; i < 16; i++ {
		trades = append(trades, buy(fmt.Sprintf("bystander%02d", i), ts, 10, 0.01))
	}
	token := &domain.Token{
		Address:      "MintBlock",
		Reserves:     domain.Reserves{Token: 1_000_000},
		RecentTrades: trades,
	}

	m := InsiderMetricsFor(token, creation)
	if m.Patterns.QuickFlippers != 1 {
		t.Errorf("QuickFlippers = %d, want 1", m.Patterns.QuickFlippers)
	}
}

func TestInsiderMetricsFlipOutsideWindow(t *testing.T) {
	// The buy lands 6 minutes after the sell: no flip.
	token := &domain.Token{
		Address:  "MintSlow",
		Reserves: domain.Reserves{Token: 1_000_000},
		RecentTrades: []*domain.Trade{
			sell("trader", creation+10_000, 100, 0.1),
			buy("trader", creation+10_000+6*60*1000, 100, 0.1),
		},
	}

	m := InsiderMetricsFor(token, creation)
	if m.Patterns.QuickFlippers != 0 {
		t.Errorf("QuickFlippers = %d, want 0", m.Patterns.QuickFlippers)
	}
}

func TestInsiderMetricsLargeHolder(t *testing.T) {
	token := &domain.Token{
		Address:  "MintWhale",
		Reserves: domain.Reserves{Token: 1000},
		RecentTrades: []*domain.Trade{
			buy("whale", creation+5000, 100, 1), // 10% of reserve
			buy("shrimp", creation+6000, 10, 0.1),
		},
	}

	m := InsiderMetricsFor(token, creation)
	if m.Patterns.LargeHolders != 1 {
		t.Errorf("LargeHolders = %d, want 1", m.Patterns.LargeHolders)
	}
	// Combined early balance 110 of 1000.
	if m.Percentage != 11 {
		t.Errorf("Percentage = %v, want 11", m.Percentage)
	}
	if m.EarlyTraderCount != 2 {
		t.Errorf("EarlyTraderCount = %d, want 2", m.EarlyTraderCount)
	}
}

func TestInsiderMetricsCoordinatedBuys(t *testing.T) {
	// Three trades inside one minute bucket within the first hour.
	token := &domain.Token{
		Address:  "MintCoord",
		Reserves: domain.Reserves{Token: 1_000_000},
		RecentTrades: []*domain.Trade{
			buy("walletA", creation+1000, 10, 0.1),
			buy("walletB", creation+2000, 10, 0.1),
			buy("walletC", creation+3000, 10, 0.1),
		},
	}

	m := InsiderMetricsFor(token, creation)
	if m.Patterns.CoordinatedBuys != 1 {
		t.Errorf("CoordinatedBuys = %d, want 1", m.Patterns.CoordinatedBuys)
	}
}

func TestInsiderMetricsExcludesDevWallet(t *testing.T) {
	token := &domain.Token{
		Address:   "MintDev",
		DevWallet: "devWallet",
		Reserves:  domain.Reserves{Token: 1000},
		RecentTrades: []*domain.Trade{
			buy("devWallet", creation+1000, 500, 5),
		},
	}

	m := InsiderMetricsFor(token, creation)
	if m.EarlyTraderCount != 0 {
		t.Errorf("EarlyTraderCount = %d, want 0", m.EarlyTraderCount)
	}
	if m.Percentage != 0 {
		t.Errorf("Percentage = %v, want 0", m.Percentage)
	}
}

func TestInsiderMetricsLateTraderNotEarly(t *testing.T) {
	lateTs := creation + 7*60*60*1000 // past the 6h window
	token := &domain.Token{
		Address:  "MintLate",
		Reserves: domain.Reserves{Token: 1000},
		RecentTrades: []*domain.Trade{
			buy("latecomer", lateTs, 100, 1),
		},
	}

	m := InsiderMetricsFor(token, creation)
	if m.EarlyTraderCount != 0 {
		t.Errorf("EarlyTraderCount = %d, want 0", m.EarlyTraderCount)
	}
}

func TestInsiderPatternRiskCombined(t *testing.T) {
	// One quick flipper (weight 2), one large holder (3), one coordinated
	// window (2): (2+3+2)/7 rounds to 1.
	trades := []*domain.Trade{
		sell("flipper", creation+1000, 10, 0.1),
		buy("flipper", creation+2000, 10, 0.1),
		buy("flipper", creation+3000, 10, 0.1),
		buy("flipper", creation+4000, 10, 0.1),
		buy("whale", creation+5000, 200, 2),
	}
	token := &domain.Token{
		Address:      "MintAll",
		Reserves:     domain.Reserves{Token: 1000},
		RecentTrades: trades,
	}

	m := InsiderMetricsFor(token, creation)
	if m.Patterns.QuickFlippers != 1 || m.Patterns.LargeHolders != 1 {
		t.Fatalf("patterns = %+v", m.Patterns)
	}
	if m.Patterns.CoordinatedBuys < 1 {
		t.Fatalf("CoordinatedBuys = %d, want >= 1", m.Patterns.CoordinatedBuys)
	}
	if m.PatternRisk < 1 {
		t.Errorf("PatternRisk = %v, want >= 1", m.PatternRisk)
	}
}

func TestSnipers(t *testing.T) {
	token := &domain.Token{
		Address:   "MintSnipe",
		DevWallet: "devWallet",
		RecentTrades: []*domain.Trade{
			buy("sniperA", creation+10_000, 100, 2),   // inside 15s
			buy("sniperB", creation+14_000, 100, 4),   // inside 15s
			buy("slowpoke", creation+20_000, 100, 1),  // outside
			buy("devWallet", creation+1000, 1000, 10), // dev excluded
			sell("dumper", creation+2000, 50, 0.5),    // sells never count
		},
	}

	stats := Snipers(token, creation)
	if stats.Count != 2 {
		t.Fatalf("Count = %d, want 2", stats.Count)
	}
	if stats.VolumeSol != 6 {
		t.Errorf("VolumeSol = %v, want 6", stats.VolumeSol)
	}
	if stats.AverageAmount != 3 {
		t.Errorf("AverageAmount = %v, want 3", stats.AverageAmount)
	}
}

func TestSnipersFirstBuyDecides(t *testing.T) {
	// The wallet's earliest buy is outside the window; a later one inside
	// does not make it a sniper, and vice versa.
	token := &domain.Token{
		Address: "MintFirst",
		RecentTrades: []*domain.Trade{
			buy("walletA", creation+5000, 100, 1),
			buy("walletA", creation+60_000, 100, 1),
		},
	}

	stats := Snipers(token, creation)
	if stats.Count != 1 {
		t.Errorf("Count = %d, want 1", stats.Count)
	}
	if stats.VolumeSol != 1 {
		t.Errorf("VolumeSol = %v, want first-buy volume 1", stats.VolumeSol)
	}
}

func TestSnipersNone(t *testing.T) {
	token := &domain.Token{Address: "MintQuiet"}
	stats := Snipers(token, creation)
	if stats != (SniperStats{}) {
		t.Errorf("stats = %+v, want zero", stats)
	}
}
