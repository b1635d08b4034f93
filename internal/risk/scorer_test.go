package risk

import (
	"math"
	"testing"

	"pump-vision/internal/domain"
)

func TestScoreNoTradesFallback(t *testing.T) {
	token := &domain.Token{Address: "MintEmpty"}
	got := Score(token, 1_700_000_000_000)

	want := domain.RiskBreakdown{
		HoldersRisk:   100,
		VolumeRisk:    100,
		DevWalletRisk: 50,
		InsiderRisk:   0,
		TotalRisk:     83.33,
	}
	if got != want {
		t.Errorf("Score = %+v, want %+v", got, want)
	}
}

func TestHoldersRiskSingleWallet(t *testing.T) {
	trades := make([]*domain.Trade, 4)
	for i := range trades {
		trades[i] = &domain.Trade{Trader: "walletA"}
	}

	// 1 unique of 4: headline 75, recent window ratio 0.25 adds
	// 0.75*100*0.3.
	got := HoldersRisk(trades)
	want := 75*0.7 + 75*0.3
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("HoldersRisk = %v, want %v", got, want)
	}
}

func TestHoldersRiskAllUnique(t *testing.T) {
	trades := []*domain.Trade{
		{Trader: "walletA"},
		{Trader: "walletB"},
		{Trader: "walletC"},
		{Trader: "walletD"},
	}
	if got := HoldersRisk(trades); got != 0 {
		t.Errorf("HoldersRisk = %v, want 0", got)
	}
}

func TestHoldersRiskEmpty(t *testing.T) {
	if got := HoldersRisk(nil); got != 100 {
		t.Errorf("HoldersRisk = %v, want 100", got)
	}
}

func TestVolumeRiskUniformTradingScoresZero(t *testing.T) {
	now := int64(1_700_000_000_000)
	// Identical sizes and evenly spaced: both variance terms collapse.
	trades := []*domain.Trade{
		{Timestamp: now - 1000, SolAmount: 1},
		{Timestamp: now - 2000, SolAmount: 1},
		{Timestamp: now - 3000, SolAmount: 1},
		{Timestamp: now - 4000, SolAmount: 1},
	}
	if got := VolumeRisk(trades, now); got != 0 {
		t.Errorf("VolumeRisk = %v, want 0", got)
	}
}

func TestVolumeRiskStaleTrades(t *testing.T) {
	now := int64(1_700_000_000_000)
	trades := []*domain.Trade{
		{Timestamp: now - 25*60*60*1000, SolAmount: 1},
		{Timestamp: now - 26*60*60*1000, SolAmount: 1},
	}
	if got := VolumeRisk(trades, now); got != 75 {
		t.Errorf("VolumeRisk = %v, want 75", got)
	}
}

func TestVolumeRiskWildSizesCapAt100(t *testing.T) {
	now := int64(1_700_000_000_000)
	// Nine dust trades and one whale, evenly spaced: the size-variance term
	// alone blows past the cap.
	trades := make([]*domain.Trade, 10)
	for i := range trades {
		trades[i] = &domain.Trade{Timestamp: now - int64(i+1)*1000, SolAmount: 0.001}
	}
	trades[0].SolAmount = 1000
	if got := VolumeRisk(trades, now); got != 100 {
		t.Errorf("VolumeRisk = %v, want 100", got)
	}
}

func TestDevWalletRiskUnknownDev(t *testing.T) {
	token := &domain.Token{
		RecentTrades: []*domain.Trade{{Trader: "walletA", SolAmount: 1}},
	}
	if got := DevWalletRisk(token); got != 50 {
		t.Errorf("DevWalletRisk = %v, want 50", got)
	}
}

func TestDevWalletRiskInactiveDev(t *testing.T) {
	token := &domain.Token{
		DevWallet: "devWallet",
		RecentTrades: []*domain.Trade{
			{Trader: "walletA", SolAmount: 1},
			{Trader: "walletB", SolAmount: 2},
		},
	}
	if got := DevWalletRisk(token); got != 25 {
		t.Errorf("DevWalletRisk = %v, want 25", got)
	}
}

func TestDevWalletRiskActiveDev(t *testing.T) {
	token := &domain.Token{
		DevWallet: "devWallet",
		RecentTrades: []*domain.Trade{
			{Trader: "devWallet", SolAmount: 1},
			{Trader: "walletA", SolAmount: 3},
			{Trader: "walletB", SolAmount: 3},
			{Trader: "walletC", SolAmount: 3},
		},
	}

	// Count share 25, volume share 10: (25*0.4 + 10*0.6) * 2 = 32.
	got := DevWalletRisk(token)
	if math.Abs(got-32) > 1e-9 {
		t.Errorf("DevWalletRisk = %v, want 32", got)
	}
}

func TestDevWalletRiskCountsCounterparty(t *testing.T) {
	token := &domain.Token{
		DevWallet: "devWallet",
		RecentTrades: []*domain.Trade{
			{Trader: "walletA", Counterparty: "devWallet", SolAmount: 1},
			{Trader: "walletB", SolAmount: 1},
		},
	}
	if got := DevWalletRisk(token); got == 25 || got == 50 {
		t.Errorf("DevWalletRisk = %v, want active-dev score", got)
	}
}

func TestDevWalletRiskDominantDevCapsAt100(t *testing.T) {
	token := &domain.Token{
		DevWallet: "devWallet",
		RecentTrades: []*domain.Trade{
			{Trader: "devWallet", SolAmount: 10},
			{Trader: "walletA", SolAmount: 0.1},
		},
	}
	if got := DevWalletRisk(token); got != 100 {
		t.Errorf("DevWalletRisk = %v, want 100", got)
	}
}

func TestScoreBlendsInsiderOnTenScale(t *testing.T) {
	creation := int64(1_700_000_000_000)
	now := creation + 2*60*60*1000

	token := &domain.Token{
		Address:   "MintBlend",
		DevWallet: "devWallet",
		CreatedAt: creation,
		Reserves:  domain.Reserves{Sol: 10, Token: 1000},
		RecentTrades: []*domain.Trade{
			{Timestamp: creation + 1000, Trader: "walletA", Side: domain.TradeSideBuy, TokenAmount: 100, SolAmount: 1},
		},
	}

	got := Score(token, now)
	// walletA holds 10% of reserve: one large holder, pattern risk
	// round(3/7) = 0.
	if got.InsiderRisk != 0 {
		t.Errorf("InsiderRisk = %v, want 0", got.InsiderRisk)
	}
	wantTotal := (got.HoldersRisk + got.VolumeRisk + got.DevWalletRisk + got.InsiderRisk*10) / 4
	if math.Abs(got.TotalRisk-wantTotal) > 1e-9 {
		t.Errorf("TotalRisk = %v, want %v", got.TotalRisk, wantTotal)
	}
}
