package risk

import (
	"sort"

	"pump-vision/internal/domain"
)

// Holder is one wallet's replayed position on a token.
type Holder struct {
	Wallet     string
	Balance    float64
	Percentage float64 // share of the current token reserve
}

// HolderBalances replays the bounded trade window into per-wallet balances.
// Sells that zero out or overdraw a balance remove the wallet; the window
// is bounded, so balances are an approximation of on-chain truth, not a
// guarantee.
func HolderBalances(trades []*domain.Trade) map[string]float64 {
	holders := make(map[string]float64)
	for i := len(trades) - 1; i >= 0; i-- { // oldest first
		t := trades[i]
		if t.Trader == "" {
			continue
		}
		switch t.Side {
		case domain.TradeSideBuy:
			holders[t.Trader] += t.TokenAmount
		case domain.TradeSideSell:
			remaining := holders[t.Trader] - t.TokenAmount
			if remaining > 0 {
				holders[t.Trader] = remaining
			} else {
				delete(holders, t.Trader)
			}
		}
	}
	return holders
}

// Holders returns the replayed holder set with reserve percentages, sorted
// by balance descending for stable output.
func Holders(token *domain.Token) []Holder {
	balances := HolderBalances(token.RecentTrades)
	reserve := token.Reserves.Token
	if reserve <= 0 {
		reserve = 1
	}

	out := make([]Holder, 0, len(balances))
	for wallet, balance := range balances {
		out = append(out, Holder{
			Wallet:     wallet,
			Balance:    balance,
			Percentage: balance / reserve * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Balance != out[j].Balance {
			return out[i].Balance > out[j].Balance
		}
		return out[i].Wallet < out[j].Wallet
	})
	return out
}
