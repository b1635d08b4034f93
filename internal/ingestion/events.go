// Package ingestion adapts the pump-portal style WebSocket stream into
// tracker operations: envelope parsing, dispatch, best-effort metadata
// enrichment, and bounded reconnection.
package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventKind is the closed set of stream envelope kinds. Anything not in
// the set parses as KindUnknown and is dropped by the dispatcher.
type EventKind string

const (
	KindCreate    EventKind = "create"
	KindTrade     EventKind = "trade"
	KindHeartbeat EventKind = "heartbeat"
	KindUnknown   EventKind = "unknown"
)

// rawEnvelope mirrors the wire JSON. The feed tags messages with txType;
// some variants use type. Heartbeats may arrive as either a tagged message
// or a bare subscription ack.
type rawEnvelope struct {
	Type                  string  `json:"type"`
	TxType                string  `json:"txType"`
	Message               string  `json:"message"`
	Mint                  string  `json:"mint"`
	Name                  string  `json:"name"`
	Symbol                string  `json:"symbol"`
	URI                   string  `json:"uri"`
	Signature             string  `json:"signature"`
	TraderPublicKey       string  `json:"traderPublicKey"`
	CounterpartyKey       string  `json:"counterpartyPublicKey"`
	BondingCurveKey       string  `json:"bondingCurveKey"`
	TokenAmount           float64 `json:"tokenAmount"`
	SolAmount             float64 `json:"solAmount"`
	VTokensInBondingCurve float64 `json:"vTokensInBondingCurve"`
	VSolInBondingCurve    float64 `json:"vSolInBondingCurve"`
	MarketCapSol          float64 `json:"marketCapSol"`
	Timestamp             int64   `json:"timestamp"`
}

// CreateEvent is a new-token envelope.
type CreateEvent struct {
	Mint            string
	Name            string
	Symbol          string
	URI             string
	BondingCurveKey string
	VTokens         float64
	VSol            float64
	Creator         string
	Timestamp       int64
}

// TradeEvent is a buy/sell envelope.
type TradeEvent struct {
	Mint            string
	Side            string // "buy" | "sell"
	Signature       string
	Trader          string
	Counterparty    string
	TokenAmount     float64
	SolAmount       float64
	BondingCurveKey string
	VTokens         float64
	VSol            float64
	MarketCapSol    float64
	Timestamp       int64
}

// Envelope is one parsed stream message. Exactly one of Create/Trade is
// non-nil for their respective kinds.
type Envelope struct {
	Kind   EventKind
	Create *CreateEvent
	Trade  *TradeEvent
}

// ParseEnvelope decodes one wire frame into the envelope union. Subscription
// acks parse as heartbeats; frames missing a mint address are an error so
// the dispatcher can drop and count them.
func ParseEnvelope(data []byte) (Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{Kind: KindUnknown}, fmt.Errorf("decode envelope: %w", err)
	}

	tag := raw.TxType
	if tag == "" {
		tag = raw.Type
	}

	if strings.Contains(raw.Message, "Successfully subscribed") {
		return Envelope{Kind: KindHeartbeat}, nil
	}

	switch tag {
	case "heartbeat", "ping":
		return Envelope{Kind: KindHeartbeat}, nil

	case "create":
		if raw.Mint == "" {
			return Envelope{Kind: KindUnknown}, fmt.Errorf("create event missing mint")
		}
		return Envelope{
			Kind: KindCreate,
			Create: &CreateEvent{
				Mint:            raw.Mint,
				Name:            raw.Name,
				Symbol:          raw.Symbol,
				URI:             raw.URI,
				BondingCurveKey: raw.BondingCurveKey,
				VTokens:         raw.VTokensInBondingCurve,
				VSol:            raw.VSolInBondingCurve,
				Creator:         raw.TraderPublicKey,
				Timestamp:       raw.Timestamp,
			},
		}, nil

	case "trade", "buy", "sell":
		if raw.Mint == "" {
			return Envelope{Kind: KindUnknown}, fmt.Errorf("trade event missing mint")
		}
		side := tag
		if side == "trade" {
			side = "buy"
		}
		return Envelope{
			Kind: KindTrade,
			Trade: &TradeEvent{
				Mint:            raw.Mint,
				Side:            side,
				Signature:       raw.Signature,
				Trader:          raw.TraderPublicKey,
				Counterparty:    raw.CounterpartyKey,
				TokenAmount:     raw.TokenAmount,
				SolAmount:       raw.SolAmount,
				BondingCurveKey: raw.BondingCurveKey,
				VTokens:         raw.VTokensInBondingCurve,
				VSol:            raw.VSolInBondingCurve,
				MarketCapSol:    raw.MarketCapSol,
				Timestamp:       raw.Timestamp,
			},
		}, nil
	}

	return Envelope{Kind: KindUnknown}, nil
}
