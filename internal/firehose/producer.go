// Package firehose publishes trade ticks to Kafka for downstream consumers.
package firehose

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"pump-vision/internal/domain"
	"pump-vision/internal/storage"
)

// DefaultTopic is the trade tick topic.
const DefaultTopic = "trade-ticks"

// tickMessage is the wire payload for one published trade.
type tickMessage struct {
	TokenAddress string  `json:"token_address"`
	Signature    string  `json:"signature"`
	Timestamp    int64   `json:"timestamp"`
	Side         string  `json:"side"`
	Trader       string  `json:"trader"`
	TokenAmount  float64 `json:"token_amount"`
	SolAmount    float64 `json:"sol_amount"`
	PriceSol     float64 `json:"price_sol"`
	PriceUsd     float64 `json:"price_usd"`
	MarketCapSol float64 `json:"market_cap_sol"`
}

// messageWriter is the kafka.Writer surface the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes trade ticks keyed by token address so each token's
// ticks land on one partition in order.
type Producer struct {
	writer messageWriter
	topic  string
}

var _ storage.TradeArchive = (*Producer)(nil)

// NewProducer creates a Producer against the given brokers.
func NewProducer(brokers []string, topic string) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}
	return &Producer{writer: writer, topic: topic}
}

// ArchiveTrades publishes one message per trade.
func (p *Producer) ArchiveTrades(ctx context.Context, tokenAddress string, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(trades))
	for _, tr := range trades {
		payload, err := json.Marshal(tickMessage{
			TokenAddress: tokenAddress,
			Signature:    tr.Signature,
			Timestamp:    tr.Timestamp,
			Side:         tr.Side,
			Trader:       tr.Trader,
			TokenAmount:  tr.TokenAmount,
			SolAmount:    tr.SolAmount,
			PriceSol:     tr.PriceSol,
			PriceUsd:     tr.PriceUsd,
			MarketCapSol: tr.MarketCapSol,
		})
		if err != nil {
			return fmt.Errorf("marshal trade tick: %w", err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(tokenAddress),
			Value: payload,
			Time:  time.UnixMilli(tr.Timestamp),
		})
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("write trade ticks to kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
