// Package main runs the unified dashboard backend:
// - Ingestion (continuous): pump.fun WebSocket stream into the tracker
// - Price feed (scheduled): SOL/USD ticker polling
// - API: JSON read model, health and Prometheus metrics
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pump-vision/internal/api"
	"pump-vision/internal/domain"
	"pump-vision/internal/firehose"
	"pump-vision/internal/ingestion"
	"pump-vision/internal/metadata"
	"pump-vision/internal/notify"
	"pump-vision/internal/observability"
	"pump-vision/internal/pricefeed"
	"pump-vision/internal/storage"
	chstore "pump-vision/internal/storage/clickhouse"
	"pump-vision/internal/storage/memory"
	"pump-vision/internal/storage/migrations"
	pgstore "pump-vision/internal/storage/postgres"
	"pump-vision/internal/tracker"
)

const defaultStreamEndpoint = "wss://pumpportal.fun/api/data"

func main() {
	// Load .env file if exists; system env vars win.
	godotenv.Load()

	// Parse flags (env vars as defaults)
	streamEndpoint := flag.String("stream-endpoint", envOr("STREAM_ENDPOINT", defaultStreamEndpoint), "pump.fun WebSocket endpoint")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	kafkaBrokers := flag.String("kafka-brokers", os.Getenv("KAFKA_BROKERS"), "Comma-separated Kafka brokers for the trade firehose (optional)")
	kafkaTopic := flag.String("kafka-topic", envOr("KAFKA_TOPIC", firehose.DefaultTopic), "Kafka topic for trade ticks")
	tickerURL := flag.String("ticker-url", envOr("SOL_TICKER_URL", pricefeed.DefaultTickerURL), "SOL/USD ticker endpoint")
	tickerInterval := flag.Duration("ticker-interval", 10*time.Second, "SOL/USD poll interval")
	httpAddr := flag.String("http-addr", envOr("HTTP_ADDR", ":8080"), "HTTP listen address (API, health, metrics)")
	telegramToken := flag.String("telegram-token", os.Getenv("TELEGRAM_BOT_TOKEN"), "Telegram bot token for alerts (optional)")
	telegramChat := flag.String("telegram-chat", os.Getenv("TELEGRAM_CHAT_ID"), "Telegram chat ID for alerts")
	riskThreshold := flag.Float64("risk-threshold", 80, "Total risk score that triggers an alert")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs := observability.NewMetrics("pump_vision")

	// Create stores
	repo, archive, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Optional Kafka firehose next to the archive
	if *kafkaBrokers != "" {
		producer := firehose.NewProducer(splitList(*kafkaBrokers), *kafkaTopic)
		defer producer.Close()
		archive = fanoutArchive{archive, producer}
		logger.Printf("Trade firehose enabled on topic %q", *kafkaTopic)
	}

	book := tracker.New(tracker.Options{
		Repository: repo,
		Archive:    archive,
		Logger:     log.New(os.Stdout, "[tracker] ", log.LstdFlags),
		Metrics:    obs,
	})

	// Stream client and adapter
	clientCfg := ingestion.DefaultClientConfig()
	clientCfg.Metrics = obs
	client := ingestion.NewClient(*streamEndpoint, &clientCfg)
	adapter := ingestion.NewAdapter(ingestion.AdapterOptions{
		Tracker: book,
		Fetcher: metadata.NewFetcher(),
		Metrics: obs,
		Logger:  log.New(os.Stdout, "[ingestion] ", log.LstdFlags),
	})

	poller := pricefeed.NewPoller(pricefeed.Options{
		URL:      *tickerURL,
		Interval: *tickerInterval,
		Sink:     book,
		Metrics:  obs,
		Logger:   log.New(os.Stdout, "[pricefeed] ", log.LstdFlags),
	})

	// Optional Telegram alerts
	if *telegramToken != "" {
		notifier, err := notify.NewNotifier(notify.Options{
			BotToken:      *telegramToken,
			ChatID:        *telegramChat,
			RiskThreshold: *riskThreshold,
			Logger:        log.New(os.Stdout, "[notify] ", log.LstdFlags),
		})
		if err != nil {
			logger.Fatalf("Failed to create notifier: %v", err)
		}
		id, updates := book.Subscribe()
		defer book.Unsubscribe(id)
		go notifier.Run(ctx, updates)
		logger.Println("Telegram alerts enabled")
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	apiServer := api.NewServer(api.Options{
		Tracker:     book,
		Metrics:     obs,
		Logger:      logger,
		LastEventAt: adapter.LastEventAt,
		Connected:   client.Connected,
	})
	go func() {
		logger.Printf("Starting HTTP server on %s", *httpAddr)
		if err := http.ListenAndServe(*httpAddr, apiServer.Handler()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("HTTP server error: %v", err)
		}
	}()

	// Sample gauges the hot path never touches
	go sampleGauges(ctx, book, client, adapter, obs)

	// Run the components
	errCh := make(chan error, 2)
	go func() {
		adapter.Run(ctx, client.Frames())
	}()
	go func() {
		if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		cancel()
	}
	client.Close()
	done <- runErr

	if runErr != nil {
		logger.Fatalf("Server error: %v", runErr)
	}
	logger.Println("Shutdown complete")
}

// createStores wires the repository and trade archive.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.TokenRepository, storage.TradeArchive, func(), error) {
	if useMemory {
		repo := memory.NewTokenRepository()
		return repo, nil, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return pgstore.NewTokenRepository(pool), chstore.NewTradeArchive(chConn), cleanup, nil
}

// fanoutArchive writes each batch to every sink; the first error wins but
// all sinks are attempted.
type fanoutArchive []storage.TradeArchive

func (f fanoutArchive) ArchiveTrades(ctx context.Context, tokenAddress string, trades []*domain.Trade) error {
	var firstErr error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.ArchiveTrades(ctx, tokenAddress, trades); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sampleGauges refreshes gauges that are cheaper to sample than to update
// inline.
func sampleGauges(ctx context.Context, book *tracker.Tracker, client *ingestion.Client, adapter *ingestion.Adapter, obs *observability.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			obs.TrackedTokens.Set(float64(book.Len()))
			obs.LastEventTime.Set(float64(adapter.LastEventAt()))
			if client.Connected() {
				obs.StreamConnected.Set(1)
			} else {
				obs.StreamConnected.Set(0)
			}
		}
	}
}

// envOr returns the env var value or a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList splits a comma-separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
