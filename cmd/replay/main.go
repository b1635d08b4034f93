// Package main replays a captured JSONL stream file through the ingestion
// path into an in-memory tracker and prints the resulting universe. Useful
// for debugging risk scoring against recorded sessions.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"pump-vision/internal/domain"
	"pump-vision/internal/ingestion"
	"pump-vision/internal/tracker"
)

func main() {
	// Parse flags
	file := flag.String("file", "", "JSONL capture file to replay (required)")
	solPrice := flag.Float64("sol-price", 150, "SOL/USD rate to price trades with")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup structured logger
	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	// Validate required flags
	if *file == "" {
		logger.Fatal("--file is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		logger.Fatalf("open capture: %v", err)
	}
	defer f.Close()

	book := tracker.New(tracker.Options{Logger: logger})
	book.SetSolPrice(*solPrice)

	adapter := ingestion.NewAdapter(ingestion.AdapterOptions{
		Tracker: book,
		Logger:  logger,
	})

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lines := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		adapter.Dispatch(line)
		lines++
	}
	if err := scanner.Err(); err != nil {
		logger.Fatalf("read capture: %v", err)
	}

	logger.Printf("Replayed %d lines, %d tokens tracked", lines, book.Len())

	if *outputJSON {
		printJSON(book)
		return
	}
	printSummary(book)
}

// printSummary prints a human-readable bucket breakdown.
func printSummary(book *tracker.Tracker) {
	counts := book.Counts()
	fmt.Printf("Tracked tokens: %d\n", book.Len())
	for _, bucket := range []domain.Bucket{domain.BucketNew, domain.BucketAboutToGraduate, domain.BucketGraduated} {
		fmt.Printf("  %-18s %d\n", bucket, counts[bucket])
	}
	fmt.Println()

	for _, t := range book.List() {
		fmt.Printf("%-12s %-44s mc=%8.2f SOL  vol24h=%8.2f SOL  trades=%4d  risk=%5.1f  bucket=%s\n",
			t.Symbol, t.Address, t.Quote.MarketCapSol, t.Volume24h.Sol,
			len(t.RecentTrades), t.Risk.TotalRisk, t.Bucket())
	}
}

// tokenRow is the JSON output shape.
type tokenRow struct {
	Address      string  `json:"address"`
	Symbol       string  `json:"symbol"`
	Bucket       string  `json:"bucket"`
	MarketCapSol float64 `json:"market_cap_sol"`
	Volume24hSol float64 `json:"volume_24h_sol"`
	TradeCount   int     `json:"trade_count"`
	TotalRisk    float64 `json:"total_risk"`
}

// printJSON prints the universe as a JSON array.
func printJSON(book *tracker.Tracker) {
	rows := make([]tokenRow, 0, book.Len())
	for _, t := range book.List() {
		rows = append(rows, tokenRow{
			Address:      t.Address,
			Symbol:       t.Symbol,
			Bucket:       string(t.Bucket()),
			MarketCapSol: t.Quote.MarketCapSol,
			Volume24hSol: t.Volume24h.Sol,
			TradeCount:   len(t.RecentTrades),
			TotalRisk:    t.Risk.TotalRisk,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(rows)
}
