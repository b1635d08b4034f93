package ingestion

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"pump-vision/internal/domain"
	"pump-vision/internal/tracker"
)

const testMint = "11111111111111111111111111111111"

func newTestAdapter() (*Adapter, *tracker.Tracker) {
	book := tracker.New(tracker.Options{
		Logger: log.New(io.Discard, "", 0),
	})
	adapter := NewAdapter(AdapterOptions{
		Tracker: book,
		Logger:  log.New(io.Discard, "", 0),
	})
	return adapter, book
}

func TestDispatchCreateTracksToken(t *testing.T) {
	adapter, book := newTestAdapter()

	adapter.Dispatch([]byte(`{
		"txType": "create",
		"mint": "` + testMint + `",
		"name": "Cat Coin",
		"symbol": "CAT",
		"vTokensInBondingCurve": 1000000,
		"vSolInBondingCurve": 30,
		"timestamp": 1700000000000
	}`))

	token, ok := book.Get(testMint)
	if !ok {
		t.Fatal("token not tracked after create")
	}
	if token.Name != "Cat Coin" || token.Symbol != "CAT" {
		t.Errorf("token = %+v", token)
	}
	if token.Reserves.Sol != 30 {
		t.Errorf("reserves sol = %v, want 30", token.Reserves.Sol)
	}
	if adapter.LastEventAt() == 0 {
		t.Error("last event timestamp not recorded")
	}
}

func TestDispatchCreateInvalidMintDropped(t *testing.T) {
	adapter, book := newTestAdapter()

	adapter.Dispatch([]byte(`{"txType": "create", "mint": "not-a-mint"}`))

	if book.Len() != 0 {
		t.Errorf("tracked %d tokens, want 0", book.Len())
	}
}

func TestDispatchCreateScrubsProgramCreator(t *testing.T) {
	adapter, book := newTestAdapter()

	// A creator that is not base58 cannot be a wallet; the dev-wallet
	// field is cleared rather than poisoning the dev risk score.
	adapter.Dispatch([]byte(`{
		"txType": "create",
		"mint": "` + testMint + `",
		"traderPublicKey": "not!base58"
	}`))

	token, ok := book.Get(testMint)
	if !ok {
		t.Fatal("token not tracked")
	}
	if token.DevWallet != "" {
		t.Errorf("dev wallet = %q, want scrubbed", token.DevWallet)
	}
}

func TestDispatchTradeFreezesUsdLeg(t *testing.T) {
	adapter, book := newTestAdapter()
	book.SetSolPrice(150)

	adapter.Dispatch([]byte(`{"txType": "create", "mint": "` + testMint + `", "vTokensInBondingCurve": 1000000, "vSolInBondingCurve": 10}`))
	adapter.Dispatch([]byte(`{
		"txType": "buy",
		"mint": "` + testMint + `",
		"signature": "sig-1",
		"traderPublicKey": "TraderWallet",
		"tokenAmount": 1000,
		"solAmount": 0.5,
		"vTokensInBondingCurve": 1000000,
		"vSolInBondingCurve": 10,
		"timestamp": 1700000000000
	}`))

	token, _ := book.Get(testMint)
	if len(token.RecentTrades) != 1 {
		t.Fatalf("trades = %d, want 1", len(token.RecentTrades))
	}
	trade := token.RecentTrades[0]
	if trade.PriceSol != 0.00001 {
		t.Errorf("price sol = %v, want 0.00001", trade.PriceSol)
	}
	if trade.PriceUsd != 0.0015 {
		t.Errorf("price usd = %v, want 0.0015", trade.PriceUsd)
	}

	// Rate moves; the recorded trade price stays frozen.
	book.SetSolPrice(300)
	token, _ = book.Get(testMint)
	if token.RecentTrades[0].PriceUsd != 0.0015 {
		t.Errorf("price usd repriced to %v", token.RecentTrades[0].PriceUsd)
	}
}

func TestDispatchTradeUnknownTokenNoop(t *testing.T) {
	adapter, book := newTestAdapter()

	adapter.Dispatch([]byte(`{"txType": "buy", "mint": "` + testMint + `", "signature": "sig-1"}`))

	if book.Len() != 0 {
		t.Errorf("tracked %d tokens, want 0", book.Len())
	}
}

func TestDispatchHeartbeatAndMalformedAreNoops(t *testing.T) {
	adapter, book := newTestAdapter()

	adapter.Dispatch([]byte(`{"message": "Successfully subscribed to token creation events."}`))
	adapter.Dispatch([]byte(`{broken`))
	adapter.Dispatch([]byte(`{"txType": "something_else"}`))

	if book.Len() != 0 {
		t.Errorf("tracked %d tokens, want 0", book.Len())
	}
}

type stubFetcher struct {
	md *domain.TokenMetadata
}

func (s *stubFetcher) Fetch(ctx context.Context, uri string) (*domain.TokenMetadata, error) {
	return s.md, nil
}

func TestDispatchCreateEnrichesMetadata(t *testing.T) {
	book := tracker.New(tracker.Options{Logger: log.New(io.Discard, "", 0)})
	adapter := NewAdapter(AdapterOptions{
		Tracker: book,
		Fetcher: &stubFetcher{md: &domain.TokenMetadata{ImageURL: "https://cdn.example.com/cat.png"}},
		Logger:  log.New(io.Discard, "", 0),
	})

	adapter.Dispatch([]byte(`{"txType": "create", "mint": "` + testMint + `", "uri": "https://example.com/meta.json"}`))

	// Enrichment is asynchronous.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		token, _ := book.Get(testMint)
		if token != nil && token.Metadata.ImageURL != "" {
			if token.Metadata.ImageURL != "https://cdn.example.com/cat.png" {
				t.Errorf("image = %q", token.Metadata.ImageURL)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("metadata never patched in")
}

func TestRunDrainsFramesUntilClose(t *testing.T) {
	adapter, book := newTestAdapter()

	frames := make(chan []byte, 2)
	frames <- []byte(`{"txType": "create", "mint": "` + testMint + `"}`)
	close(frames)

	done := make(chan struct{})
	go func() {
		adapter.Run(context.Background(), frames)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after channel close")
	}
	if book.Len() != 1 {
		t.Errorf("tracked %d tokens, want 1", book.Len())
	}
}
