package analytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:         srv.URL,
		APIKey:          "test-key",
		BalancesQueryID: "101",
		PricesQueryID:   "102",
		FloorsQueryID:   "103",
	})
}

func TestFetchTokensAndWallets(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-dune-api-key") != "test-key" {
			t.Errorf("Missing api key header")
		}
		if r.URL.Path != "/query/101/results" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"result": {"rows": [
			{"address": "0xaaa", "symbol": "ETH", "name": "Ethereum", "amount": 10.5},
			{"address": "0xaaa", "symbol": "USDC", "name": "USD Coin", "amount": 50000},
			{"address": "0xbbb", "symbol": "ETH", "name": "Ethereum", "amount": 2}
		]}}`))
	})

	tokens, err := a.FetchTokens(context.Background())
	if err != nil {
		t.Fatalf("FetchTokens failed: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("Expected 3 token rows, got %d", len(tokens))
	}
	if tokens[0].Source != "analytics" {
		t.Errorf("Expected analytics provenance, got %s", tokens[0].Source)
	}

	wallets, err := a.FetchWallets(context.Background())
	if err != nil {
		t.Fatalf("FetchWallets failed: %v", err)
	}
	if len(wallets) != 2 {
		t.Fatalf("Expected 2 distinct wallets, got %d", len(wallets))
	}
	if wallets[0].Address != "0xaaa" || wallets[1].Address != "0xbbb" {
		t.Errorf("Expected first-seen wallet order, got %+v", wallets)
	}
}

func TestFetchPrices(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": {"rows": [
			{"symbol": "ETH", "name": "Ethereum", "price": 2450.50},
			{"symbol": "USDC", "name": "USD Coin", "price": 1.0}
		]}}`))
	})

	prices, err := a.FetchPrices(context.Background())
	if err != nil {
		t.Fatalf("FetchPrices failed: %v", err)
	}
	if prices["ETH"] != 2450.50 || prices["USDC"] != 1.0 {
		t.Errorf("Unexpected prices: %+v", prices)
	}
}

func TestFetchTokens_UnconfiguredQuery(t *testing.T) {
	a := New(Config{APIKey: "k"})
	tokens, err := a.FetchTokens(context.Background())
	if err != nil {
		t.Fatalf("FetchTokens failed: %v", err)
	}
	if tokens != nil {
		t.Error("Expected nil tokens without a balances query id")
	}
}

func TestQueryRows_ErrorStatus(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})
	if _, err := a.FetchPrices(context.Background()); err == nil {
		t.Fatal("Expected error on 429 response")
	}
}
