package nftindex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchNfts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("Missing api key header")
		}
		switch {
		case strings.HasPrefix(r.URL.Path, "/0xwallet/nft"):
			w.Write([]byte(`{"result": [
				{"token_address": "0xkong", "token_id": "7",
				 "normalized_metadata": {"name": "Kong NFT", "image": "ipfs://img"}},
				{"token_address": "0xkong", "token_id": "8", "name": "Kong NFT"}
			]}`))
		case strings.HasPrefix(r.URL.Path, "/nft/0xkong/floor-price"):
			w.Write([]byte(`{"floor_price_usd": 1200.5}`))
		default:
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, APIKey: "test-key"})
	assets, err := a.FetchNfts(context.Background(), []string{"0xwallet"})
	if err != nil {
		t.Fatalf("FetchNfts failed: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("Expected 2 assets, got %d", len(assets))
	}

	first := assets[0]
	if first.ContractAddress != "0xkong" || first.TokenID != "7" {
		t.Errorf("Unexpected asset key: %+v", first)
	}
	if first.Collection != "Kong NFT" || first.Image != "ipfs://img" {
		t.Errorf("Expected normalized metadata to win: %+v", first)
	}
	if first.FloorPrice != 1200.5 {
		t.Errorf("Expected floor 1200.5, got %f", first.FloorPrice)
	}
}

func TestFetchNfts_AllWalletsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, APIKey: "test-key"})
	if _, err := a.FetchNfts(context.Background(), []string{"0xa", "0xb"}); err == nil {
		t.Fatal("Expected error when every wallet fails")
	}
}

func TestFetchNfts_PartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/0xbad/") {
			http.Error(w, "nope", http.StatusBadGateway)
			return
		}
		if strings.Contains(r.URL.Path, "floor-price") {
			w.Write([]byte(`{"floor_price_usd": 10}`))
			return
		}
		w.Write([]byte(`{"result": [{"token_address": "0xc", "token_id": "1", "name": "C"}]}`))
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, APIKey: "test-key"})
	assets, err := a.FetchNfts(context.Background(), []string{"0xbad", "0xgood"})
	if err != nil {
		t.Fatalf("Expected partial success, got error: %v", err)
	}
	if len(assets) != 1 {
		t.Errorf("Expected 1 asset from the healthy wallet, got %d", len(assets))
	}
}
