// Package server exposes the treasury HTTP API, the websocket endpoint
// and the operational health/metrics endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"treasuryd/internal/core/domain"
	"treasuryd/internal/infra/storage"
)

// SnapshotService is the read/write surface of the treasury pipeline the
// handlers depend on.
type SnapshotService interface {
	Latest(ctx context.Context) (*domain.Snapshot, error)
	History(ctx context.Context, q storage.HistoryQuery) ([]*domain.Snapshot, error)
	Persist(ctx context.Context, s *domain.Snapshot) (*domain.Snapshot, error)
}

// RefreshTrigger forces an immediate generation cycle.
type RefreshTrigger interface {
	TriggerNow(ctx context.Context) (*domain.Snapshot, error)
}

// ProposalFetcher reads governance proposals from the voting hub.
type ProposalFetcher interface {
	FetchProposals(ctx context.Context, limit int) ([]domain.Proposal, error)
}

// NftFetcher reads NFT holdings for a set of wallets.
type NftFetcher interface {
	FetchNfts(ctx context.Context, wallets []string) ([]domain.NftAsset, error)
}

// FloorSource reads collection floor prices, keyed by collection name.
type FloorSource interface {
	FetchNftFloors(ctx context.Context) (map[string]float64, error)
}

// WsHandler serves the websocket upgrade endpoint.
type WsHandler interface {
	ServeWs(w http.ResponseWriter, r *http.Request)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Config holds HTTP server settings.
type Config struct {
	Port int `yaml:"port"`
}

// Deps wires the handler dependencies. Optional fields may be nil; the
// corresponding endpoints then report the feature as unconfigured.
type Deps struct {
	Snapshots SnapshotService
	Refresh   RefreshTrigger
	Proposals ProposalFetcher
	NftSource NftFetcher
	Floors    FloorSource
	NftRepo   storage.NftAssetRepository
	Settings  storage.SettingRepository
	Ws        WsHandler

	// Wallets is the configured wallet list, used when no admin override
	// is stored
	Wallets []string

	// Health checks by dependency name
	Checks map[string]HealthChecker
}

// Server is the HTTP front of the service.
type Server struct {
	deps   Deps
	server *http.Server
}

// New creates the HTTP server and registers all routes.
func New(cfg Config, deps Deps) *Server {
	mux := http.NewServeMux()
	s := &Server{
		deps: deps,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
	}

	mux.HandleFunc("GET /api/treasury/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/treasury/history", s.handleHistory)
	mux.HandleFunc("POST /api/treasury/snapshots", s.handleManualSnapshot)
	mux.HandleFunc("POST /api/treasury/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/nfts/holdings", s.handleNftHoldings)
	mux.HandleFunc("GET /api/governance/proposals", s.handleProposals)
	mux.HandleFunc("GET /api/admin/settings/{key}", s.handleGetSetting)
	mux.HandleFunc("PUT /api/admin/settings/{key}", s.handlePutSetting)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailedHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	if deps.Ws != nil {
		mux.HandleFunc("GET /ws", deps.Ws.ServeWs)
	}

	return s
}

// Handler exposes the route table, used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
