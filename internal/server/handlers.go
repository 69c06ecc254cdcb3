package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"treasuryd/internal/core/domain"
	"treasuryd/internal/infra/storage"
	"treasuryd/internal/treasury"
)

const walletSettingKey = "treasury_wallets"

const defaultProposalLimit = 20

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Message: message})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.deps.Snapshots.Latest(r.Context())
	if err != nil {
		if errors.Is(err, treasury.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "treasury data unavailable")
			return
		}
		slog.Error("Snapshot read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load treasury snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := storage.HistoryQuery{}

	if v := r.URL.Query().Get("start"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start timestamp, expected RFC3339")
			return
		}
		q.Start = &ts
	}
	if v := r.URL.Query().Get("end"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end timestamp, expected RFC3339")
			return
		}
		q.End = &ts
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}

	history, err := s.deps.Snapshots.History(r.Context(), q)
	if err != nil {
		slog.Error("History read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load snapshot history")
		return
	}
	if history == nil {
		history = []*domain.Snapshot{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleManualSnapshot(w http.ResponseWriter, r *http.Request) {
	var snapshot domain.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		writeError(w, http.StatusBadRequest, "invalid snapshot payload")
		return
	}
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now().UTC()
	}

	// Totals are always derived from the token records, never trusted
	// from the caller
	total := 0.0
	for _, t := range snapshot.Tokens {
		total += t.UsdValue
	}
	snapshot.TotalUsdValue = total

	stored, err := s.deps.Snapshots.Persist(r.Context(), &snapshot)
	if err != nil {
		slog.Error("Manual snapshot persist failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store snapshot")
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.deps.Refresh.TriggerNow(r.Context())
	if err != nil {
		if errors.Is(err, treasury.ErrGenerationInFlight) {
			writeError(w, http.StatusConflict, "snapshot generation already in progress")
			return
		}
		slog.Error("Manual refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, "snapshot generation failed")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// walletList resolves the tracked wallet set: an admin override stored in
// settings wins over the configured list.
func (s *Server) walletList(r *http.Request) []string {
	if s.deps.Settings != nil {
		raw, err := s.deps.Settings.Get(r.Context(), walletSettingKey)
		if err != nil {
			slog.Warn("Wallet setting read failed, using configured list", "error", err)
		} else if raw != nil {
			var wallets []string
			if err := json.Unmarshal(raw, &wallets); err != nil {
				slog.Warn("Malformed wallet setting, using configured list", "error", err)
			} else if len(wallets) > 0 {
				return wallets
			}
		}
	}
	return s.deps.Wallets
}

func (s *Server) handleNftHoldings(w http.ResponseWriter, r *http.Request) {
	if s.deps.NftSource == nil {
		s.serveStoredNfts(w, r)
		return
	}

	wallets := s.walletList(r)
	assets, err := s.deps.NftSource.FetchNfts(r.Context(), wallets)
	if err != nil {
		slog.Warn("Live NFT fetch failed, serving stored holdings", "error", err)
		s.serveStoredNfts(w, r)
		return
	}
	s.backfillFloors(r.Context(), assets)

	if s.deps.NftRepo != nil && len(assets) > 0 {
		batch := make([]*domain.NftAsset, len(assets))
		for i := range assets {
			batch[i] = &assets[i]
		}
		if err := s.deps.NftRepo.UpsertBatch(r.Context(), batch); err != nil {
			slog.Warn("NFT holding persist failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, assets)
}

// backfillFloors fills missing floor prices from the analytics floor query.
// The indexer's own floor wins when present; only zero floors are filled,
// matched by collection name.
func (s *Server) backfillFloors(ctx context.Context, assets []domain.NftAsset) {
	if s.deps.Floors == nil {
		return
	}
	missing := false
	for i := range assets {
		if assets[i].FloorPrice == 0 {
			missing = true
			break
		}
	}
	if !missing {
		return
	}

	floors, err := s.deps.Floors.FetchNftFloors(ctx)
	if err != nil {
		slog.Warn("Floor price fetch failed, keeping indexer floors", "error", err)
		return
	}
	for i := range assets {
		if assets[i].FloorPrice != 0 {
			continue
		}
		if floor, ok := floors[assets[i].Collection]; ok {
			assets[i].FloorPrice = floor
		}
	}
}

func (s *Server) serveStoredNfts(w http.ResponseWriter, r *http.Request) {
	if s.deps.NftRepo == nil {
		writeJSON(w, http.StatusOK, []domain.NftAsset{})
		return
	}
	stored, err := s.deps.NftRepo.GetAll(r.Context())
	if err != nil {
		slog.Error("Stored NFT read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load NFT holdings")
		return
	}
	assets := make([]domain.NftAsset, 0, len(stored))
	for _, a := range stored {
		assets = append(assets, *a)
	}
	writeJSON(w, http.StatusOK, assets)
}

func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request) {
	if s.deps.Proposals == nil {
		writeJSON(w, http.StatusOK, []domain.Proposal{})
		return
	}

	limit := defaultProposalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	proposals, err := s.deps.Proposals.FetchProposals(r.Context(), limit)
	if err != nil {
		slog.Error("Proposal fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to load governance proposals")
		return
	}
	if proposals == nil {
		proposals = []domain.Proposal{}
	}
	writeJSON(w, http.StatusOK, proposals)
}

const maxSettingSize = 64 << 10

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		writeError(w, http.StatusNotFound, "settings storage not configured")
		return
	}
	key := r.PathValue("key")

	value, err := s.deps.Settings.Get(r.Context(), key)
	if err != nil {
		slog.Error("Setting read failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load setting")
		return
	}
	if value == nil {
		writeError(w, http.StatusNotFound, "setting not found")
		return
	}
	writeJSON(w, http.StatusOK, json.RawMessage(value))
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		writeError(w, http.StatusNotFound, "settings storage not configured")
		return
	}
	key := r.PathValue("key")

	value, err := io.ReadAll(io.LimitReader(r.Body, maxSettingSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read setting value")
		return
	}
	// Values are stored as raw JSON so readers like walletList can decode
	// them without a second encoding layer
	if !json.Valid(value) {
		writeError(w, http.StatusBadRequest, "setting value must be valid JSON")
		return
	}

	if err := s.deps.Settings.Set(r.Context(), key, value); err != nil {
		slog.Error("Setting write failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store setting")
		return
	}
	slog.Info("Setting updated", "key", key)
	writeJSON(w, http.StatusOK, json.RawMessage(value))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	for _, check := range s.deps.Checks {
		if err := check.Health(r.Context()); err != nil {
			status = "critical"
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if status == "critical" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	report := make(map[string]string, len(s.deps.Checks))
	for name, check := range s.deps.Checks {
		if err := check.Health(r.Context()); err != nil {
			report[name] = err.Error()
		} else {
			report[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
