package treasury

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"treasuryd/internal/core/domain"
	redisclient "treasuryd/internal/infra/redis"
	"treasuryd/internal/infra/source"
	"treasuryd/internal/infra/storage"
	"treasuryd/internal/metrics"
)

// ErrUnavailable is returned when no snapshot has ever been persisted and
// generation also failed. It is the only error the read path surfaces.
var ErrUnavailable = errors.New("treasury data unavailable")

// ErrPersistFailed marks a cycle that computed a snapshot but could not
// store it. Generate returns it alongside the snapshot: the scheduler
// retries the cycle, a read caller still gets the computed data.
var ErrPersistFailed = errors.New("failed to persist snapshot")

// DefaultMaxAge is the freshness window for serving a stored snapshot
// without regenerating.
const DefaultMaxAge = 5 * time.Minute

// Notifier publishes treasury update events to connected listeners.
type Notifier interface {
	Publish(event domain.UpdateEvent)
}

// GeneratorConfig wires a Generator.
type GeneratorConfig struct {
	Sources   []source.TokenSource
	Prices    source.PriceSource
	Snapshots storage.SnapshotRepository
	Nfts      storage.NftAssetRepository
	Cache     *redisclient.Client // optional
	Notifier  Notifier            // optional
	MaxAge    time.Duration
}

// Generator owns the generate-or-serve path. An inbound read and a
// scheduler tick go through the same code; the scheduler just skips the
// freshness check.
type Generator struct {
	sources   []source.TokenSource
	prices    source.PriceSource
	snapshots storage.SnapshotRepository
	nfts      storage.NftAssetRepository
	cache     *redisclient.Client
	notifier  Notifier
	maxAge    time.Duration
	now       func() time.Time
}

// NewGenerator creates a Generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Generator{
		sources:   cfg.Sources,
		prices:    cfg.Prices,
		snapshots: cfg.Snapshots,
		nfts:      cfg.Nfts,
		cache:     cfg.Cache,
		notifier:  cfg.Notifier,
		maxAge:    maxAge,
		now:       time.Now,
	}
}

// fresh reports whether a snapshot is young enough to serve directly.
func (g *Generator) fresh(s *domain.Snapshot) bool {
	return s != nil && s.Age(g.now()) < g.maxAge
}

// Latest is the read path. Fresh snapshot: served unchanged. Stale or
// absent: a full generation cycle runs. Generation failed: the last
// persisted snapshot is served regardless of age; only when nothing was
// ever persisted does the caller get ErrUnavailable.
func (g *Generator) Latest(ctx context.Context) (*domain.Snapshot, error) {
	if g.cache != nil {
		cached, err := g.cache.GetLatest(ctx)
		if err != nil {
			slog.Warn("Snapshot cache read failed", "error", err)
		} else if g.fresh(cached) {
			metrics.CacheReadTotal.WithLabelValues("fresh").Inc()
			slog.Debug("Serving cached snapshot",
				"age", cached.Age(g.now()).Round(time.Second))
			return cached, nil
		}
	}

	stored, err := g.snapshots.GetLatest(ctx)
	if err != nil {
		// Store unreachable reads as absent: force a generation attempt
		slog.Warn("Snapshot store read failed, treating as absent", "error", err)
		stored = nil
	}
	if g.fresh(stored) {
		g.fillCache(ctx, stored)
		metrics.CacheReadTotal.WithLabelValues("fresh").Inc()
		slog.Debug("Serving stored snapshot",
			"age", stored.Age(g.now()).Round(time.Second))
		return stored, nil
	}

	generated, genErr := g.Generate(ctx, "request")
	if generated != nil {
		// A persist failure does not cost the caller the computed data
		metrics.CacheReadTotal.WithLabelValues("generated").Inc()
		return generated, nil
	}

	if stored != nil {
		metrics.CacheReadTotal.WithLabelValues("stale_fallback").Inc()
		slog.Warn("Generation failed, serving stale snapshot",
			"age", stored.Age(g.now()).Round(time.Second), "error", genErr)
		return stored, nil
	}

	metrics.CacheReadTotal.WithLabelValues("unavailable").Inc()
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, genErr)
}

// History reads a time-bounded snapshot range, ascending by timestamp.
func (g *Generator) History(
	ctx context.Context,
	q storage.HistoryQuery,
) ([]*domain.Snapshot, error) {
	return g.snapshots.GetHistory(ctx, q)
}

// Generate runs one full fetch+merge+persist cycle, ignoring freshness.
// Individual source failures become empty contributions; the cycle fails
// when every source failed or the snapshot could not be persisted. A
// persist failure still returns the computed snapshot, paired with
// ErrPersistFailed so the scheduler can retry the cycle.
func (g *Generator) Generate(ctx context.Context, trigger string) (*domain.Snapshot, error) {
	start := time.Now()
	slog.Info("Generating treasury snapshot", "trigger", trigger)

	// Fan out: all token sources plus the price oracle run concurrently,
	// and merge begins only after every call has settled.
	pricesCh := make(chan map[string]float64, 1)
	go func() {
		if g.prices == nil {
			pricesCh <- nil
			return
		}
		prices, err := g.prices.FetchPrices(ctx)
		if err != nil {
			slog.Warn("Price fetch failed, resolving unknown prices to zero", "error", err)
			metrics.SourceFetchTotal.WithLabelValues("prices", "error").Inc()
			prices = nil
		} else {
			metrics.SourceFetchTotal.WithLabelValues("prices", "ok").Inc()
		}
		pricesCh <- prices
	}()

	results := source.Collect(ctx, g.sources)
	prices := <-pricesCh

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}
	if len(results) > 0 && failed == len(results) {
		metrics.GenerationTotal.WithLabelValues(trigger, "error").Inc()
		return nil, fmt.Errorf("all %d sources failed", failed)
	}

	var nfts []domain.NftAsset
	if g.nfts != nil {
		stored, err := g.nfts.GetAll(ctx)
		if err != nil {
			slog.Warn("NFT asset read failed, snapshot will omit NFTs", "error", err)
		} else {
			for _, a := range stored {
				nfts = append(nfts, *a)
			}
		}
	}

	snapshot := Merge(MergeInput{
		Results: results,
		Prices:  prices,
		Nfts:    nfts,
		Now:     g.now(),
	})

	stored, err := g.snapshots.Upsert(ctx, snapshot)
	if err != nil {
		// No cache fill, no broadcast: the snapshot is not durable and the
		// scheduler will run the cycle again
		metrics.PersistFailuresTotal.Inc()
		metrics.GenerationTotal.WithLabelValues(trigger, "error").Inc()
		slog.Warn("Failed to persist snapshot", "trigger", trigger, "error", err)
		return snapshot, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	snapshot = stored

	g.fillCache(ctx, snapshot)

	metrics.GenerationTotal.WithLabelValues(trigger, "ok").Inc()
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	metrics.SnapshotTotalUsd.Set(snapshot.TotalUsdValue)
	metrics.SnapshotTokens.Set(float64(len(snapshot.Tokens)))

	slog.Info("Snapshot generated",
		"trigger", trigger,
		"total_usd", snapshot.TotalUsdValue,
		"tokens", len(snapshot.Tokens),
		"failed_sources", failed,
		"duration", time.Since(start).Round(time.Millisecond))

	if g.notifier != nil {
		g.notifier.Publish(domain.NewUpdateEvent(snapshot))
	}
	return snapshot, nil
}

// Persist force-persists an externally supplied snapshot (manual
// correction) and invalidates the hot cache.
func (g *Generator) Persist(ctx context.Context, s *domain.Snapshot) (*domain.Snapshot, error) {
	stored, err := g.snapshots.Upsert(ctx, s)
	if err != nil {
		return nil, err
	}
	if g.cache != nil {
		if err := g.cache.Invalidate(ctx); err != nil {
			slog.Warn("Cache invalidation failed", "error", err)
		}
	}
	return stored, nil
}

func (g *Generator) fillCache(ctx context.Context, s *domain.Snapshot) {
	if g.cache == nil || s == nil {
		return
	}
	if err := g.cache.SetLatest(ctx, s, g.maxAge); err != nil {
		slog.Warn("Snapshot cache write failed", "error", err)
	}
}
