package treasury

import (
	"context"
	"errors"
	"testing"
	"time"

	"treasuryd/internal/core/domain"
	"treasuryd/internal/infra/storage"
)

type stubSource struct {
	name   string
	kind   domain.SourceKind
	tokens []domain.TokenBalance
	err    error
	calls  int
}

func (s *stubSource) Name() string            { return s.name }
func (s *stubSource) Kind() domain.SourceKind { return s.kind }

func (s *stubSource) FetchTokens(ctx context.Context) ([]domain.TokenBalance, error) {
	s.calls++
	return s.tokens, s.err
}

type stubPrices struct {
	prices map[string]float64
	err    error
}

func (s *stubPrices) FetchPrices(ctx context.Context) (map[string]float64, error) {
	return s.prices, s.err
}

type stubSnapshotRepo struct {
	latest      *domain.Snapshot
	upserted    []*domain.Snapshot
	upsertErr   error
	upsertCalls int
}

func (r *stubSnapshotRepo) GetLatest(ctx context.Context) (*domain.Snapshot, error) {
	return r.latest, nil
}

func (r *stubSnapshotRepo) GetHistory(ctx context.Context, q storage.HistoryQuery) ([]*domain.Snapshot, error) {
	return nil, nil
}

func (r *stubSnapshotRepo) Upsert(ctx context.Context, s *domain.Snapshot) (*domain.Snapshot, error) {
	r.upsertCalls++
	if r.upsertErr != nil {
		return nil, r.upsertErr
	}
	r.upserted = append(r.upserted, s)
	r.latest = s
	return s, nil
}

type stubNotifier struct {
	events []domain.UpdateEvent
}

func (n *stubNotifier) Publish(e domain.UpdateEvent) {
	n.events = append(n.events, e)
}

func newTestGenerator(repo *stubSnapshotRepo, sources []*stubSource) *Generator {
	g := NewGenerator(GeneratorConfig{
		Snapshots: repo,
		Prices:    &stubPrices{prices: map[string]float64{"ETH": 3000}},
	})
	for _, s := range sources {
		g.sources = append(g.sources, s)
	}
	return g
}

func TestLatest_FreshSnapshotServedWithoutRegeneration(t *testing.T) {
	src := &stubSource{name: "analytics", kind: domain.SourceAnalytics}
	repo := &stubSnapshotRepo{latest: &domain.Snapshot{
		Timestamp:     time.Now().Add(-1 * time.Minute),
		TotalUsdValue: 42,
	}}
	g := newTestGenerator(repo, []*stubSource{src})

	got, err := g.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.TotalUsdValue != 42 {
		t.Errorf("Expected stored snapshot, got %+v", got)
	}
	if src.calls != 0 {
		t.Errorf("Fresh snapshot must not trigger generation, source called %d times", src.calls)
	}
}

func TestLatest_StaleSnapshotTriggersGeneration(t *testing.T) {
	src := &stubSource{
		name: "analytics",
		kind: domain.SourceAnalytics,
		tokens: []domain.TokenBalance{
			{Symbol: "ETH", Amount: 2, Source: domain.SourceAnalytics},
		},
	}
	repo := &stubSnapshotRepo{latest: &domain.Snapshot{
		Timestamp:     time.Now().Add(-10 * time.Minute),
		TotalUsdValue: 42,
	}}
	g := newTestGenerator(repo, []*stubSource{src})

	got, err := g.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("Expected one generation, source called %d times", src.calls)
	}
	if got.TotalUsdValue != 6000 {
		t.Errorf("Expected freshly generated snapshot, got total %f", got.TotalUsdValue)
	}
	if len(repo.upserted) != 1 {
		t.Errorf("Expected generated snapshot persisted, got %d upserts", len(repo.upserted))
	}
}

func TestLatest_AllSourcesFailedServesStaleSnapshot(t *testing.T) {
	src := &stubSource{name: "analytics", kind: domain.SourceAnalytics, err: errors.New("down")}
	stale := &domain.Snapshot{
		Timestamp:     time.Now().Add(-2 * time.Hour),
		TotalUsdValue: 42,
	}
	repo := &stubSnapshotRepo{latest: stale}
	g := newTestGenerator(repo, []*stubSource{src})

	got, err := g.Latest(context.Background())
	if err != nil {
		t.Fatalf("Expected stale fallback, got error: %v", err)
	}
	if got.TotalUsdValue != 42 {
		t.Errorf("Expected the stale snapshot back, got %+v", got)
	}
}

func TestLatest_NeverPersistedAndGenerationFailed(t *testing.T) {
	src := &stubSource{name: "analytics", kind: domain.SourceAnalytics, err: errors.New("down")}
	g := newTestGenerator(&stubSnapshotRepo{}, []*stubSource{src})

	_, err := g.Latest(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
}

func TestGenerate_PersistFailureReturnsSnapshotAndError(t *testing.T) {
	src := &stubSource{
		name: "analytics",
		kind: domain.SourceAnalytics,
		tokens: []domain.TokenBalance{
			{Symbol: "ETH", Amount: 1, Source: domain.SourceAnalytics},
		},
	}
	repo := &stubSnapshotRepo{upsertErr: errors.New("db down")}
	notifier := &stubNotifier{}
	g := newTestGenerator(repo, []*stubSource{src})
	g.notifier = notifier

	got, err := g.Generate(context.Background(), "scheduler")
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("Expected ErrPersistFailed so the scheduler retries, got %v", err)
	}
	if got == nil || got.TotalUsdValue != 3000 {
		t.Errorf("Expected computed snapshot despite persist failure, got %+v", got)
	}
	if len(notifier.events) != 0 {
		t.Errorf("Unpersisted snapshot must not broadcast, got %d events", len(notifier.events))
	}
}

func TestLatest_PersistFailureStillServesComputedSnapshot(t *testing.T) {
	src := &stubSource{
		name: "analytics",
		kind: domain.SourceAnalytics,
		tokens: []domain.TokenBalance{
			{Symbol: "ETH", Amount: 1, Source: domain.SourceAnalytics},
		},
	}
	repo := &stubSnapshotRepo{upsertErr: errors.New("db down")}
	g := newTestGenerator(repo, []*stubSource{src})

	got, err := g.Latest(context.Background())
	if err != nil {
		t.Fatalf("Read path must absorb a persist failure: %v", err)
	}
	if got.TotalUsdValue != 3000 {
		t.Errorf("Expected the computed snapshot, got %+v", got)
	}
}

func TestGenerate_PartialFailureUsesHealthySources(t *testing.T) {
	healthy := &stubSource{
		name: "analytics",
		kind: domain.SourceAnalytics,
		tokens: []domain.TokenBalance{
			{Symbol: "ETH", Amount: 2, Source: domain.SourceAnalytics},
		},
	}
	broken := &stubSource{name: "custody", kind: domain.SourceCustody, err: errors.New("502")}
	g := newTestGenerator(&stubSnapshotRepo{}, []*stubSource{healthy, broken})

	got, err := g.Generate(context.Background(), "scheduler")
	if err != nil {
		t.Fatalf("Partial failure must not fail the cycle: %v", err)
	}
	if len(got.Tokens) != 1 || got.Tokens[0].Symbol != "ETH" {
		t.Errorf("Expected healthy source's records, got %+v", got.Tokens)
	}
}

func TestGenerate_PublishesUpdateEvent(t *testing.T) {
	src := &stubSource{
		name: "analytics",
		kind: domain.SourceAnalytics,
		tokens: []domain.TokenBalance{
			{Symbol: "ETH", Amount: 2, Source: domain.SourceAnalytics},
		},
	}
	notifier := &stubNotifier{}
	g := newTestGenerator(&stubSnapshotRepo{}, []*stubSource{src})
	g.notifier = notifier

	if _, err := g.Generate(context.Background(), "manual"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("Expected one update event, got %d", len(notifier.events))
	}
	ev := notifier.events[0]
	if ev.TotalUsdValue != 6000 || ev.TokenCount != 1 {
		t.Errorf("Unexpected event payload: %+v", ev)
	}
	if _, err := time.Parse(time.RFC3339, ev.Timestamp); err != nil {
		t.Errorf("Event timestamp not RFC3339: %q", ev.Timestamp)
	}
}

func TestGenerate_AllSourcesFailedDoesNotPublish(t *testing.T) {
	src := &stubSource{name: "analytics", kind: domain.SourceAnalytics, err: errors.New("down")}
	notifier := &stubNotifier{}
	g := newTestGenerator(&stubSnapshotRepo{}, []*stubSource{src})
	g.notifier = notifier

	if _, err := g.Generate(context.Background(), "scheduler"); err == nil {
		t.Fatal("Expected error when every source fails")
	}
	if len(notifier.events) != 0 {
		t.Errorf("Failed generation must not broadcast, got %d events", len(notifier.events))
	}
}
