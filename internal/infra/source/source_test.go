package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"treasuryd/internal/core/domain"
)

type stubSource struct {
	name   string
	kind   domain.SourceKind
	tokens []domain.TokenBalance
	err    error
	delay  time.Duration
}

func (s *stubSource) Name() string            { return s.name }
func (s *stubSource) Kind() domain.SourceKind { return s.kind }

func (s *stubSource) FetchTokens(ctx context.Context) ([]domain.TokenBalance, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.tokens, nil
}

func TestCollect_AllSettleDespiteFailure(t *testing.T) {
	sources := []TokenSource{
		&stubSource{
			name: "custody", kind: domain.SourceCustody,
			tokens: []domain.TokenBalance{{Symbol: "ETH", Amount: 1, Source: domain.SourceCustody}},
		},
		&stubSource{name: "analytics", kind: domain.SourceAnalytics, err: errors.New("rate limited")},
		&stubSource{
			name: "ledger", kind: domain.SourceManualLedger,
			tokens: []domain.TokenBalance{{Symbol: "DAI", Amount: 5, Source: domain.SourceManualLedger}},
			delay:  20 * time.Millisecond,
		},
	}

	results := Collect(context.Background(), sources)
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	if results[0].Failed() || len(results[0].Tokens) != 1 {
		t.Errorf("Expected custody to succeed with 1 token, got %+v", results[0])
	}
	if !results[1].Failed() {
		t.Error("Expected analytics result to be marked failed")
	}
	if len(results[1].Tokens) != 0 {
		t.Error("Expected failed source to contribute zero records")
	}
	if results[2].Failed() || results[2].Tokens[0].Symbol != "DAI" {
		t.Errorf("Expected slow ledger source to still settle, got %+v", results[2])
	}
}

func TestCollect_ZeroRecordsIsNotFailure(t *testing.T) {
	results := Collect(context.Background(), []TokenSource{
		&stubSource{name: "custody", kind: domain.SourceCustody},
	})
	if results[0].Failed() {
		t.Error("Expected empty result without error to not be a failure")
	}
}
