package treasury

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"treasuryd/internal/core/domain"
	"treasuryd/internal/metrics"
)

// ErrGenerationInFlight is returned when a manual trigger arrives while a
// generation cycle is already running. Triggers are skipped, not queued.
var ErrGenerationInFlight = errors.New("snapshot generation already in progress")

// DefaultInterval is the scheduler tick interval.
const DefaultInterval = 15 * time.Minute

// RetryConfig defines per-tick retry behavior.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    5 * time.Second,
	MaxDelay:        60 * time.Second,
	BackoffMultiple: 2.0,
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiple, float64(attempt))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}

// generator is the slice of Generator the scheduler drives.
type generator interface {
	Generate(ctx context.Context, trigger string) (*domain.Snapshot, error)
}

// Scheduler drives periodic, non-overlapping snapshot generation. A
// single-flight guard ensures at most one cycle runs at a time: a tick or
// manual trigger arriving mid-cycle is a no-op. Each tick retries with
// exponential backoff and starts a fresh attempt counter.
type Scheduler struct {
	gen      generator
	interval time.Duration
	retry    RetryConfig

	inFlight atomic.Bool
	running  atomic.Bool
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(gen generator, interval time.Duration, retry RetryConfig) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig
	}
	return &Scheduler{
		gen:      gen,
		interval: interval,
		retry:    retry,
		stop:     make(chan struct{}),
	}
}

// Start begins the generation loop, running once immediately at startup.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already running")
	}

	slog.Info("Starting snapshot scheduler", "interval", s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
	return nil
}

// Stop stops the scheduler and waits for an in-flight cycle to settle.
func (s *Scheduler) Stop() {
	if s.running.CompareAndSwap(true, false) {
		close(s.stop)
	}
	s.wg.Wait()
	slog.Info("Snapshot scheduler stopped")
}

// TriggerNow forces an immediate generation cycle. Returns
// ErrGenerationInFlight when one is already running.
func (s *Scheduler) TriggerNow(ctx context.Context) (*domain.Snapshot, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		metrics.GenerationSkippedTotal.Inc()
		return nil, ErrGenerationInFlight
	}
	defer s.inFlight.Store(false)

	return s.gen.Generate(ctx, "manual")
}

// runCycle runs one scheduled generation with retries. Overlapping ticks
// are skipped rather than queued.
func (s *Scheduler) runCycle(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		metrics.GenerationSkippedTotal.Inc()
		slog.Info("Generation already in progress, skipping tick")
		return
	}
	defer s.inFlight.Store(false)

	var lastErr error
	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		if _, err := s.gen.Generate(ctx, "scheduler"); err == nil {
			return
		} else {
			lastErr = err
		}

		if attempt == s.retry.MaxAttempts-1 {
			break
		}

		delay := calculateBackoff(attempt, s.retry)
		slog.Warn("Scheduled generation failed, retrying",
			"attempt", attempt+1,
			"max_attempts", s.retry.MaxAttempts,
			"retry_in", delay,
			"error", lastErr)

		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-time.After(delay):
		}
	}

	slog.Error("Scheduled generation gave up for this tick",
		"attempts", s.retry.MaxAttempts, "error", lastErr)
}
