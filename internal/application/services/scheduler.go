package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/registry"
)

// DefaultCheckInterval is the period of the recurring sweep
const DefaultCheckInterval = 2 * time.Hour

// Ticker is the subset of *time.Ticker the scheduler needs
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// OutcomeHandler applies a check outcome to shared state
type OutcomeHandler func(outcome plugindomain.CheckOutcome)

// SchedulerOption configures an UpdateScheduler
type SchedulerOption func(*UpdateScheduler)

// WithInterval sets the sweep period
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *UpdateScheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithConcurrency bounds how many checks a sweep runs at once
func WithConcurrency(n int) SchedulerOption {
	return func(s *UpdateScheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithTickerFunc replaces ticker construction
func WithTickerFunc(fn func(time.Duration) Ticker) SchedulerOption {
	return func(s *UpdateScheduler) {
		s.newTicker = fn
	}
}

// UpdateScheduler runs checks on demand and sweeps every registered plugin
// on a fixed interval. The recurring sweep is armed at most once.
type UpdateScheduler struct {
	registry *registry.PluginRegistry
	checker  *UpdateChecker
	apply    OutcomeHandler
	logger   zerolog.Logger

	interval    time.Duration
	concurrency int
	newTicker   func(time.Duration) Ticker

	mu     sync.Mutex
	armed  bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewUpdateScheduler creates a scheduler. apply is called with every outcome.
func NewUpdateScheduler(reg *registry.PluginRegistry, checker *UpdateChecker, apply OutcomeHandler, logger zerolog.Logger, opts ...SchedulerOption) *UpdateScheduler {
	s := &UpdateScheduler{
		registry:    reg,
		checker:     checker,
		apply:       apply,
		logger:      logger.With().Str("component", "scheduler").Logger(),
		interval:    DefaultCheckInterval,
		concurrency: 4,
		newTicker:   NewTimeTicker,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckOne checks a single registered plugin immediately
func (s *UpdateScheduler) CheckOne(ctx context.Context, sourceURL string) plugindomain.CheckOutcome {
	entry, ok := s.registry.Get(sourceURL)
	if !ok {
		return plugindomain.CheckFailed(plugindomain.Entry{SourceURL: sourceURL},
			fmt.Errorf("%w: %s", plugindomain.ErrNotRegistered, sourceURL))
	}

	outcome := s.checker.Check(ctx, entry)
	if s.apply != nil {
		s.apply(outcome)
	}
	return outcome
}

// Sweep checks every registered plugin. Checks for different plugins run
// concurrently up to the configured limit and in no particular order.
func (s *UpdateScheduler) Sweep(ctx context.Context) []plugindomain.CheckOutcome {
	sweepID := uuid.NewString()
	entries := s.registry.All()
	log := s.logger.With().Str("sweep_id", sweepID).Logger()
	log.Debug().Int("plugins", len(entries)).Msg("sweep started")

	outcomes := make([]plugindomain.CheckOutcome, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			// one plugin's failure never stops the others
			outcomes[i] = s.CheckOne(gctx, entry.SourceURL)
			return nil
		})
	}
	_ = g.Wait()

	var outdated, failed int
	for _, o := range outcomes {
		switch o.Status {
		case plugindomain.StatusOutdated:
			outdated++
		case plugindomain.StatusCheckFailed:
			failed++
		}
	}
	log.Info().Int("plugins", len(entries)).Int("outdated", outdated).Int("failed", failed).Msg("sweep finished")

	return outcomes
}

// Arm starts the recurring sweep. Only the first call has an effect; it
// reports whether this call armed the timer.
func (s *UpdateScheduler) Arm(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.armed {
		return false
	}
	s.armed = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	ticker := s.newTicker(s.interval)

	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				s.Sweep(ctx)
			}
		}
	}()

	s.logger.Info().Dur("interval", s.interval).Msg("recurring sweep armed")
	return true
}

// Armed reports whether the recurring sweep has been started
func (s *UpdateScheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Interval returns the sweep period
func (s *UpdateScheduler) Interval() time.Duration {
	return s.interval
}

// Stop halts the recurring sweep and waits for an in-progress sweep to end.
// The scheduler cannot be re-armed afterwards.
func (s *UpdateScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.armed = true
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
