package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"okapi/internal/config"
	"okapi/internal/logger"
	"okapi/internal/rule"
	"okapi/pkg/metrics"
)

// RuleLister is the scheduler's view of the rule store. It is consulted
// afresh on every tick, so rule changes take effect without a restart.
type RuleLister interface {
	ListEnabledTriggerRules(ctx context.Context) ([]rule.TriggerRule, error)
}

// Scheduler drives the engine loop. Each tick it re-reads the enabled
// rules, picks the ones whose frequency has elapsed and runs them with
// bounded concurrency. A tick finishes before the next one starts, so
// two runs of the same rule can never overlap.
type Scheduler struct {
	lister RuleLister
	runner *Runner
	cfg    config.EngineConfig
	logger logger.Logger

	mu      sync.Mutex
	lastRun map[string]time.Time
}

func NewScheduler(lister RuleLister, runner *Runner, cfg config.EngineConfig, log logger.Logger) *Scheduler {
	return &Scheduler{
		lister:  lister,
		runner:  runner,
		cfg:     cfg,
		logger:  log,
		lastRun: make(map[string]time.Time),
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.cfg.TickInterval()
	s.logger.Infow("Scheduler started", "tick_interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduling pass and waits for the runs it launched.
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.SchedulerTickDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()

	rules, err := s.lister.ListEnabledTriggerRules(ctx)
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to load rules for tick",
			"error", err,
		)
		return
	}

	metrics.SetActiveRules(len(rules))
	s.prune(rules)

	due := s.dueRules(rules, start)
	if len(due) == 0 {
		return
	}

	s.logger.InfowCtx(ctx, "Running due rules",
		"due", len(due),
		"enabled", len(rules),
	)

	g, runCtx := errgroup.WithContext(ctx)
	if s.cfg.MaxConcurrentRuns > 0 {
		g.SetLimit(s.cfg.MaxConcurrentRuns)
	}

	for i := range due {
		tr := due[i]
		g.Go(func() error {
			s.runner.Run(runCtx, &tr)
			return nil
		})
	}

	_ = g.Wait()
}

func (s *Scheduler) dueRules(rules []rule.TriggerRule, now time.Time) []rule.TriggerRule {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []rule.TriggerRule
	for _, tr := range rules {
		last, ran := s.lastRun[tr.ID]
		if ran && now.Sub(last) < tr.Schedule.Frequency() {
			continue
		}
		s.lastRun[tr.ID] = now
		due = append(due, tr)
	}

	return due
}

// prune drops scheduling state for rules that were deleted or disabled.
func (s *Scheduler) prune(rules []rule.TriggerRule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(rules))
	for _, tr := range rules {
		seen[tr.ID] = struct{}{}
	}

	for id := range s.lastRun {
		if _, ok := seen[id]; !ok {
			delete(s.lastRun, id)
		}
	}
}
