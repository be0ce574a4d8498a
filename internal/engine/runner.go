package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"okapi/internal/audience"
	"okapi/internal/config"
	"okapi/internal/dispatch"
	"okapi/internal/logger"
	"okapi/internal/metricsource"
	"okapi/internal/recorder"
	"okapi/internal/rule"
	"okapi/pkg/logging"
	"okapi/pkg/metrics"
)

const (
	OutcomeTriggered    = "triggered"
	OutcomeNotTriggered = "not_triggered"
	OutcomeError        = "error"
)

// Runner executes one due rule end to end: fetch a metric snapshot,
// evaluate and combine the conditions, resolve the audience, dispatch
// the actions and write exactly one execution record.
type Runner struct {
	source     metricsource.Source
	resolver   *audience.Resolver
	dispatcher *dispatch.Dispatcher
	recorder   *recorder.Recorder
	engineCfg  config.EngineConfig
	logger     logger.Logger
}

func NewRunner(source metricsource.Source, resolver *audience.Resolver, dispatcher *dispatch.Dispatcher, rec *recorder.Recorder, engineCfg config.EngineConfig, log logger.Logger) *Runner {
	return &Runner{
		source:     source,
		resolver:   resolver,
		dispatcher: dispatcher,
		recorder:   rec,
		engineCfg:  engineCfg,
		logger:     log,
	}
}

// Run never returns an error to the scheduler: every outcome, including
// an infrastructure failure, ends in an execution record.
func (r *Runner) Run(ctx context.Context, tr *rule.TriggerRule) string {
	runID := uuid.New().String()
	ctx = logging.WithRuleID(ctx, tr.ID)
	ctx = logging.WithRunID(ctx, runID)

	if timeout := r.engineCfg.RunTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	rec := &recorder.ExecutionRecord{
		RunID:     runID,
		RuleID:    tr.ID,
		RuleName:  tr.Name,
		StartedAt: start,
	}

	outcome := r.run(ctx, tr, rec)

	rec.FinishedAt = time.Now()
	metrics.ObserveRuleRun(rec.FinishedAt.Sub(start), outcome)

	if err := r.recorder.Record(ctx, rec); err != nil {
		r.logger.ErrorwCtx(ctx, "Failed to write execution record",
			"error", err,
		)
	}

	r.logger.InfowCtx(ctx, "Rule run finished",
		"outcome", outcome,
		"triggered", rec.Triggered,
		"affected", len(rec.AffectedEntities),
		"duration_ms", rec.FinishedAt.Sub(start).Milliseconds(),
	)

	return outcome
}

func (r *Runner) run(ctx context.Context, tr *rule.TriggerRule, rec *recorder.ExecutionRecord) string {
	snapshot, err := r.fetchSnapshot(ctx, tr)
	if err != nil {
		rec.Error = err.Error()
		r.logger.ErrorwCtx(ctx, "Metric snapshot fetch failed",
			"error", err,
		)
		return OutcomeError
	}

	evals := make([]Evaluation, len(tr.Conditions))
	for i, c := range tr.Conditions {
		evals[i] = Evaluate(c, snapshot)
		if !evals[i].Resolved {
			r.logger.WarnwCtx(ctx, "Condition metric unresolved, treating condition as false",
				"field", c.Field,
				"dimension", c.Dimension,
			)
		}
	}
	rec.ConditionValues = ConditionValues(evals)

	if !Combine(evals) {
		return OutcomeNotTriggered
	}
	rec.Triggered = true

	entities, err := r.resolver.Resolve(ctx, tr)
	if err != nil {
		rec.Error = err.Error()
		r.logger.ErrorwCtx(ctx, "Audience resolution failed",
			"error", err,
		)
		return OutcomeError
	}
	rec.AffectedEntities = audience.IDs(entities)
	metrics.AffectedEntitiesPerRun.Observe(float64(len(entities)))

	rec.ActionResults = r.dispatcher.Dispatch(ctx, tr, rec.AffectedEntities)

	return OutcomeTriggered
}

func (r *Runner) fetchSnapshot(ctx context.Context, tr *rule.TriggerRule) (metricsource.Snapshot, error) {
	if timeout := r.engineCfg.MetricFetchTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return r.source.Fetch(ctx, Queries(tr))
}
