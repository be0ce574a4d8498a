package recorder

import (
	"context"
	"time"

	"okapi/internal/broker"
	"okapi/internal/logger"
	"okapi/pkg/metrics"
	"okapi/pkg/models"
)

// ConditionValue captures what one condition saw during a run: the
// metric value that was resolved for it, or the fact it was not.
type ConditionValue struct {
	Field     string   `json:"field" bson:"field"`
	Dimension string   `json:"dimension,omitempty" bson:"dimension,omitempty"`
	Value     *float64 `json:"value,omitempty" bson:"value,omitempty"`
	Resolved  bool     `json:"resolved" bson:"resolved"`
	Result    bool     `json:"result" bson:"result"`
}

// ActionResult captures the outcome of one dispatched action.
type ActionResult struct {
	Kind     string `json:"kind" bson:"kind"`
	Status   string `json:"status" bson:"status"` // "dispatched", "failed", "skipped"
	Error    string `json:"error,omitempty" bson:"error,omitempty"`
	Duration int64  `json:"duration_ms" bson:"duration_ms"`
}

// ExecutionRecord is the immutable account of one rule run. Records are
// never updated after insert.
type ExecutionRecord struct {
	RunID            string           `json:"run_id" bson:"run_id"`
	RuleID           string           `json:"rule_id" bson:"rule_id"`
	RuleName         string           `json:"rule_name" bson:"rule_name"`
	Triggered        bool             `json:"triggered" bson:"triggered"`
	ConditionValues  []ConditionValue `json:"condition_values" bson:"condition_values"`
	AffectedEntities []string         `json:"affected_entities,omitempty" bson:"affected_entities,omitempty"`
	ActionResults    []ActionResult   `json:"action_results,omitempty" bson:"action_results,omitempty"`
	Error            string           `json:"error,omitempty" bson:"error,omitempty"`
	StartedAt        time.Time        `json:"started_at" bson:"started_at"`
	FinishedAt       time.Time        `json:"finished_at" bson:"finished_at"`
}

// Store persists execution records.
type Store interface {
	Insert(ctx context.Context, rec *ExecutionRecord) error
	ListByRule(ctx context.Context, ruleID string, limit int) ([]ExecutionRecord, error)
}

// StatsUpdater bumps the per-rule run statistics kept next to the rule
// definition.
type StatsUpdater interface {
	RecordRunStats(ctx context.Context, ruleID string, triggered bool, finishedAt time.Time) error
}

// Recorder writes one record per completed run and fans the outcome out
// to the execution event stream. The record insert is the source of
// truth; stat bumps and event publishes are best-effort.
type Recorder struct {
	store    Store
	stats    StatsUpdater
	producer broker.Producer
	topic    string
	logger   logger.Logger
}

func NewRecorder(store Store, stats StatsUpdater, producer broker.Producer, topic string, log logger.Logger) *Recorder {
	return &Recorder{
		store:    store,
		stats:    stats,
		producer: producer,
		topic:    topic,
		logger:   log,
	}
}

func (r *Recorder) Record(ctx context.Context, rec *ExecutionRecord) error {
	if err := r.store.Insert(ctx, rec); err != nil {
		metrics.ExecutionRecordsTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.ExecutionRecordsTotal.WithLabelValues("ok").Inc()

	if r.stats != nil {
		if err := r.stats.RecordRunStats(ctx, rec.RuleID, rec.Triggered, rec.FinishedAt); err != nil {
			r.logger.WarnwCtx(ctx, "Failed to update rule run stats",
				"error", err,
				"rule_id", rec.RuleID,
			)
		}
	}

	r.publishEvent(ctx, rec)
	return nil
}

func (r *Recorder) publishEvent(ctx context.Context, rec *ExecutionRecord) {
	if r.producer == nil || r.topic == "" {
		return
	}

	dispatched, failed := 0, 0
	for _, ar := range rec.ActionResults {
		switch ar.Status {
		case "dispatched":
			dispatched++
		case "failed":
			failed++
		}
	}

	event := models.ExecutionEvent{
		RunID:             rec.RunID,
		RuleID:            rec.RuleID,
		RuleName:          rec.RuleName,
		Triggered:         rec.Triggered,
		AffectedEntities:  rec.AffectedEntities,
		ActionsDispatched: dispatched,
		ActionsFailed:     failed,
		Error:             rec.Error,
		StartedAt:         rec.StartedAt,
		FinishedAt:        rec.FinishedAt,
	}

	if err := r.producer.Publish(ctx, r.topic, rec.RuleID, event); err != nil {
		r.logger.WarnwCtx(ctx, "Failed to publish execution event",
			"error", err,
			"run_id", rec.RunID,
		)
	}
}
