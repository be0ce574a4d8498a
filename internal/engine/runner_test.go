package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"okapi/internal/audience"
	"okapi/internal/config"
	"okapi/internal/dispatch"
	"okapi/internal/logger"
	"okapi/internal/metricsource"
	"okapi/internal/recorder"
	"okapi/internal/rule"
	"okapi/pkg/models"
)

type stubSource struct {
	snapshot metricsource.Snapshot
	err      error
	fetches  int
}

func (s *stubSource) Fetch(ctx context.Context, queries []metricsource.Query) (metricsource.Snapshot, error) {
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

type stubDirectory struct {
	accounts []models.Entity
}

func (d *stubDirectory) ListOwners(ctx context.Context) ([]models.Entity, error) {
	return nil, nil
}

func (d *stubDirectory) ListRenters(ctx context.Context) ([]models.Entity, error) {
	return nil, nil
}

func (d *stubDirectory) ListAccounts(ctx context.Context) ([]models.Entity, error) {
	return d.accounts, nil
}

type captureStore struct {
	records []recorder.ExecutionRecord
}

func (s *captureStore) Insert(ctx context.Context, rec *recorder.ExecutionRecord) error {
	s.records = append(s.records, *rec)
	return nil
}

func (s *captureStore) ListByRule(ctx context.Context, ruleID string, limit int) ([]recorder.ExecutionRecord, error) {
	return s.records, nil
}

type statsCall struct {
	ruleID    string
	triggered bool
}

type captureStats struct {
	calls []statsCall
}

func (s *captureStats) RecordRunStats(ctx context.Context, ruleID string, triggered bool, finishedAt time.Time) error {
	s.calls = append(s.calls, statsCall{ruleID: ruleID, triggered: triggered})
	return nil
}

type recordingClients struct {
	calls []string
	fail  map[string]error
}

func (c *recordingClients) Launch(ctx context.Context, campaignID string, entityIDs []string) error {
	c.calls = append(c.calls, "launch")
	return c.fail["launch"]
}

func (c *recordingClients) Send(ctx context.Context, message string, entityIDs []string) error {
	c.calls = append(c.calls, "send")
	return c.fail["send"]
}

func (c *recordingClients) Flag(ctx context.Context, reason string, entityIDs []string) error {
	c.calls = append(c.calls, "flag")
	return c.fail["flag"]
}

func (c *recordingClients) Alert(ctx context.Context, ruleName, message string) error {
	c.calls = append(c.calls, "alert")
	return c.fail["alert"]
}

type runnerFixture struct {
	runner  *Runner
	source  *stubSource
	store   *captureStore
	stats   *captureStats
	clients *recordingClients
}

func newRunnerFixture(t *testing.T, source *stubSource, dir audience.Directory) *runnerFixture {
	t.Helper()
	log := logger.NopLogger()

	store := &captureStore{}
	stats := &captureStats{}
	clients := &recordingClients{fail: map[string]error{}}

	resolver := audience.NewResolver(dir, nil, nil, log)
	dispatcher := dispatch.NewDispatcher(clients, clients, clients, clients, time.Second, log)
	rec := recorder.NewRecorder(store, stats, nil, "", log)

	engineCfg := config.EngineConfig{
		RunTimeoutSeconds:         5,
		MetricFetchTimeoutSeconds: 2,
	}

	return &runnerFixture{
		runner:  NewRunner(source, resolver, dispatcher, rec, engineCfg, log),
		source:  source,
		store:   store,
		stats:   stats,
		clients: clients,
	}
}

func kpiRule(conditions []rule.Condition, actions []rule.Action) *rule.TriggerRule {
	return &rule.TriggerRule{
		ID:         "r1",
		Name:       "low bookings",
		Category:   rule.CategoryKPI,
		Conditions: conditions,
		Actions:    actions,
		Schedule:   rule.Schedule{FrequencyMinutes: 60, MaxAffectedPerRun: 100},
	}
}

func TestRunTriggeredWritesOneRecord(t *testing.T) {
	source := &stubSource{snapshot: metricsource.Snapshot{
		{Field: "bookings_today"}: 3,
	}}
	f := newRunnerFixture(t, source, &stubDirectory{})

	tr := kpiRule(
		[]rule.Condition{{Field: "bookings_today", Operator: rule.OpLessThan, Value: 5}},
		[]rule.Action{{Kind: rule.ActionNotifyAdmin, Config: rule.AdminAlertConfig{Message: "bookings low"}}},
	)

	outcome := f.runner.Run(context.Background(), tr)

	assert.Equal(t, OutcomeTriggered, outcome)
	require.Len(t, f.store.records, 1)

	rec := f.store.records[0]
	assert.True(t, rec.Triggered)
	assert.NotEmpty(t, rec.RunID)
	assert.Equal(t, "r1", rec.RuleID)
	require.Len(t, rec.ConditionValues, 1)
	require.NotNil(t, rec.ConditionValues[0].Value)
	assert.Equal(t, 3.0, *rec.ConditionValues[0].Value)
	require.Len(t, rec.ActionResults, 1)
	assert.Equal(t, dispatch.StatusDispatched, rec.ActionResults[0].Status)

	assert.Equal(t, []statsCall{{ruleID: "r1", triggered: true}}, f.stats.calls)
	assert.Equal(t, 1, source.fetches)
}

func TestRunNotTriggeredStillRecords(t *testing.T) {
	source := &stubSource{snapshot: metricsource.Snapshot{
		{Field: "bookings_today"}: 50,
	}}
	f := newRunnerFixture(t, source, &stubDirectory{})

	tr := kpiRule(
		[]rule.Condition{{Field: "bookings_today", Operator: rule.OpLessThan, Value: 5}},
		[]rule.Action{{Kind: rule.ActionNotifyAdmin, Config: rule.AdminAlertConfig{Message: "x"}}},
	)

	outcome := f.runner.Run(context.Background(), tr)

	assert.Equal(t, OutcomeNotTriggered, outcome)
	require.Len(t, f.store.records, 1)
	assert.False(t, f.store.records[0].Triggered)
	assert.Empty(t, f.store.records[0].ActionResults)
	assert.Empty(t, f.clients.calls)
	assert.Equal(t, []statsCall{{ruleID: "r1", triggered: false}}, f.stats.calls)
}

func TestRunUnresolvedMetricDoesNotFire(t *testing.T) {
	source := &stubSource{snapshot: metricsource.Snapshot{}}
	f := newRunnerFixture(t, source, &stubDirectory{})

	tr := kpiRule(
		[]rule.Condition{{Field: "bookings_today", Operator: rule.OpGreaterThan, Value: 0}},
		[]rule.Action{{Kind: rule.ActionNotifyAdmin, Config: rule.AdminAlertConfig{Message: "x"}}},
	)

	outcome := f.runner.Run(context.Background(), tr)

	assert.Equal(t, OutcomeNotTriggered, outcome)
	require.Len(t, f.store.records, 1)
	assert.False(t, f.store.records[0].Triggered)
	assert.False(t, f.store.records[0].ConditionValues[0].Resolved)
}

func TestRunUnresolvedMetricLogsWarning(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	log := &logger.SugaredLogger{SugaredLogger: zap.New(core).Sugar()}

	source := &stubSource{snapshot: metricsource.Snapshot{}}
	store := &captureStore{}
	stats := &captureStats{}
	clients := &recordingClients{fail: map[string]error{}}

	resolver := audience.NewResolver(&stubDirectory{}, nil, nil, log)
	dispatcher := dispatch.NewDispatcher(clients, clients, clients, clients, time.Second, log)
	rec := recorder.NewRecorder(store, stats, nil, "", log)
	runner := NewRunner(source, resolver, dispatcher, rec, config.EngineConfig{}, log)

	tr := kpiRule(
		[]rule.Condition{{Field: "bookings_today", Dimension: "riyadh", Operator: rule.OpLessThan, Value: 5}},
		[]rule.Action{{Kind: rule.ActionNotifyAdmin, Config: rule.AdminAlertConfig{Message: "x"}}},
	)

	outcome := runner.Run(context.Background(), tr)
	assert.Equal(t, OutcomeNotTriggered, outcome)

	entries := observed.FilterMessage("Condition metric unresolved, treating condition as false").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "bookings_today", fields["field"])
	assert.Equal(t, "riyadh", fields["dimension"])
}

func TestRunMetricSourceFailureRecordsError(t *testing.T) {
	source := &stubSource{err: errors.New("redis unavailable")}
	f := newRunnerFixture(t, source, &stubDirectory{})

	tr := kpiRule(
		[]rule.Condition{{Field: "bookings_today", Operator: rule.OpLessThan, Value: 5}},
		[]rule.Action{{Kind: rule.ActionNotifyAdmin, Config: rule.AdminAlertConfig{Message: "x"}}},
	)

	outcome := f.runner.Run(context.Background(), tr)

	assert.Equal(t, OutcomeError, outcome)
	require.Len(t, f.store.records, 1)
	assert.False(t, f.store.records[0].Triggered)
	assert.Contains(t, f.store.records[0].Error, "redis unavailable")
	assert.Empty(t, f.clients.calls)
}

func TestRunPartialActionFailureIsRecorded(t *testing.T) {
	source := &stubSource{snapshot: metricsource.Snapshot{
		{Field: "owner_inactive_days"}: 40,
	}}
	dir := &stubDirectory{accounts: []models.Entity{{ID: "a1"}, {ID: "a2"}}}
	f := newRunnerFixture(t, source, dir)
	f.clients.fail["send"] = errors.New("notifier down")

	tr := &rule.TriggerRule{
		ID:       "r2",
		Name:     "inactive owners",
		Category: rule.CategoryBehavior,
		Conditions: []rule.Condition{
			{Field: "owner_inactive_days", Operator: rule.OpGreaterThan, Value: 30},
		},
		Actions: []rule.Action{
			{Kind: rule.ActionSendNotification, Config: rule.NotificationConfig{Message: "come back"}},
			{Kind: rule.ActionFlagUsers, Config: rule.FlagConfig{Reason: "inactive"}},
		},
		Schedule: rule.Schedule{FrequencyMinutes: 1440, MaxAffectedPerRun: 10},
	}

	outcome := f.runner.Run(context.Background(), tr)

	assert.Equal(t, OutcomeTriggered, outcome)
	require.Len(t, f.store.records, 1)

	rec := f.store.records[0]
	assert.True(t, rec.Triggered)
	assert.Equal(t, []string{"a1", "a2"}, rec.AffectedEntities)
	require.Len(t, rec.ActionResults, 2)
	assert.Equal(t, dispatch.StatusFailed, rec.ActionResults[0].Status)
	assert.Equal(t, dispatch.StatusDispatched, rec.ActionResults[1].Status)
	assert.Equal(t, []string{"send", "flag"}, f.clients.calls)
}
