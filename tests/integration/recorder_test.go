package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okapi/internal/management"
	"okapi/internal/recorder"
	"okapi/pkg/migrations"
)

func TestRecorder_MongoStore_InsertAndList(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)
	ctx := context.Background()

	require.NoError(t, migrations.EnsureMongoCollection(ctx, infra.MongoDB))

	store := recorder.NewMongoStore(infra.MongoDB)

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		value := 3.0
		rec := &recorder.ExecutionRecord{
			RunID:     fmt.Sprintf("run-%d", i),
			RuleID:    "rule-1",
			RuleName:  "low_bookings",
			Triggered: i%2 == 0,
			ConditionValues: []recorder.ConditionValue{
				{Field: "bookings_today", Value: &value, Resolved: true, Result: true},
			},
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
		}
		require.NoError(t, store.Insert(ctx, rec))
	}

	records, err := store.ListByRule(ctx, "rule-1", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, "run-2", records[0].RunID)
	assert.Equal(t, "run-1", records[1].RunID)
	require.Len(t, records[0].ConditionValues, 1)
	require.NotNil(t, records[0].ConditionValues[0].Value)
	assert.Equal(t, 3.0, *records[0].ConditionValues[0].Value)

	other, err := store.ListByRule(ctx, "rule-2", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRecorder_MongoStore_DuplicateRunID(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, true, false)
	ctx := context.Background()

	require.NoError(t, migrations.EnsureMongoCollection(ctx, infra.MongoDB))

	store := recorder.NewMongoStore(infra.MongoDB)

	rec := &recorder.ExecutionRecord{RunID: "run-1", RuleID: "rule-1", StartedAt: time.Now()}
	require.NoError(t, store.Insert(ctx, rec))
	require.Error(t, store.Insert(ctx, rec))
}

func TestRecorder_Record_UpdatesRunStats(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, true, false)
	ctx := context.Background()

	repo := management.NewRepository(infra.PostgresDB)
	tr := createTestTriggerRule("low_bookings", true)
	require.NoError(t, repo.CreateTriggerRule(ctx, tr))

	store := recorder.NewMongoStore(infra.MongoDB)
	rec := recorder.NewRecorder(store, repo, nil, "", createTestLogger())

	finished := time.Now().UTC()
	require.NoError(t, rec.Record(ctx, &recorder.ExecutionRecord{
		RunID:      "run-1",
		RuleID:     tr.ID,
		RuleName:   tr.Name,
		Triggered:  false,
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
	}))

	retrieved, err := repo.GetTriggerRule(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), retrieved.ExecutionCount)
	assert.Nil(t, retrieved.LastTriggeredAt)

	require.NoError(t, rec.Record(ctx, &recorder.ExecutionRecord{
		RunID:      "run-2",
		RuleID:     tr.ID,
		RuleName:   tr.Name,
		Triggered:  true,
		StartedAt:  finished,
		FinishedAt: finished.Add(time.Second),
	}))

	retrieved, err = repo.GetTriggerRule(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), retrieved.ExecutionCount)
	require.NotNil(t, retrieved.LastTriggeredAt)

	records, err := store.ListByRule(ctx, tr.ID, 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
