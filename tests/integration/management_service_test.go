package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okapi/internal/management"
	"okapi/internal/recorder"
	"okapi/internal/rule"
	pkgcel "okapi/pkg/cel"
	pkgerrors "okapi/pkg/errors"
)

func newTestService(t *testing.T, infra *TestInfra) management.Service {
	t.Helper()

	evaluator, err := pkgcel.NewEvaluator()
	require.NoError(t, err)

	opts := []management.ServiceOption{
		management.WithVersioning(management.NewVersioningRepository(infra.PostgresDB)),
		management.WithAudienceFilterValidator(evaluator),
	}
	if infra.MongoDB != nil {
		opts = append(opts, management.WithExecutionStore(recorder.NewMongoStore(infra.MongoDB)))
	}

	return management.NewService(management.NewRepository(infra.PostgresDB), opts...)
}

func TestManagementService_CreateTriggerRule(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newTestService(t, infra)
	ctx := context.Background()

	created, err := svc.CreateTriggerRule(ctx, createTestRuleRequest("low_bookings"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Enabled)

	retrieved, err := svc.GetTriggerRule(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, retrieved.Name)
}

func TestManagementService_CreateTriggerRule_Invalid(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newTestService(t, infra)
	ctx := context.Background()

	req := createTestRuleRequest("bad_rule")
	req.Conditions = nil

	_, err := svc.CreateTriggerRule(ctx, req)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestManagementService_CreateTriggerRule_InvalidAudienceFilter(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newTestService(t, infra)
	ctx := context.Background()

	req := createTestRuleRequest("filtered_rule")
	req.AudienceFilter = `city == ` // does not parse

	_, err := svc.CreateTriggerRule(ctx, req)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "audience filter")
}

func TestManagementService_CreateTriggerRule_DuplicateName(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newTestService(t, infra)
	ctx := context.Background()

	_, err := svc.CreateTriggerRule(ctx, createTestRuleRequest("low_bookings"))
	require.NoError(t, err)

	_, err = svc.CreateTriggerRule(ctx, createTestRuleRequest("low_bookings"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestManagementService_UpdateTriggerRule(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newTestService(t, infra)
	ctx := context.Background()

	created, err := svc.CreateTriggerRule(ctx, createTestRuleRequest("low_bookings"))
	require.NoError(t, err)

	newName := "low_bookings_v2"
	updated, err := svc.UpdateTriggerRule(ctx, created.ID, management.UpdateTriggerRuleRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, newName, updated.Name)
	assert.Equal(t, created.Conditions, updated.Conditions)
}

func TestManagementService_UpdateTriggerRule_NotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newTestService(t, infra)
	ctx := context.Background()

	name := "whatever"
	_, err := svc.UpdateTriggerRule(ctx, "00000000-0000-0000-0000-000000000000", management.UpdateTriggerRuleRequest{Name: &name})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestManagementService_DeleteTriggerRule_NeverExecuted(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newTestService(t, infra)
	ctx := context.Background()

	created, err := svc.CreateTriggerRule(ctx, createTestRuleRequest("low_bookings"))
	require.NoError(t, err)

	resp, err := svc.DeleteTriggerRule(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, resp.Deleted)
	assert.False(t, resp.Disabled)

	_, err = svc.GetTriggerRule(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestManagementService_DeleteTriggerRule_WithHistoryDisables(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newTestService(t, infra)
	repo := management.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	created, err := svc.CreateTriggerRule(ctx, createTestRuleRequest("low_bookings"))
	require.NoError(t, err)

	require.NoError(t, repo.RecordRunStats(ctx, created.ID, true, created.CreatedAt))

	resp, err := svc.DeleteTriggerRule(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, resp.Deleted)
	assert.True(t, resp.Disabled)

	retrieved, err := svc.GetTriggerRule(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, retrieved.Enabled)
	assert.Equal(t, int64(1), retrieved.ExecutionCount)
}

func TestManagementService_SetTriggerRuleEnabled(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newTestService(t, infra)
	ctx := context.Background()

	created, err := svc.CreateTriggerRule(ctx, createTestRuleRequest("low_bookings"))
	require.NoError(t, err)

	disabled, err := svc.SetTriggerRuleEnabled(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)

	enabled, err := svc.SetTriggerRuleEnabled(ctx, created.ID, true)
	require.NoError(t, err)
	assert.True(t, enabled.Enabled)
}

func TestManagementService_PreviewTriggerRule(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newTestService(t, infra)
	ctx := context.Background()

	created, err := svc.CreateTriggerRule(ctx, createTestRuleRequest("low_bookings"))
	require.NoError(t, err)

	preview, err := svc.PreviewTriggerRule(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, preview.RuleID)
	assert.Equal(t, `IF bookings_today < 10 THEN alert admins "bookings are low"`, preview.Preview)
}

func TestManagementService_VersioningAndAudit(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newTestService(t, infra)
	ctx := context.Background()

	created, err := svc.CreateTriggerRule(ctx, createTestRuleRequest("low_bookings"))
	require.NoError(t, err)

	newName := "low_bookings_v2"
	_, err = svc.UpdateTriggerRule(ctx, created.ID, management.UpdateTriggerRuleRequest{Name: &newName})
	require.NoError(t, err)

	versions, err := svc.GetRuleVersions(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)
	assert.Equal(t, 1, versions[1].Version)

	logs, err := svc.GetAuditLogs(ctx, &created.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "update", logs[0].Action)
	assert.Equal(t, "create", logs[1].Action)
}

func TestManagementService_ListExecutions(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, true, false)
	svc := newTestService(t, infra)
	ctx := context.Background()

	created, err := svc.CreateTriggerRule(ctx, createTestRuleRequest("low_bookings"))
	require.NoError(t, err)

	store := recorder.NewMongoStore(infra.MongoDB)
	require.NoError(t, store.Insert(ctx, &recorder.ExecutionRecord{
		RunID:     "run-1",
		RuleID:    created.ID,
		RuleName:  created.Name,
		Triggered: true,
	}))

	records, err := svc.ListExecutions(ctx, created.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "run-1", records[0].RunID)

	_, err = svc.ListExecutions(ctx, "00000000-0000-0000-0000-000000000000", 10)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestManagementService_GetTriggerRule_PreservesActionTypes(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	svc := newTestService(t, infra)
	ctx := context.Background()

	req := createTestRuleRequest("multi_action")
	req.Actions = []rule.Action{
		{Kind: rule.ActionLaunchCampaign, Config: rule.CampaignConfig{CampaignID: "boost-1"}},
		{Kind: rule.ActionFlagUsers, Config: rule.FlagConfig{Reason: "review"}},
	}

	created, err := svc.CreateTriggerRule(ctx, req)
	require.NoError(t, err)

	retrieved, err := svc.GetTriggerRule(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, retrieved.Actions, 2)
	assert.Equal(t, rule.CampaignConfig{CampaignID: "boost-1"}, retrieved.Actions[0].Config)
	assert.Equal(t, rule.FlagConfig{Reason: "review"}, retrieved.Actions[1].Config)
}
