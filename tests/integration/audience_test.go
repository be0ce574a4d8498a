package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okapi/internal/audience"
	"okapi/internal/rule"
	pkgcel "okapi/pkg/cel"
)

func seedTestAccounts(t *testing.T, infra *TestInfra) {
	t.Helper()

	seedAccount(t, infra.PostgresDB, "acc-1", "riyadh", true, false, map[string]interface{}{"fleet_size": 12})
	seedAccount(t, infra.PostgresDB, "acc-2", "jeddah", true, true, nil)
	seedAccount(t, infra.PostgresDB, "acc-3", "riyadh", false, true, nil)
}

func newTestResolver(t *testing.T, infra *TestInfra, strategies map[string]string) *audience.Resolver {
	t.Helper()

	evaluator, err := pkgcel.NewEvaluator()
	require.NoError(t, err)

	directory := audience.NewPostgresDirectory(infra.PostgresDB)
	return audience.NewResolver(directory, evaluator, strategies, createTestLogger())
}

func TestAudienceResolver_AccountsByDefault(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	seedTestAccounts(t, infra)

	resolver := newTestResolver(t, infra, nil)

	tr := createTestTriggerRule("inactive_renters", true)
	tr.Category = rule.CategoryBehavior

	entities, err := resolver.Resolve(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-1", "acc-2", "acc-3"}, audience.IDs(entities))
}

func TestAudienceResolver_KPIHasNoAudience(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	seedTestAccounts(t, infra)

	resolver := newTestResolver(t, infra, nil)

	entities, err := resolver.Resolve(context.Background(), createTestTriggerRule("low_bookings", true))
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestAudienceResolver_StrategyOverride(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	seedTestAccounts(t, infra)

	resolver := newTestResolver(t, infra, map[string]string{"behavior": audience.StrategyOwners})

	tr := createTestTriggerRule("inactive_owners", true)
	tr.Category = rule.CategoryBehavior

	entities, err := resolver.Resolve(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-1", "acc-2"}, audience.IDs(entities))
}

func TestAudienceResolver_FilterAndCap(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	seedTestAccounts(t, infra)

	resolver := newTestResolver(t, infra, nil)

	tr := createTestTriggerRule("riyadh_outreach", true)
	tr.Category = rule.CategoryBehavior
	tr.AudienceFilter = `city == "riyadh"`

	entities, err := resolver.Resolve(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-1", "acc-3"}, audience.IDs(entities))

	tr.Schedule.MaxAffectedPerRun = 1
	entities, err = resolver.Resolve(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-1"}, audience.IDs(entities))
}

func TestAudienceResolver_AttributeFilter(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)
	seedTestAccounts(t, infra)

	resolver := newTestResolver(t, infra, map[string]string{"behavior": audience.StrategyOwners})

	tr := createTestTriggerRule("large_fleets", true)
	tr.Category = rule.CategoryBehavior
	tr.AudienceFilter = `"fleet_size" in attributes && attributes.fleet_size >= 10`

	entities, err := resolver.Resolve(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-1"}, audience.IDs(entities))
}
