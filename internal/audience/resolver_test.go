package audience

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okapi/internal/logger"
	"okapi/internal/rule"
	pkgcel "okapi/pkg/cel"
	"okapi/pkg/models"
)

type stubDirectory struct {
	owners   []models.Entity
	renters  []models.Entity
	accounts []models.Entity
}

func (d *stubDirectory) ListOwners(ctx context.Context) ([]models.Entity, error) {
	return d.owners, nil
}

func (d *stubDirectory) ListRenters(ctx context.Context) ([]models.Entity, error) {
	return d.renters, nil
}

func (d *stubDirectory) ListAccounts(ctx context.Context) ([]models.Entity, error) {
	return d.accounts, nil
}

func newTestResolver(t *testing.T, dir Directory, strategies map[string]string) *Resolver {
	t.Helper()
	eval, err := pkgcel.NewEvaluator()
	require.NoError(t, err)
	return NewResolver(dir, eval, strategies, logger.NopLogger())
}

func TestResolveKPIRuleHasNoAudience(t *testing.T) {
	dir := &stubDirectory{
		accounts: []models.Entity{{ID: "a1"}, {ID: "a2"}},
	}
	r := newTestResolver(t, dir, nil)

	tr := &rule.TriggerRule{
		ID:       "r1",
		Category: rule.CategoryKPI,
		Schedule: rule.Schedule{MaxAffectedPerRun: 10},
	}

	entities, err := r.Resolve(context.Background(), tr)
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestResolveStrategyFromConfig(t *testing.T) {
	dir := &stubDirectory{
		owners:  []models.Entity{{ID: "o1", Kind: models.EntityKindOwner}},
		renters: []models.Entity{{ID: "r1", Kind: models.EntityKindRenter}},
	}
	strategies := map[string]string{
		"behavior": StrategyOwners,
	}
	r := newTestResolver(t, dir, strategies)

	tr := &rule.TriggerRule{
		ID:       "r1",
		Category: rule.CategoryBehavior,
		Schedule: rule.Schedule{MaxAffectedPerRun: 10},
	}

	entities, err := r.Resolve(context.Background(), tr)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "o1", entities[0].ID)
}

func TestResolveAppliesAudienceFilter(t *testing.T) {
	dir := &stubDirectory{
		accounts: []models.Entity{
			{ID: "a1", Kind: models.EntityKindAccount, City: "Riyadh"},
			{ID: "a2", Kind: models.EntityKindAccount, City: "Jeddah"},
			{ID: "a3", Kind: models.EntityKindAccount, City: "Riyadh"},
		},
	}
	r := newTestResolver(t, dir, nil)

	tr := &rule.TriggerRule{
		ID:             "r1",
		Category:       rule.CategoryBehavior,
		AudienceFilter: `city == "Riyadh"`,
		Schedule:       rule.Schedule{MaxAffectedPerRun: 10},
	}

	entities, err := r.Resolve(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a3"}, IDs(entities))
}

func TestResolveCapTruncatesDeterministically(t *testing.T) {
	dir := &stubDirectory{
		accounts: []models.Entity{
			{ID: "c"}, {ID: "a"}, {ID: "b"}, {ID: "d"},
		},
	}
	r := newTestResolver(t, dir, nil)

	tr := &rule.TriggerRule{
		ID:       "r1",
		Category: rule.CategoryTime,
		Schedule: rule.Schedule{MaxAffectedPerRun: 2},
	}

	entities, err := r.Resolve(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, IDs(entities))
}

func TestResolveInvalidFilterFails(t *testing.T) {
	dir := &stubDirectory{
		accounts: []models.Entity{{ID: "a1"}},
	}
	r := newTestResolver(t, dir, nil)

	tr := &rule.TriggerRule{
		ID:             "r1",
		Category:       rule.CategoryBehavior,
		AudienceFilter: `not valid!!!`,
		Schedule:       rule.Schedule{MaxAffectedPerRun: 10},
	}

	_, err := r.Resolve(context.Background(), tr)
	assert.Error(t, err)
}
