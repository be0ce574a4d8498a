package audience

import (
	"context"
	"sort"

	"okapi/internal/logger"
	"okapi/internal/rule"
	pkgcel "okapi/pkg/cel"
	"okapi/pkg/models"
)

const (
	StrategyNone     = "none"
	StrategyOwners   = "owners"
	StrategyRenters  = "renters"
	StrategyAccounts = "accounts"
)

// Resolver turns a fired rule into the concrete set of affected
// entities: pick the candidate pool for the rule's category, apply the
// rule's audience filter, then cap the set at the rule's per-run limit.
// The result is sorted by entity ID so the cap truncates
// deterministically.
type Resolver struct {
	directory  Directory
	evaluator  *pkgcel.Evaluator
	strategies map[string]string
	logger     logger.Logger
}

func NewResolver(directory Directory, evaluator *pkgcel.Evaluator, strategies map[string]string, log logger.Logger) *Resolver {
	return &Resolver{
		directory:  directory,
		evaluator:  evaluator,
		strategies: strategies,
		logger:     log,
	}
}

func (r *Resolver) Resolve(ctx context.Context, tr *rule.TriggerRule) ([]models.Entity, error) {
	strategy := r.strategyFor(tr.Category)
	if strategy == StrategyNone {
		return nil, nil
	}

	candidates, err := r.candidates(ctx, strategy)
	if err != nil {
		return nil, err
	}

	if tr.AudienceFilter != "" && r.evaluator != nil {
		candidates, err = r.applyFilter(ctx, tr, candidates)
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID < candidates[j].ID
	})

	if limit := tr.Schedule.MaxAffectedPerRun; limit > 0 && len(candidates) > limit {
		r.logger.InfowCtx(ctx, "Audience truncated to per-run cap",
			"rule_id", tr.ID,
			"candidates", len(candidates),
			"cap", limit,
		)
		candidates = candidates[:limit]
	}

	return candidates, nil
}

func (r *Resolver) strategyFor(category rule.Category) string {
	if s, ok := r.strategies[string(category)]; ok {
		return s
	}

	// KPI rules watch aggregates, not individual accounts.
	switch category {
	case rule.CategoryKPI:
		return StrategyNone
	case rule.CategoryBehavior, rule.CategoryTime:
		return StrategyAccounts
	default:
		return StrategyNone
	}
}

func (r *Resolver) candidates(ctx context.Context, strategy string) ([]models.Entity, error) {
	switch strategy {
	case StrategyOwners:
		return r.directory.ListOwners(ctx)
	case StrategyRenters:
		return r.directory.ListRenters(ctx)
	case StrategyAccounts:
		return r.directory.ListAccounts(ctx)
	default:
		return nil, nil
	}
}

func (r *Resolver) applyFilter(ctx context.Context, tr *rule.TriggerRule, candidates []models.Entity) ([]models.Entity, error) {
	program, err := r.evaluator.CompileFilter(tr.AudienceFilter)
	if err != nil {
		return nil, err
	}

	filtered := make([]models.Entity, 0, len(candidates))
	for _, e := range candidates {
		match, err := r.evaluator.EvaluateCompiled(ctx, program, e)
		if err != nil {
			// An entity the filter cannot judge is excluded rather
			// than acted on.
			r.logger.WarnwCtx(ctx, "Audience filter failed for entity",
				"rule_id", tr.ID,
				"entity_id", e.ID,
				"error", err,
			)
			continue
		}
		if match {
			filtered = append(filtered, e)
		}
	}

	return filtered, nil
}

// IDs extracts the entity IDs in order.
func IDs(entities []models.Entity) []string {
	if len(entities) == 0 {
		return nil
	}
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return ids
}
