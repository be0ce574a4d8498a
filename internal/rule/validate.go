package rule

import (
	"fmt"

	pkgerrors "okapi/pkg/errors"
)

// Validate enforces the structural invariants of a trigger rule. Rules
// failing validation are rejected at store-write time and never reach
// the scheduler.
func Validate(r *TriggerRule) error {
	if r.Name == "" {
		return invalid("name is required")
	}
	if !ValidCategory(r.Category) {
		return invalid(fmt.Sprintf("unknown category %q", r.Category))
	}
	if len(r.Conditions) == 0 {
		return invalid("at least one condition is required")
	}
	if len(r.Actions) == 0 {
		return invalid("at least one action is required")
	}
	if r.Schedule.FrequencyMinutes <= 0 {
		return invalid("schedule.frequency_minutes must be positive")
	}
	if r.Schedule.MaxAffectedPerRun <= 0 {
		return invalid("schedule.max_affected_per_run must be positive")
	}

	for i, c := range r.Conditions {
		if err := validateCondition(r.Category, i, c); err != nil {
			return err
		}
	}

	for i, a := range r.Actions {
		if err := validateAction(i, a); err != nil {
			return err
		}
	}

	return nil
}

func validateCondition(category Category, idx int, c Condition) error {
	tmpl, ok := TemplateFor(category, c.Field)
	if !ok {
		return invalid(fmt.Sprintf("condition[%d]: field %q is not in the %s vocabulary", idx, c.Field, category))
	}
	if !tmpl.SupportsOperator(c.Operator) {
		return invalid(fmt.Sprintf("condition[%d]: operator %q not allowed for field %q", idx, c.Operator, c.Field))
	}
	if c.Dimension != "" && !tmpl.Dimensional {
		return invalid(fmt.Sprintf("condition[%d]: field %q does not support dimensional scoping", idx, c.Field))
	}
	// The first condition has no preceding term; its connector is ignored.
	if idx > 0 && c.Logic != LogicAnd && c.Logic != LogicOr {
		return invalid(fmt.Sprintf("condition[%d]: logic must be AND or OR", idx))
	}
	return nil
}

func validateAction(idx int, a Action) error {
	if a.Config == nil {
		return invalid(fmt.Sprintf("action[%d]: config is required", idx))
	}
	if a.Config.Kind() != a.Kind {
		return invalid(fmt.Sprintf("action[%d]: config does not match kind %q", idx, a.Kind))
	}

	switch cfg := a.Config.(type) {
	case CampaignConfig:
		if cfg.CampaignID == "" {
			return invalid(fmt.Sprintf("action[%d]: campaign_id is required", idx))
		}
	case NotificationConfig:
		if cfg.Message == "" {
			return invalid(fmt.Sprintf("action[%d]: message is required", idx))
		}
	case FlagConfig:
		if cfg.Reason == "" {
			return invalid(fmt.Sprintf("action[%d]: reason is required", idx))
		}
	case AdminAlertConfig:
		if cfg.Message == "" {
			return invalid(fmt.Sprintf("action[%d]: message is required", idx))
		}
	default:
		return invalid(fmt.Sprintf("action[%d]: unknown kind %q", idx, a.Kind))
	}
	return nil
}

func invalid(msg string) error {
	return pkgerrors.ErrInvalidRule.WithDetail("message", msg)
}
