package management

import "okapi/internal/rule"

type CreateTriggerRuleRequest struct {
	Name           string           `json:"name" binding:"required"`
	Category       rule.Category    `json:"category" binding:"required"`
	Conditions     []rule.Condition `json:"conditions" binding:"required"`
	Actions        []rule.Action    `json:"actions" binding:"required"`
	Schedule       rule.Schedule    `json:"schedule" binding:"required"`
	AudienceFilter string           `json:"audience_filter"`
	Enabled        *bool            `json:"enabled"`
}

type UpdateTriggerRuleRequest struct {
	Name           *string           `json:"name"`
	Conditions     *[]rule.Condition `json:"conditions"`
	Actions        *[]rule.Action    `json:"actions"`
	Schedule       *rule.Schedule    `json:"schedule"`
	AudienceFilter *string           `json:"audience_filter"`
	Enabled        *bool             `json:"enabled"`
}

// PreviewResponse carries the human-readable rendering of a rule
// definition, for the admin console's confirmation step.
type PreviewResponse struct {
	RuleID  string `json:"rule_id,omitempty"`
	Preview string `json:"preview"`
}

// DeleteResponse reports whether the rule was removed or only disabled.
type DeleteResponse struct {
	ID       string `json:"id"`
	Deleted  bool   `json:"deleted"`
	Disabled bool   `json:"disabled"`
}
