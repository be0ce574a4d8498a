package models

import "time"

// ConfigUpdateEvent is published on the config topic whenever a trigger
// rule changes, so downstream consumers can react without polling.
type ConfigUpdateEvent struct {
	EventType string                 `json:"event_type"` // "trigger_rule_updated"
	RuleID    string                 `json:"rule_id,omitempty"`
	Action    string                 `json:"action"` // "create", "update", "delete", "enable", "disable"
	Timestamp time.Time              `json:"timestamp"`
	ChangedBy string                 `json:"changed_by,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

const (
	EventTypeTriggerRuleUpdated = "trigger_rule_updated"
)
