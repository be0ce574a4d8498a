package models

import "time"

// ExecutionEvent is published on the execution topic after every
// completed rule run, regardless of outcome.
type ExecutionEvent struct {
	RunID             string    `json:"run_id"`
	RuleID            string    `json:"rule_id"`
	RuleName          string    `json:"rule_name"`
	Triggered         bool      `json:"triggered"`
	AffectedEntities  []string  `json:"affected_entities,omitempty"`
	ActionsDispatched int       `json:"actions_dispatched"`
	ActionsFailed     int       `json:"actions_failed"`
	Error             string    `json:"error,omitempty"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}
