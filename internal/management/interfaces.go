package management

import (
	"context"

	"okapi/internal/recorder"
	"okapi/internal/rule"
)

type Service interface {
	CreateTriggerRule(ctx context.Context, req CreateTriggerRuleRequest) (*rule.TriggerRule, error)
	ListTriggerRules(ctx context.Context) ([]rule.TriggerRule, error)
	GetTriggerRule(ctx context.Context, id string) (*rule.TriggerRule, error)
	UpdateTriggerRule(ctx context.Context, id string, req UpdateTriggerRuleRequest) (*rule.TriggerRule, error)
	DeleteTriggerRule(ctx context.Context, id string) (*DeleteResponse, error)
	SetTriggerRuleEnabled(ctx context.Context, id string, enabled bool) (*rule.TriggerRule, error)

	PreviewTriggerRule(ctx context.Context, id string) (*PreviewResponse, error)
	PreviewDefinition(ctx context.Context, req CreateTriggerRuleRequest) (*PreviewResponse, error)

	ListExecutions(ctx context.Context, ruleID string, limit int) ([]recorder.ExecutionRecord, error)

	GetRuleVersions(ctx context.Context, ruleID string) ([]RuleVersion, error)
	GetAuditLogs(ctx context.Context, ruleID *string, limit int) ([]AuditLog, error)
}
