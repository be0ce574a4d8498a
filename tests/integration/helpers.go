package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"okapi/internal/logger"
	"okapi/internal/management"
	"okapi/internal/rule"
)

const (
	containerStartupTimeout = 60
	timestampDelay          = 10 * time.Millisecond
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestTriggerRule(name string, enabled bool) *rule.TriggerRule {
	return &rule.TriggerRule{
		Name:     name,
		Category: rule.CategoryKPI,
		Conditions: []rule.Condition{
			{Field: "bookings_today", Operator: rule.OpLessThan, Value: 10},
		},
		Actions: []rule.Action{
			{Kind: rule.ActionNotifyAdmin, Config: rule.AdminAlertConfig{Message: "bookings are low"}},
		},
		Schedule: rule.Schedule{FrequencyMinutes: 60, MaxAffectedPerRun: 100},
		Enabled:  enabled,
	}
}

func createTestRuleRequest(name string) management.CreateTriggerRuleRequest {
	return management.CreateTriggerRuleRequest{
		Name:     name,
		Category: rule.CategoryKPI,
		Conditions: []rule.Condition{
			{Field: "bookings_today", Operator: rule.OpLessThan, Value: 10},
		},
		Actions: []rule.Action{
			{Kind: rule.ActionNotifyAdmin, Config: rule.AdminAlertConfig{Message: "bookings are low"}},
		},
		Schedule: rule.Schedule{FrequencyMinutes: 60, MaxAffectedPerRun: 100},
	}
}

func seedAccount(t *testing.T, db *sql.DB, id, city string, isOwner, isRenter bool, attributes map[string]interface{}) {
	t.Helper()

	if attributes == nil {
		attributes = map[string]interface{}{}
	}
	attrs, err := json.Marshal(attributes)
	if err != nil {
		t.Fatalf("failed to encode account attributes: %v", err)
	}

	_, err = db.ExecContext(context.Background(), `
		INSERT INTO accounts (id, city, is_owner, is_renter, attributes)
		VALUES ($1, $2, $3, $4, $5)
	`, id, city, isOwner, isRenter, attrs)
	if err != nil {
		t.Fatalf("failed to seed account %s: %v", id, err)
	}
}
