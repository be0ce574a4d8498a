package management

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"okapi/internal/rule"
	pkgerrors "okapi/pkg/errors"
)

type Repository interface {
	CreateTriggerRule(ctx context.Context, r *rule.TriggerRule) error
	ListTriggerRules(ctx context.Context) ([]rule.TriggerRule, error)
	ListEnabledTriggerRules(ctx context.Context) ([]rule.TriggerRule, error)
	GetTriggerRule(ctx context.Context, id string) (*rule.TriggerRule, error)
	UpdateTriggerRule(ctx context.Context, r *rule.TriggerRule) error
	DeleteTriggerRule(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	RecordRunStats(ctx context.Context, ruleID string, triggered bool, finishedAt time.Time) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

const ruleColumns = `id, name, category, conditions, actions, frequency_minutes, max_affected_per_run, audience_filter, enabled, execution_count, last_triggered_at, created_at, updated_at`

func (r *PostgresRepository) CreateTriggerRule(ctx context.Context, tr *rule.TriggerRule) error {
	if tr.ID == "" {
		tr.ID = uuid.New().String()
	}
	now := time.Now()
	tr.CreatedAt = now
	tr.UpdatedAt = now

	conditions, actions, err := marshalRuleParts(tr)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO trigger_rules (id, name, category, conditions, actions, frequency_minutes, max_affected_per_run, audience_filter, enabled, execution_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		tr.ID, tr.Name, string(tr.Category), conditions, actions,
		tr.Schedule.FrequencyMinutes, tr.Schedule.MaxAffectedPerRun,
		nullableString(tr.AudienceFilter), tr.Enabled, tr.CreatedAt, tr.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" {
				return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("rule with name '%s' already exists", tr.Name))
			}
		}
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint") {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("rule with name '%s' already exists", tr.Name))
		}
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetTriggerRule(ctx context.Context, id string) (*rule.TriggerRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM trigger_rules WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	tr, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return tr, nil
}

func (r *PostgresRepository) ListTriggerRules(ctx context.Context) ([]rule.TriggerRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM trigger_rules ORDER BY created_at DESC`
	return r.queryRules(ctx, query)
}

func (r *PostgresRepository) ListEnabledTriggerRules(ctx context.Context) ([]rule.TriggerRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM trigger_rules WHERE enabled = true ORDER BY created_at`
	return r.queryRules(ctx, query)
}

func (r *PostgresRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]rule.TriggerRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []rule.TriggerRule
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		tr, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *tr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return rules, nil
}

func (r *PostgresRepository) UpdateTriggerRule(ctx context.Context, tr *rule.TriggerRule) error {
	tr.UpdatedAt = time.Now()

	conditions, actions, err := marshalRuleParts(tr)
	if err != nil {
		return err
	}

	query := `
		UPDATE trigger_rules
		SET name = $1, conditions = $2, actions = $3, frequency_minutes = $4, max_affected_per_run = $5, audience_filter = $6, enabled = $7, updated_at = $8
		WHERE id = $9
	`

	res, err := r.db.ExecContext(ctx, query,
		tr.Name, conditions, actions,
		tr.Schedule.FrequencyMinutes, tr.Schedule.MaxAffectedPerRun,
		nullableString(tr.AudienceFilter), tr.Enabled, tr.UpdatedAt, tr.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	return requireRowAffected(res)
}

func (r *PostgresRepository) DeleteTriggerRule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trigger_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	return requireRowAffected(res)
}

func (r *PostgresRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE trigger_rules SET enabled = $1, updated_at = $2 WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, enabled, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set rule enabled: %w", err)
	}

	return requireRowAffected(res)
}

// RecordRunStats bumps the run counter once per completed run.
// last_triggered_at moves only when the rule actually fired.
func (r *PostgresRepository) RecordRunStats(ctx context.Context, ruleID string, triggered bool, finishedAt time.Time) error {
	query := `
		UPDATE trigger_rules
		SET execution_count = execution_count + 1,
		    last_triggered_at = CASE WHEN $1 THEN $2 ELSE last_triggered_at END
		WHERE id = $3
	`

	res, err := r.db.ExecContext(ctx, query, triggered, finishedAt, ruleID)
	if err != nil {
		return fmt.Errorf("failed to record run stats: %w", err)
	}

	return requireRowAffected(res)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*rule.TriggerRule, error) {
	var tr rule.TriggerRule
	var category string
	var conditions, actions []byte
	var audienceFilter sql.NullString
	var lastTriggeredAt sql.NullTime

	err := row.Scan(
		&tr.ID, &tr.Name, &category, &conditions, &actions,
		&tr.Schedule.FrequencyMinutes, &tr.Schedule.MaxAffectedPerRun,
		&audienceFilter, &tr.Enabled, &tr.ExecutionCount, &lastTriggeredAt,
		&tr.CreatedAt, &tr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tr.Category = rule.Category(category)
	if audienceFilter.Valid {
		tr.AudienceFilter = audienceFilter.String
	}
	if lastTriggeredAt.Valid {
		t := lastTriggeredAt.Time
		tr.LastTriggeredAt = &t
	}

	if err := json.Unmarshal(conditions, &tr.Conditions); err != nil {
		return nil, fmt.Errorf("failed to decode conditions: %w", err)
	}
	if err := json.Unmarshal(actions, &tr.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions: %w", err)
	}

	return &tr, nil
}

func marshalRuleParts(tr *rule.TriggerRule) ([]byte, []byte, error) {
	conditions, err := json.Marshal(tr.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode conditions: %w", err)
	}
	actions, err := json.Marshal(tr.Actions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode actions: %w", err)
	}
	return conditions, actions, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func requireRowAffected(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("rule not found")
	}
	return nil
}
