package rule

import (
	"encoding/json"
	"fmt"
	"time"
)

type Category string

const (
	CategoryKPI      Category = "kpi"
	CategoryBehavior Category = "behavior"
	CategoryTime     Category = "time"
)

var Categories = []Category{CategoryKPI, CategoryBehavior, CategoryTime}

type Operator string

const (
	OpLessThan       Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpEqual          Operator = "="
	OpGreaterOrEqual Operator = ">="
	OpGreaterThan    Operator = ">"
)

type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Condition compares a metric value against a constant. Logic combines it
// with the cumulative verdict of the preceding conditions and is ignored
// on the first condition of a rule.
type Condition struct {
	Field     string   `json:"field"`
	Operator  Operator `json:"operator"`
	Value     float64  `json:"value"`
	Dimension string   `json:"dimension,omitempty"`
	Logic     Logic    `json:"logic,omitempty"`
}

type ActionKind string

const (
	ActionLaunchCampaign   ActionKind = "launch_campaign"
	ActionSendNotification ActionKind = "send_notification"
	ActionFlagUsers        ActionKind = "flag_users"
	ActionNotifyAdmin      ActionKind = "notify_admin"
)

// ActionConfig is the kind-specific payload of an Action. One concrete
// type exists per ActionKind, so a campaign action cannot carry a flag
// reason and vice versa.
type ActionConfig interface {
	Kind() ActionKind
}

type CampaignConfig struct {
	CampaignID string `json:"campaign_id"`
}

func (CampaignConfig) Kind() ActionKind { return ActionLaunchCampaign }

type NotificationConfig struct {
	Message string `json:"message"`
}

func (NotificationConfig) Kind() ActionKind { return ActionSendNotification }

type FlagConfig struct {
	Reason string `json:"reason"`
}

func (FlagConfig) Kind() ActionKind { return ActionFlagUsers }

type AdminAlertConfig struct {
	Message string `json:"message"`
}

func (AdminAlertConfig) Kind() ActionKind { return ActionNotifyAdmin }

type Action struct {
	Kind   ActionKind   `json:"kind"`
	Config ActionConfig `json:"config"`
}

type actionEnvelope struct {
	Kind   ActionKind      `json:"kind"`
	Config json.RawMessage `json:"config"`
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	cfg, err := decodeActionConfig(env.Kind, env.Config)
	if err != nil {
		return err
	}

	a.Kind = env.Kind
	a.Config = cfg
	return nil
}

func decodeActionConfig(kind ActionKind, raw json.RawMessage) (ActionConfig, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	switch kind {
	case ActionLaunchCampaign:
		var cfg CampaignConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case ActionSendNotification:
		var cfg NotificationConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case ActionFlagUsers:
		var cfg FlagConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case ActionNotifyAdmin:
		var cfg AdminAlertConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("unknown action kind %q", kind)
	}
}

type Schedule struct {
	FrequencyMinutes  int `json:"frequency_minutes"`
	MaxAffectedPerRun int `json:"max_affected_per_run"`
}

func (s Schedule) Frequency() time.Duration {
	return time.Duration(s.FrequencyMinutes) * time.Minute
}

// TriggerRule is an admin-authored automation unit: when due, its
// conditions are evaluated against current marketplace metrics and, if
// the combined verdict is true, its actions run against the resolved
// audience.
type TriggerRule struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Category        Category    `json:"category"`
	Conditions      []Condition `json:"conditions"`
	Actions         []Action    `json:"actions"`
	Schedule        Schedule    `json:"schedule"`
	AudienceFilter  string      `json:"audience_filter,omitempty"`
	Enabled         bool        `json:"enabled"`
	ExecutionCount  int64       `json:"execution_count"`
	LastTriggeredAt *time.Time  `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
