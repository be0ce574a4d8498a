package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreview_SingleCondition(t *testing.T) {
	r := &TriggerRule{
		Conditions: []Condition{
			{Field: "bookings_today", Operator: OpLessThan, Value: 10},
		},
		Actions: []Action{
			{Kind: ActionNotifyAdmin, Config: AdminAlertConfig{Message: "bookings are low"}},
		},
	}

	assert.Equal(t, `IF bookings_today < 10 THEN alert admins "bookings are low"`, Preview(r))
}

func TestPreview_CombinedConditionsAndDimension(t *testing.T) {
	r := &TriggerRule{
		Conditions: []Condition{
			{Field: "bookings_today", Operator: OpLessThan, Value: 5, Dimension: "riyadh"},
			{Field: "utilization_rate", Operator: OpLessThan, Value: 0.5, Logic: LogicOr},
		},
		Actions: []Action{
			{Kind: ActionLaunchCampaign, Config: CampaignConfig{CampaignID: "boost-1"}},
			{Kind: ActionSendNotification, Config: NotificationConfig{Message: "deals today"}},
		},
	}

	assert.Equal(t,
		`IF bookings_today < 5 in riyadh OR utilization_rate < 0.5 THEN launch campaign boost-1, notify users "deals today"`,
		Preview(r))
}

func TestPreview_TrimsTrailingZeros(t *testing.T) {
	r := &TriggerRule{
		Conditions: []Condition{
			{Field: "revenue_today", Operator: OpGreaterOrEqual, Value: 1500.50},
		},
		Actions: []Action{
			{Kind: ActionFlagUsers, Config: FlagConfig{Reason: "review"}},
		},
	}

	assert.Equal(t, "IF revenue_today >= 1500.5 THEN flag users (review)", Preview(r))
}
