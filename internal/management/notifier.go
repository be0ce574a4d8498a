package management

import (
	"context"
	"time"

	"okapi/internal/broker"
	"okapi/pkg/models"
)

// ConfigEventProducer tells the scheduler and any other consumers that
// the rule set changed. Publishing is best-effort; the scheduler also
// re-reads the rule store on every tick.
type ConfigEventProducer struct {
	producer broker.Producer
	topic    string
}

func NewConfigEventProducer(producer broker.Producer, topic string) *ConfigEventProducer {
	return &ConfigEventProducer{
		producer: producer,
		topic:    topic,
	}
}

func (p *ConfigEventProducer) PublishRuleEvent(ctx context.Context, action, ruleID, changedBy string) error {
	if p.producer == nil || p.topic == "" {
		return nil
	}

	event := models.ConfigUpdateEvent{
		EventType: models.EventTypeTriggerRuleUpdated,
		RuleID:    ruleID,
		Action:    action,
		Timestamp: time.Now(),
		ChangedBy: changedBy,
	}

	return p.producer.Publish(ctx, p.topic, ruleID, event)
}
