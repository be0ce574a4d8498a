package broker

import "context"

// Producer publishes domain events. The payload is marshaled to JSON;
// the key controls Kafka partition placement.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload interface{}) error
	Close() error
}
