package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"okapi/internal/config"
	"okapi/internal/constants"
	"okapi/internal/logger"
	"okapi/pkg/metrics"
	"okapi/pkg/retry"
	"okapi/pkg/tracing"
)

type KafkaProducer struct {
	writer *kafka.Writer
	policy retry.Policy
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}

	policy := retry.DefaultPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = cfg.Retry.InitialInterval
	}
	if cfg.Retry.MaxInterval > 0 {
		policy.MaxInterval = cfg.Retry.MaxInterval
	}
	if cfg.Retry.Multiplier > 0 {
		policy.Multiplier = cfg.Retry.Multiplier
	}
	if cfg.Retry.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = cfg.Retry.MaxElapsedTime
	}

	return &KafkaProducer{writer: w, policy: policy, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, key string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	headers := []kafka.Header{}
	headers = tracing.InjectTraceContext(ctx, headers)

	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   body,
		Headers: headers,
		Time:    time.Now(),
	}

	err = retry.RetryWithCallback(ctx, p.policy, func() error {
		return p.writer.WriteMessages(ctx, msg)
	}, func(attempt int, err error) {
		p.logger.WarnwCtx(ctx, "Retrying kafka publish",
			"attempt", attempt,
			"max_attempts", p.policy.MaxAttempts,
			"error", err,
			"topic", topic,
		)
	})

	if err != nil {
		metrics.KafkaMessagesWrittenTotal.WithLabelValues(topic, "error").Inc()
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.KafkaMessagesWrittenTotal.WithLabelValues(topic, "ok").Inc()
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
