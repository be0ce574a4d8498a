package metricsource

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"okapi/internal/constants"
	"okapi/internal/logger"
	pkgerrors "okapi/pkg/errors"
	"okapi/pkg/metrics"
)

// RedisSource reads metric values written by the analytics pipeline.
// Plain fields live at "metrics:<field>", dimension-scoped values at
// "metrics:<field>:<dimension>".
type RedisSource struct {
	client *redis.Client
	logger logger.Logger
}

func NewRedisSource(client *redis.Client, log logger.Logger) *RedisSource {
	return &RedisSource{client: client, logger: log}
}

func (s *RedisSource) Fetch(ctx context.Context, queries []Query) (Snapshot, error) {
	if len(queries) == 0 {
		return Snapshot{}, nil
	}

	keys := make([]string, len(queries))
	for i, q := range queries {
		keys[i] = Key(q)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		metrics.MetricFetchesTotal.WithLabelValues("error").Inc()
		return nil, pkgerrors.ErrMetricSourceUnavailable.WithCause(err)
	}

	snapshot := make(Snapshot, len(queries))
	for i, raw := range values {
		if raw == nil {
			continue
		}

		str, ok := raw.(string)
		if !ok {
			s.logger.WarnwCtx(ctx, "Unexpected metric value type",
				"key", keys[i],
			)
			continue
		}

		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			s.logger.WarnwCtx(ctx, "Metric value is not numeric",
				"key", keys[i],
				"value", str,
			)
			continue
		}

		snapshot[queries[i]] = v
	}

	metrics.MetricFetchesTotal.WithLabelValues("ok").Inc()
	return snapshot, nil
}

// Key returns the Redis key a query resolves against.
func Key(q Query) string {
	if q.Dimension != "" {
		return constants.MetricKeyPrefix + q.Field + ":" + q.Dimension
	}
	return constants.MetricKeyPrefix + q.Field
}
