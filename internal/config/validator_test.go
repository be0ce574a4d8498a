package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCircuitBreaker(t *testing.T) {
	tests := []struct {
		name    string
		cfg     CircuitBreakerConfig
		wantErr string
	}{
		{
			name: "disabled section is not checked",
			cfg:  CircuitBreakerConfig{Enabled: false, FailureRatio: 5},
		},
		{
			name: "enabled with sane thresholds",
			cfg:  CircuitBreakerConfig{Enabled: true, FailureRatio: 0.5, MinRequests: 3},
		},
		{
			name: "enabled with zero values falls back to defaults",
			cfg:  CircuitBreakerConfig{Enabled: true},
		},
		{
			name:    "failure ratio above one",
			cfg:     CircuitBreakerConfig{Enabled: true, FailureRatio: 1.5, MinRequests: 3},
			wantErr: "circuitbreaker.failure_ratio",
		},
		{
			name:    "failure ratio without min requests",
			cfg:     CircuitBreakerConfig{Enabled: true, FailureRatio: 0.5},
			wantErr: "circuitbreaker.min_requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCircuitBreaker(tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateStaticRejectsBadCircuitBreaker(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Postgres: PostgresConfig{Host: "localhost"}, Redis: RedisConfig{Host: "localhost"}, MongoDB: MongoDBConfig{URI: "mongodb://localhost"}},
		Engine:   EngineConfig{TickIntervalSeconds: 60, RunTimeoutSeconds: 120, MetricFetchTimeoutSeconds: 5},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:      true,
			FailureRatio: 2,
			MinRequests:  1,
		},
	}

	err := ValidateStatic(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuitbreaker.failure_ratio")
}
