package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateEngine(cfg.Engine); err != nil {
		errors = append(errors, err)
	}

	if err := validateAudience(cfg.Audience); err != nil {
		errors = append(errors, err)
	}

	if err := validateCircuitBreaker(cfg.CircuitBreaker); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "postgres host is required (rule store)",
		}
	}

	if cfg.Redis.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "redis host is required (metric source)",
		}
	}

	if cfg.MongoDB.URI == "" {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "mongodb uri is required (execution records)",
		}
	}

	return nil
}

func validateEngine(cfg EngineConfig) error {
	if cfg.TickIntervalSeconds < 1 {
		return &ValidationError{
			Field:   "engine.tick_interval_seconds",
			Message: "tick interval must be at least one second",
		}
	}

	if cfg.RunTimeoutSeconds < cfg.MetricFetchTimeoutSeconds {
		return &ValidationError{
			Field:   "engine.run_timeout_seconds",
			Message: "run timeout must cover at least the metric fetch timeout",
		}
	}

	return nil
}

func validateCircuitBreaker(cfg CircuitBreakerConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.FailureRatio < 0 || cfg.FailureRatio > 1 {
		return &ValidationError{
			Field:   "circuitbreaker.failure_ratio",
			Message: fmt.Sprintf("failure ratio must be between 0 and 1, got %g", cfg.FailureRatio),
		}
	}

	if cfg.FailureRatio > 0 && cfg.MinRequests == 0 {
		return &ValidationError{
			Field:   "circuitbreaker.min_requests",
			Message: "min_requests is required when failure_ratio is set",
		}
	}

	return nil
}

var validAudienceStrategies = map[string]bool{
	"none":     true,
	"owners":   true,
	"renters":  true,
	"accounts": true,
}

func validateAudience(cfg AudienceConfig) error {
	for category, strategy := range cfg.Strategies {
		if !validAudienceStrategies[strategy] {
			return &ValidationError{
				Field:   fmt.Sprintf("audience.strategies.%s", category),
				Message: fmt.Sprintf("unknown strategy %q, allowed: none, owners, renters, accounts", strategy),
			}
		}
	}

	return nil
}
