package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RuleRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trigger_rule_runs_total",
			Help: "Total number of scheduled rule runs (count)",
		},
		[]string{"outcome"}, // triggered, not_triggered, error
	)

	RuleRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trigger_rule_run_duration_ms",
			Help:    "Duration of one rule run in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"outcome"},
	)

	ActiveRules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trigger_active_rules",
			Help: "Number of active trigger rules seen at the last scheduler tick (count)",
		},
	)

	SchedulerTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trigger_scheduler_tick_duration_ms",
			Help:    "Duration of one scheduler tick in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	ConditionEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trigger_condition_evaluations_total",
			Help: "Total number of condition evaluations (count)",
		},
		[]string{"result"}, // true, false, unresolved
	)

	MetricFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trigger_metric_fetches_total",
			Help: "Total number of metric snapshot fetches (count)",
		},
		[]string{"status"}, // ok, error
	)

	ActionDispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trigger_action_dispatches_total",
			Help: "Total number of dispatched actions (count)",
		},
		[]string{"kind", "status"},
	)

	ActionDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trigger_action_dispatch_duration_ms",
			Help:    "Duration of one action dispatch in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"kind"},
	)

	AffectedEntitiesPerRun = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trigger_affected_entities_per_run",
			Help:    "Number of affected entities per fired rule run after the cap",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	ExecutionRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trigger_execution_records_total",
			Help: "Total number of execution records written (count)",
		},
		[]string{"status"}, // ok, error
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"topic", "status"},
	)
)

func RegisterEngineMetrics() {
	prometheus.MustRegister(RuleRunsTotal)
	prometheus.MustRegister(RuleRunDuration)
	prometheus.MustRegister(ActiveRules)
	prometheus.MustRegister(SchedulerTickDuration)
	prometheus.MustRegister(ConditionEvaluationsTotal)
	prometheus.MustRegister(MetricFetchesTotal)
	prometheus.MustRegister(ActionDispatchesTotal)
	prometheus.MustRegister(ActionDispatchDuration)
	prometheus.MustRegister(AffectedEntitiesPerRun)
	prometheus.MustRegister(ExecutionRecordsTotal)
}

func RegisterManagementMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
}

func ObserveRuleRun(duration time.Duration, outcome string) {
	RuleRunsTotal.WithLabelValues(outcome).Inc()
	RuleRunDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func ObserveActionDispatch(kind string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	ActionDispatchesTotal.WithLabelValues(kind, status).Inc()
	ActionDispatchDuration.WithLabelValues(kind).Observe(float64(duration.Milliseconds()))
}

func SetActiveRules(count int) {
	ActiveRules.Set(float64(count))
}
