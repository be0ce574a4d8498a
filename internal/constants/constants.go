package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	MetricKeyPrefix = "metrics:"
)

const (
	DefaultExecutionTopic = "trigger_executions"
	DefaultConfigTopic    = "trigger_config_updates"
)

const (
	DefaultMongoDBName         = "okapi"
	ExecutionRecordsCollection = "execution_records"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	DefaultTickInterval       = time.Minute
	DefaultRunTimeout         = 2 * time.Minute
	DefaultMetricFetchTimeout = 5 * time.Second
	DefaultActionTimeout      = 10 * time.Second
	DefaultMaxConcurrentRuns  = 16
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)
