package engine

import (
	"okapi/internal/metricsource"
	"okapi/internal/recorder"
	"okapi/internal/rule"
	"okapi/pkg/metrics"
)

// Evaluation is the outcome of judging one condition against a metric
// snapshot.
type Evaluation struct {
	Condition rule.Condition
	Value     float64
	Resolved  bool
	Result    bool
}

// Evaluate judges one condition. A condition whose metric the snapshot
// could not resolve is false: a rule never fires on missing data.
func Evaluate(c rule.Condition, snapshot metricsource.Snapshot) Evaluation {
	value, ok := snapshot.Lookup(metricsource.Query{Field: c.Field, Dimension: c.Dimension})
	if !ok {
		metrics.ConditionEvaluationsTotal.WithLabelValues("unresolved").Inc()
		return Evaluation{Condition: c}
	}

	result := compare(value, c.Operator, c.Value)

	label := "false"
	if result {
		label = "true"
	}
	metrics.ConditionEvaluationsTotal.WithLabelValues(label).Inc()

	return Evaluation{
		Condition: c,
		Value:     value,
		Resolved:  true,
		Result:    result,
	}
}

func compare(value float64, op rule.Operator, threshold float64) bool {
	switch op {
	case rule.OpLessThan:
		return value < threshold
	case rule.OpLessOrEqual:
		return value <= threshold
	case rule.OpEqual:
		return value == threshold
	case rule.OpGreaterOrEqual:
		return value >= threshold
	case rule.OpGreaterThan:
		return value > threshold
	default:
		return false
	}
}

// Queries lists the metric lookups a rule's conditions need, preserving
// condition order so one batch fetch covers the whole rule.
func Queries(tr *rule.TriggerRule) []metricsource.Query {
	queries := make([]metricsource.Query, len(tr.Conditions))
	for i, c := range tr.Conditions {
		queries[i] = metricsource.Query{Field: c.Field, Dimension: c.Dimension}
	}
	return queries
}

// ConditionValues converts evaluations into their execution record
// form.
func ConditionValues(evals []Evaluation) []recorder.ConditionValue {
	values := make([]recorder.ConditionValue, len(evals))
	for i, e := range evals {
		cv := recorder.ConditionValue{
			Field:     e.Condition.Field,
			Dimension: e.Condition.Dimension,
			Resolved:  e.Resolved,
			Result:    e.Result,
		}
		if e.Resolved {
			v := e.Value
			cv.Value = &v
		}
		values[i] = cv
	}
	return values
}
