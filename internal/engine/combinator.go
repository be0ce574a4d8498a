package engine

import "okapi/internal/rule"

// Combine folds per-condition results into the rule verdict, strictly
// left to right. There is no operator precedence: each condition's
// logic joins it to the cumulative verdict of everything before it, and
// the first condition's logic is ignored.
func Combine(evals []Evaluation) bool {
	if len(evals) == 0 {
		return false
	}

	verdict := evals[0].Result
	for _, e := range evals[1:] {
		switch e.Condition.Logic {
		case rule.LogicOr:
			verdict = verdict || e.Result
		default:
			verdict = verdict && e.Result
		}
	}

	return verdict
}
