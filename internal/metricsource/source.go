package metricsource

import "context"

// Query names one metric to resolve: a field, optionally scoped to a
// dimension value such as a city or a vehicle class.
type Query struct {
	Field     string
	Dimension string
}

// Snapshot holds resolved metric values for one rule run. Queries that
// the source could not resolve are simply absent.
type Snapshot map[Query]float64

func (s Snapshot) Lookup(q Query) (float64, bool) {
	v, ok := s[q]
	return v, ok
}

// Source resolves metric queries in a single batch so that every
// condition of a rule sees values from the same instant.
type Source interface {
	Fetch(ctx context.Context, queries []Query) (Snapshot, error)
}
