package metricsource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "metrics:bookings_today", Key(Query{Field: "bookings_today"}))
	assert.Equal(t, "metrics:bookings_today:riyadh", Key(Query{Field: "bookings_today", Dimension: "riyadh"}))
}

func TestSnapshot_Lookup(t *testing.T) {
	snapshot := Snapshot{
		{Field: "bookings_today"}:                      50,
		{Field: "bookings_today", Dimension: "riyadh"}: 3,
	}

	v, ok := snapshot.Lookup(Query{Field: "bookings_today"})
	assert.True(t, ok)
	assert.Equal(t, 50.0, v)

	// A dimension-scoped query never falls back to the global value.
	v, ok = snapshot.Lookup(Query{Field: "bookings_today", Dimension: "jeddah"})
	assert.False(t, ok)
	assert.Zero(t, v)
}
