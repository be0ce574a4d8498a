package management

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryRulesSurfacesIterationError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(strings.Split(ruleColumns, ", ")).
		AddRow("r1", "low bookings", "kpi", []byte(`[]`), []byte(`[]`), 60, 100, nil, true, int64(0), nil, now, now).
		AddRow("r2", "idle owners", "behavior", []byte(`[]`), []byte(`[]`), 1440, 50, nil, true, int64(3), nil, now, now).
		RowError(1, errors.New("driver: bad connection"))
	mock.ExpectQuery("FROM trigger_rules").WillReturnRows(rows)

	repo := NewRepository(db)
	rules, err := repo.ListEnabledTriggerRules(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows iteration error")
	assert.Nil(t, rules)
	assert.NoError(t, mock.ExpectationsWereMet())
}
