package audience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryEntitiesSurfacesIterationError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// A connection dropped mid-iteration must fail the listing, not
	// silently truncate the audience.
	rows := sqlmock.NewRows([]string{"id", "city", "is_owner", "is_renter", "attributes", "created_at"}).
		AddRow("acc-1", "riyadh", true, false, []byte(`{}`), time.Now()).
		AddRow("acc-2", "jeddah", true, true, []byte(`{}`), time.Now()).
		RowError(1, errors.New("driver: bad connection"))
	mock.ExpectQuery("FROM accounts").WillReturnRows(rows)

	dir := NewPostgresDirectory(db)
	entities, err := dir.ListAccounts(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows iteration error")
	assert.Nil(t, entities)
	assert.NoError(t, mock.ExpectationsWereMet())
}
