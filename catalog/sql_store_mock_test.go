package catalog_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spatialworks/geocat/catalog"
	"github.com/spatialworks/geocat/errors"
)

func TestSQLStoreCreatePropagatesQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnError(errors.New("disk I/O error"))

	store := catalog.NewSQLStore(db, nil)
	_, err = store.Create(context.Background(), testRecord("rec-1", "test-dataset-a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreCreateRollsBackOnChildFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO records").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT OR IGNORE INTO record_tags").
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	store := catalog.NewSQLStore(db, nil)
	_, err = store.Create(context.Background(), testRecord("rec-1", "test-dataset-a"))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
