package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateCreatesTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS cache_access_log`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewWithDB(db)
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAccessInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO cache_access_log`).
		WithArgs("job:42", "job", []byte("payload"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	s := NewWithDB(db)
	err = s.RecordAccess(context.Background(), "job:42", "job", []byte("payload"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWarmupCandidatesScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"cache_key", "tag", "payload"}).
		AddRow("job:1", "job", []byte(`{"status":"running"}`)).
		AddRow("user:7", "user", []byte(`{"name":"ada"}`))

	mock.ExpectQuery(`SELECT cache_key, tag, payload FROM cache_access_log`).
		WithArgs(10).
		WillReturnRows(rows)

	s := NewWithDB(db)
	candidates, err := s.WarmupCandidates(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "job:1", candidates[0].Key)
	assert.Equal(t, "user:7", candidates[1].Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWarmupCandidatesPropagatesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT cache_key, tag, payload FROM cache_access_log`).
		WithArgs(5).
		WillReturnError(assert.AnError)

	s := NewWithDB(db)
	_, err = s.WarmupCandidates(context.Background(), 5)
	assert.Error(t, err)
}

func TestPingDelegatesToDB(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()

	s := NewWithDB(db)
	assert.NoError(t, s.Ping())
}
