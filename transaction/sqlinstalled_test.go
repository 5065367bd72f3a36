package transaction

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestSQLInstalledQueryFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(".*").
		WithArgs("bash", "x86_64").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("5.2.15"))

	q := SQLInstalledQuery{DB: db}
	version, found := q.InstalledVersion(context.Background(), "bash", "x86_64")
	require.True(t, found)
	require.Equal(t, "5.2.15", version)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLInstalledQueryNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(".*").
		WithArgs("does-not-exist", "x86_64").
		WillReturnError(sql.ErrNoRows)

	q := SQLInstalledQuery{DB: db}
	_, found := q.InstalledVersion(context.Background(), "does-not-exist", "x86_64")
	require.False(t, found)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLInstalledQueryNilDB(t *testing.T) {
	q := SQLInstalledQuery{}
	_, found := q.InstalledVersion(context.Background(), "bash", "x86_64")
	require.False(t, found)
}
