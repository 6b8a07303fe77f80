package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.Database{User: "app", Password: "secret", Host: "db", Port: "3307", Name: "booking"})
	assert.True(t, strings.HasPrefix(dsn, "app:secret@tcp(db:3307)/booking?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestStatements(t *testing.T) {
	stmts := Statements()
	require.Len(t, stmts, 5)
	for _, s := range stmts {
		assert.True(t, strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS"), s)
		assert.False(t, strings.HasSuffix(s, ";"))
	}
	assert.Contains(t, stmts[len(stmts)-1], "seat_claims")
}

func TestApplySchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for range Statements() {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, ApplySchema(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).WillReturnError(errors.New("access denied"))
	err = ApplySchema(context.Background(), db)
	assert.ErrorContains(t, err, "access denied")
}
