package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateAppliesSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS documents")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateReportsFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	assert.Error(t, Migrate(context.Background(), db))
}

// Content is stored as JSON, not JSONB, so documents come back byte for byte
// as the editor sent them, matching what the in-process cache serves.
func TestSchemaKeepsContentVerbatim(t *testing.T) {
	assert.Regexp(t, `(?m)^\s*content\s+JSON NOT NULL`, schema)
	assert.NotContains(t, schema, "JSONB")
}
