package store

import (
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/quire/errors"
)

// Error paths that are awkward to provoke against real SQLite are exercised
// with sqlmock instead.

func TestPutRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT version, content_hash FROM artifacts").
		WithArgs("draft").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	s := NewStore(db)
	_, err = s.Put("draft", "content\n", "drafting")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWrapsDriverErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM artifacts WHERE name = \\?").
		WithArgs("draft").
		WillReturnError(assert.AnError)

	s := NewStore(db)
	_, err = s.Get("draft")
	require.Error(t, err)
	// Driver failure is not a not-found: callers must be able to tell
	// "store broken" from "artifact missing"
	assert.False(t, errors.IsNotFoundError(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}
