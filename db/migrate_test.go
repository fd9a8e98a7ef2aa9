package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOpen(t *testing.T) {
	t.Run("opens database successfully", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		database, err := Open(dbPath, zaptest.NewLogger(t).Sugar())
		require.NoError(t, err)
		defer database.Close()

		var mode string
		require.NoError(t, database.QueryRow("PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode)
	})

	t.Run("works without logger", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		database, err := Open(dbPath, nil)
		require.NoError(t, err)
		database.Close()
	})
}

func TestMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := Open(dbPath, nil)
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, Migrate(database, zaptest.NewLogger(t).Sugar()))

	// All expected tables exist
	for _, table := range []string{"schema_migrations", "artifacts", "runs", "run_stages", "xref_locations", "gate_results", "split_flags"} {
		var name string
		err := database.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := Open(dbPath, nil)
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, Migrate(database, nil))
	require.NoError(t, Migrate(database, nil))

	var count int
	require.NoError(t, database.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 5, count)
}
