package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMemory(t *testing.T) {
	db := testDB(t)
	assert.Equal(t, ":memory:", db.Path)
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "embeddings.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, path)
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestTablesExist(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{"schema_versions", "embeddings"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found", table)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.migrate())

	v, err := db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestOpenPersistsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.SaveVector(TextDigest("hello"), "hash:4", []float64{1, 0, 0, 0}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	vec, err := db.GetVector(TextDigest("hello"), "hash:4")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 0}, vec)
}
