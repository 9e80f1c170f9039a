package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_Order(t *testing.T) {
	fsys := fstest.MapFS{
		"pg/002_claims.sql":      {Data: []byte("ALTER TABLE t ADD COLUMN c INT;")},
		"pg/001_submissions.sql": {Data: []byte("CREATE TABLE t (id INT);")},
		"pg/003_empty.sql":       {Data: []byte("  \n")},
		"pg/README.md":           {Data: []byte("notes")},
	}

	files, err := loadMigrations(fsys, "pg")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "001", files[0].Version)
	assert.Equal(t, "001_submissions.sql", files[0].Name)
	assert.Equal(t, "002", files[1].Version)
}

func TestLoadMigrations_RejectsBadNames(t *testing.T) {
	_, err := loadMigrations(fstest.MapFS{"pg/schema.sql": {Data: []byte("SELECT 1")}}, "pg")
	assert.ErrorContains(t, err, "<version>_<description>.sql")

	_, err = loadMigrations(fstest.MapFS{
		"pg/001_a.sql": {Data: []byte("SELECT 1")},
		"pg/001_b.sql": {Data: []byte("SELECT 2")},
	}, "pg")
	assert.ErrorContains(t, err, "version 001")
}

func TestLoadMigrations_Embedded(t *testing.T) {
	pg, err := loadMigrations(PostgresFS, "postgres")
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	assert.Contains(t, pg[0].SQL, "CREATE TABLE IF NOT EXISTS submissions")

	ch, err := loadMigrations(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	for _, m := range ch {
		_, err := splitStatements(m.SQL)
		assert.NoError(t, err, m.Name)
	}
}

func TestSplitStatements(t *testing.T) {
	stmts, err := splitStatements(`
-- header comment
CREATE TABLE a (x String) ENGINE = Memory;

INSERT INTO a VALUES ('it''s');
`)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CREATE TABLE a (x String) ENGINE = Memory",
		"INSERT INTO a VALUES ('it''s')",
	}, stmts)

	_, err = splitStatements("INSERT INTO a VALUES ('x;y');")
	assert.ErrorContains(t, err, "semicolon inside string literal")
}
