package migrations

import (
	"io/fs"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	input := `
-- a comment line
CREATE TABLE t1 (x UInt64)
ENGINE = MergeTree()
ORDER BY x;

-- another comment
CREATE TABLE t2 (y String) ENGINE = Log;
`
	stmts := splitStatements(input)
	require.Len(t, stmts, 2)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE t1"))
	assert.Contains(t, stmts[0], "ORDER BY x")
	assert.True(t, strings.HasPrefix(stmts[1], "CREATE TABLE t2"))
}

func TestSplitStatementsEmptyAndCommentOnly(t *testing.T) {
	assert.Empty(t, splitStatements(""))
	assert.Empty(t, splitStatements("-- nothing here\n\n-- still nothing\n"))
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings(`SELECT 'plain' FROM t;`))
	assert.NoError(t, validateNoSemicolonInStrings(`SELECT 'it''s fine' FROM t;`))
	assert.Error(t, validateNoSemicolonInStrings(`SELECT 'broken;value' FROM t;`))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://localhost:9000/dex")
	require.NoError(t, err)
	assert.Equal(t, "dex", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000/")
	assert.Error(t, err)
}

func TestSQLFilesAreOrdered(t *testing.T) {
	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.True(t, sort.StringsAreSorted(files))
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f, "clickhouse/"), f)
		assert.True(t, strings.HasSuffix(f, ".sql"), f)
	}
}

// Every embedded migration has to survive the splitter's constraints.
func TestEmbeddedMigrationsAreSplittable(t *testing.T) {
	entries, err := fs.ReadDir(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+entry.Name())
		require.NoError(t, err)

		require.NoError(t, validateNoSemicolonInStrings(string(data)), entry.Name())
		assert.NotEmpty(t, splitStatements(string(data)), entry.Name())
	}
}
