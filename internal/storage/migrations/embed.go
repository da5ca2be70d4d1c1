// Package migrations applies the embedded schema files for both stores.
// Files run in lexical order and are written to be idempotent, so there is
// no version table.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

//go:embed postgres/*.sql
var PostgresFS embed.FS

// sqlFiles lists the .sql entries of dir in apply order.
func sqlFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, dir+"/"+e.Name())
	}
	sort.Strings(files)
	return files, nil
}
