package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"avm-dex-stream/internal/storage/postgres"
)

// RunPostgresMigrations applies every embedded schema file on the pool.
// Postgres handles multi-statement input natively, so each file goes down
// in a single Exec.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return fmt.Errorf("read embedded postgres migrations: %w", err)
	}

	for _, file := range files {
		data, err := fs.ReadFile(PostgresFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", path.Base(file), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", path.Base(file), err)
		}
	}

	return nil
}
