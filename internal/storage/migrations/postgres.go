package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gap-monitor/internal/storage/postgres"
)

// EnsurePostgres applies the embedded schema files in lexical order.
// Every file is idempotent, so running at each startup is safe.
func EnsurePostgres(ctx context.Context, pool *postgres.Pool) error {
	files, err := fs.Glob(postgresFS, "postgres/*.sql")
	if err != nil {
		return fmt.Errorf("list postgres schema files: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(postgresFS, file)
		if err != nil {
			return fmt.Errorf("read schema file %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		// No-arg Exec goes through the simple protocol, so one file may
		// hold several statements.
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply schema file %s: %w", file, err)
		}
	}

	return nil
}
