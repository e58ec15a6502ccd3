package postgres

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every *.sql file under migrations/ in filename order. The
// engine has no migration history table: the statements are written
// idempotent (CREATE TABLE IF NOT EXISTS) so Migrate is safe to call on
// every startup, following the pack's convention of no dedicated migration
// library (golang-migrate appears only in unrelated example repos' go.mod
// files, never the teacher's) over adding one for a handful of DDL
// statements.
func Migrate(ctx context.Context, m *Manager) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("postgres: read migrations dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("postgres: read migration %s: %w", name, err)
		}
		if _, err := m.DB().ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("postgres: apply migration %s: %w", name, err)
		}
	}
	return nil
}
