package database

import (
	"context"
	"database/sql"
	"embed"
	"strings"

	"github.com/pkg/errors"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate creates the users and tasks tables for the given driver. Every
// statement is idempotent (CREATE ... IF NOT EXISTS), so Migrate runs on
// each start.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	if driver == "" {
		driver = "mysql"
	}
	raw, err := schemaFS.ReadFile("schema/" + driver + ".sql")
	if err != nil {
		return errors.Wrapf(err, "no schema for driver %q", driver)
	}
	for _, stmt := range splitStatements(string(raw)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migrate: %s", firstLine(stmt))
		}
	}
	return nil
}

// splitStatements splits a schema file on ";" and drops blank statements and
// comment-only lines. The schema files contain no literal semicolons.
func splitStatements(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
