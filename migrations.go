package profilesync

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
)

// MigrationsFS contains SQL migrations for both PostgreSQL and SQLite.
//
// Each dialect lives in its own directory and follows the bun/migrate naming
// convention (NNNNN_name.up.sql / NNNNN_name.down.sql) with statements
// separated by --bun:split.
//
//	data/sql/migrations/postgres/*.sql
//	data/sql/migrations/sqlite/*.sql
//
//go:embed data/sql/migrations
var MigrationsFS embed.FS

// DialectMigrationsFS returns the migrations for the named dialect.
func DialectMigrationsFS(dialect string) (fs.FS, error) {
	dir, err := dialectDir(dialect)
	if err != nil {
		return nil, err
	}
	return fs.Sub(MigrationsFS, "data/sql/migrations/"+dir)
}

func dialectDir(dialect string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql", "pg":
		return "postgres", nil
	case "sqlite", "sqlite3":
		return "sqlite", nil
	}
	return "", fmt.Errorf("profilesync: unsupported dialect %q", dialect)
}
