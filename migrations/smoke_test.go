package migrations_test

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-profilesync/migrations"
	"github.com/goliatone/go-profilesync/pkg/types"
)

func TestMigrationsApplyToSQLite(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})

	ctx := context.Background()
	registered := migrations.Filesystems("sqlite")
	if len(registered) == 0 {
		t.Fatalf("expected sqlite migrations to be registered")
	}
	for _, fsys := range registered {
		if err := applyFilesystem(ctx, db, fsys); err != nil {
			t.Fatalf("failed to apply migrations: %v", err)
		}
	}

	for _, table := range []string{"user_profiles", "posts", "comments", "likes", "messages", "notifications", "locations", "sync_journal", "sync_retries"} {
		var name string
		if err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name); err != nil {
			t.Fatalf("failed to verify %s table: %v", table, err)
		}
	}

	if err := migrations.ValidateSchema(ctx, db, "sqlite"); err != nil {
		t.Fatalf("expected schema to validate, got %v", err)
	}
}

func TestValidateSchemaReportsMissingColumns(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "CREATE TABLE posts (id TEXT PRIMARY KEY, user_id TEXT)"); err != nil {
		t.Fatalf("create posts: %v", err)
	}

	specs := []types.CollectionSpec{types.DefaultCollections()[0]}
	err = migrations.ValidateSchema(ctx, db, "sqlite", migrations.WithSchemaChecks(migrations.ChecksForCollections(specs)))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	validationErr, ok := err.(*migrations.SchemaValidationError)
	if !ok {
		t.Fatalf("expected SchemaValidationError, got %T", err)
	}
	missing := validationErr.MissingColumns["posts"]
	sort.Strings(missing)
	if strings.Join(missing, ",") != "avatar,updated_at,user_name" {
		t.Fatalf("unexpected missing columns: %v", missing)
	}
}

func TestFilesystemsRejectUnknownDialect(t *testing.T) {
	t.Parallel()

	if got := migrations.Filesystems("oracle"); len(got) != 0 {
		t.Fatalf("expected no filesystems for unknown dialect, got %d", len(got))
	}
}

func applyFilesystem(ctx context.Context, db *sql.DB, filesystem fs.FS) error {
	entries, err := fs.Glob(filesystem, "*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(entries)
	for _, entry := range entries {
		sqlBytes, err := fs.ReadFile(filesystem, entry)
		if err != nil {
			return err
		}
		for _, stmt := range splitStatements(string(sqlBytes)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

func splitStatements(sql string) []string {
	parts := strings.Split(sql, "--bun:split")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
