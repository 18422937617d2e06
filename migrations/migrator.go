package migrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/migrate"
)

// DialectName maps the bun dialect to the registry key.
func DialectName(db *bun.DB) string {
	if db == nil {
		return ""
	}
	switch db.Dialect().Name() {
	case dialect.PG:
		return "postgres"
	case dialect.SQLite:
		return "sqlite"
	}
	return ""
}

// NewMigrator collects every filesystem registered for the database dialect
// into a bun migrator.
func NewMigrator(db *bun.DB) (*migrate.Migrator, error) {
	if db == nil {
		return nil, errors.New("migrations: db required")
	}
	name := DialectName(db)
	if name == "" {
		return nil, fmt.Errorf("migrations: unsupported dialect %s", db.Dialect().Name())
	}
	registered := Filesystems(name)
	if len(registered) == 0 {
		return nil, fmt.Errorf("migrations: no migrations registered for %s", name)
	}
	set := migrate.NewMigrations()
	for _, fsys := range registered {
		if err := set.Discover(fsys); err != nil {
			return nil, fmt.Errorf("migrations: discover: %w", err)
		}
	}
	return migrate.NewMigrator(db, set), nil
}

// Up initializes the migration tables and applies pending migrations. It
// returns the number of migrations applied.
func Up(ctx context.Context, db *bun.DB) (int, error) {
	migrator, err := NewMigrator(db)
	if err != nil {
		return 0, err
	}
	if err := migrator.Init(ctx); err != nil {
		return 0, err
	}
	if err := migrator.Lock(ctx); err != nil {
		return 0, err
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return 0, err
	}
	if group.IsZero() {
		return 0, nil
	}
	return len(group.Migrations), nil
}
