package migrations

import (
	profilesync "github.com/goliatone/go-profilesync"
)

func init() {
	for _, dialect := range []string{"postgres", "sqlite"} {
		fsys, err := profilesync.DialectMigrationsFS(dialect)
		if err != nil {
			continue
		}
		Register(dialect, fsys)
	}
}
