package migrations

import (
	"io/fs"
	"strings"
	"sync"
)

var (
	mu          sync.RWMutex
	filesystems = map[string][]fs.FS{}
)

// Register records a filesystem that contains migrations for the dialect
// ("postgres" or "sqlite"). The filesystem root must hold the .sql files.
func Register(dialect string, fsys fs.FS) {
	if fsys == nil {
		return
	}
	key := normalizeDialect(dialect)
	if key == "" {
		return
	}
	mu.Lock()
	filesystems[key] = append(filesystems[key], fsys)
	mu.Unlock()
}

// Filesystems returns a copy of the filesystems registered for the dialect.
func Filesystems(dialect string) []fs.FS {
	mu.RLock()
	defer mu.RUnlock()
	registered := filesystems[normalizeDialect(dialect)]
	out := make([]fs.FS, len(registered))
	copy(out, registered)
	return out
}

func normalizeDialect(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql", "pg":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite"
	}
	return ""
}
