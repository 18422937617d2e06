package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Database.Dialect)
	require.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	require.True(t, cfg.Sync.Enabled)
	require.True(t, cfg.Features.Fanout)
	require.Equal(t, int64(5<<20), cfg.Storage.MaxAvatarBytes)
	require.InDelta(t, 10.0, cfg.Location.DefaultRadiusKm, 1e-9)
	require.Equal(t, SourceDefaults, cfg.Sources["database.dsn"])
	require.Len(t, cfg.CollectionSpecs(), len(types.DefaultCollections()))
}

func TestLoad_FileAndFlagsOverrideDefaults(t *testing.T) {
	path := writeConfig(t, `
[database]
dialect = "postgres"
dsn = "postgres://sync@localhost/sync?sslmode=disable"

[cache]
ttl = "2m"

[sync]
disabled = ["notifications"]

[location]
default_radius_km = 25.0
`)

	cfg, err := Load(path, map[string]any{"cache.ttl": "30s", "log.level": "debug"})
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Database.Dialect)
	require.Equal(t, 30*time.Second, cfg.Cache.TTL)
	require.Equal(t, "debug", cfg.Log.Level)
	require.InDelta(t, 25.0, cfg.Location.DefaultRadiusKm, 1e-9)

	require.Equal(t, SourceFile, cfg.Sources["database.dialect"])
	require.Equal(t, SourceFlags, cfg.Sources["cache.ttl"])
	require.Equal(t, SourceDefaults, cfg.Sources["sync.enabled"])

	specs := cfg.CollectionSpecs()
	require.Len(t, specs, len(types.DefaultCollections())-1)
	for _, spec := range specs {
		require.NotEqual(t, types.CollectionNotifications, spec.Key())
	}
}

func TestLoad_CustomCollectionTable(t *testing.T) {
	path := writeConfig(t, `
[[sync.collections]]
collection = "posts"
owner_field = "user_id"
display_name = "user_name"
avatar_ref = "avatar"

[[sync.collections]]
label = "reviews.author"
collection = "reviews"
owner_field = "author_id"
display_name = "author_name"
optional = true
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	specs := cfg.CollectionSpecs()
	require.Len(t, specs, 2)
	require.Equal(t, "posts", specs[0].Key())
	require.Equal(t, "avatar", specs[0].Fields[types.FieldAvatarRef])
	require.Equal(t, "reviews.author", specs[1].Key())
	require.True(t, specs[1].Optional)
	_, mapsAvatar := specs[1].Fields[types.FieldAvatarRef]
	require.False(t, mapsAvatar)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"), nil)
	require.ErrorIs(t, err, ErrConfigFileNotFound)

	_, err = Load("", map[string]any{"database.dialect": "mysql"})
	require.True(t, types.IsInvalidArgument(err))

	_, err = Load("", map[string]any{"location.default_radius_km": -1.0})
	require.True(t, types.IsInvalidArgument(err))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profilesync.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfig_KeysAreSortedAndSourced(t *testing.T) {
	cfg, err := Load("", map[string]any{"log.file": "/tmp/sync.log"})
	require.NoError(t, err)
	keys := cfg.Keys()
	require.IsIncreasing(t, keys)
	require.Contains(t, keys, "log.file")
	require.Equal(t, "/tmp/sync.log", cfg.Values["log.file"])
	for _, key := range keys {
		require.NotEmpty(t, cfg.Sources[key], key)
	}
}
