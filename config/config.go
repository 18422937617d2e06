// Package config loads layered configuration: built-in defaults, a TOML file
// and command-line overrides, highest priority last.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	opts "github.com/goliatone/go-options"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Layer names recorded in Config.Sources.
const (
	SourceDefaults = "defaults"
	SourceFile     = "file"
	SourceFlags    = "flags"
)

// ErrConfigFileNotFound is returned when an explicit config path is missing.
var ErrConfigFileNotFound = errors.New("config: file not found")

// Config is the effective configuration.
type Config struct {
	Database Database `koanf:"database"`
	Cache    Cache    `koanf:"cache"`
	Log      Log      `koanf:"log"`
	Sync     Sync     `koanf:"sync"`
	Features Features `koanf:"features"`
	Storage  Storage  `koanf:"storage"`
	Location Location `koanf:"location"`

	// Values holds the merged dotted keys before decoding.
	Values map[string]any `koanf:"-"`
	// Sources maps every dotted key to the layer that supplied it.
	Sources map[string]string `koanf:"-"`
}

// Database selects the document and profile store.
type Database struct {
	Dialect string `koanf:"dialect"`
	DSN     string `koanf:"dsn"`
}

// Cache tunes the snapshot cache and the profile repository cache.
type Cache struct {
	TTL             time.Duration `koanf:"ttl"`
	Parallelism     int           `koanf:"parallelism"`
	RepositoryCache bool          `koanf:"repository_cache"`
}

// Log controls the zap logger.
type Log struct {
	Level string `koanf:"level"`
	File  string `koanf:"file"`
}

// Sync configures fan-out, the journal and the collection table.
type Sync struct {
	Enabled          bool         `koanf:"enabled"`
	Journal          bool         `koanf:"journal"`
	MaxAttempts      int          `koanf:"max_attempts"`
	RetryParallelism int          `koanf:"retry_parallelism"`
	Disabled         []string     `koanf:"disabled"`
	Collections      []Collection `koanf:"collections"`
}

// Collection is one configured dependent collection.
type Collection struct {
	Label          string `koanf:"label"`
	Collection     string `koanf:"collection"`
	OwnerField     string `koanf:"owner_field"`
	DisplayName    string `koanf:"display_name"`
	AvatarRef      string `koanf:"avatar_ref"`
	Optional       bool   `koanf:"optional"`
	UpdatedAtField string `koanf:"updated_at_field"`
}

// Features holds default feature gate values.
type Features struct {
	Fanout bool `koanf:"fanout"`
}

// Storage configures the avatar object store.
type Storage struct {
	Bucket         string `koanf:"bucket"`
	Region         string `koanf:"region"`
	Endpoint       string `koanf:"endpoint"`
	BaseURL        string `koanf:"base_url"`
	Prefix         string `koanf:"prefix"`
	MaxAvatarBytes int64  `koanf:"max_avatar_bytes"`
}

// Location tunes nearby-user queries.
type Location struct {
	DefaultRadiusKm float64 `koanf:"default_radius_km"`
}

// Defaults returns the built-in layer as dotted keys.
func Defaults() map[string]any {
	return map[string]any{
		"database.dialect":           "sqlite",
		"database.dsn":               "file:profilesync.db?cache=shared",
		"cache.ttl":                  "5m",
		"cache.parallelism":          4,
		"cache.repository_cache":     false,
		"log.level":                  "info",
		"log.file":                   "",
		"sync.enabled":               true,
		"sync.journal":               true,
		"sync.max_attempts":          5,
		"sync.retry_parallelism":     4,
		"features.fanout":            true,
		"storage.prefix":             "avatars",
		"storage.max_avatar_bytes":   5 << 20,
		"location.default_radius_km": 10.0,
	}
}

// Load merges defaults, the TOML file at path (skipped when empty) and the
// overrides. Override keys use the dotted form, e.g. "database.dsn".
func Load(path string, overrides map[string]any) (Config, error) {
	defaults := Defaults()

	fileValues := map[string]any{}
	if strings.TrimSpace(path) != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}
			return Config{}, err
		}
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		fileValues = k.All()
	}
	flagValues := make(map[string]any, len(overrides))
	for key, value := range overrides {
		if strings.TrimSpace(key) != "" {
			flagValues[key] = value
		}
	}

	merged, err := mergeLayers(defaults, fileValues, flagValues)
	if err != nil {
		return Config{}, err
	}

	k := koanf.New(".")
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := k.Set(key, merged[key]); err != nil {
			return Config{}, fmt.Errorf("config: set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Values = merged
	cfg.Sources = provenance(keys, fileValues, flagValues)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeLayers(defaults, fileValues, flagValues map[string]any) (map[string]any, error) {
	layers := []opts.Layer[map[string]any]{
		newLayer(SourceDefaults, "Built-in defaults", opts.ScopePrioritySystem, defaults),
		newLayer(SourceFile, "Config file", opts.ScopePriorityTenant, fileValues),
		newLayer(SourceFlags, "Command-line flags", opts.ScopePriorityUser, flagValues),
	}
	stack, err := opts.NewStack(layers...)
	if err != nil {
		return nil, fmt.Errorf("config: build stack: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return nil, fmt.Errorf("config: merge: %w", err)
	}
	return merged.Value, nil
}

func newLayer(name, label string, priority int, values map[string]any) opts.Layer[map[string]any] {
	scope := opts.NewScope(name, priority, opts.WithScopeLabel(label))
	return opts.NewLayer(scope, values, opts.WithSnapshotID[map[string]any](name))
}

func provenance(keys []string, fileValues, flagValues map[string]any) map[string]string {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		switch {
		case hasKey(flagValues, key):
			out[key] = SourceFlags
		case hasKey(fileValues, key):
			out[key] = SourceFile
		default:
			out[key] = SourceDefaults
		}
	}
	return out
}

func hasKey(values map[string]any, key string) bool {
	_, ok := values[key]
	return ok
}

// Keys returns the effective dotted keys in sorted order.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c.Values))
	for key := range c.Values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks the effective values.
func (c Config) Validate() error {
	switch strings.ToLower(c.Database.Dialect) {
	case "sqlite", "sqlite3", "postgres", "postgresql", "pg":
	default:
		return types.InvalidArgument(fmt.Sprintf("config: unsupported database dialect %q", c.Database.Dialect))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return types.InvalidArgument("config: database.dsn required")
	}
	if c.Cache.TTL <= 0 {
		return types.InvalidArgument("config: cache.ttl must be positive")
	}
	if c.Location.DefaultRadiusKm <= 0 {
		return types.InvalidArgument("config: location.default_radius_km must be positive")
	}
	if c.Storage.MaxAvatarBytes < 0 {
		return types.InvalidArgument("config: storage.max_avatar_bytes must not be negative")
	}
	return nil
}

// CollectionSpecs returns the configured collection table, or the default
// table when none is configured, minus any disabled keys.
func (c Config) CollectionSpecs() []types.CollectionSpec {
	specs := types.DefaultCollections()
	if len(c.Sync.Collections) > 0 {
		specs = make([]types.CollectionSpec, 0, len(c.Sync.Collections))
		for _, coll := range c.Sync.Collections {
			fields := map[types.CanonicalField]string{}
			if coll.DisplayName != "" {
				fields[types.FieldDisplayName] = coll.DisplayName
			}
			if coll.AvatarRef != "" {
				fields[types.FieldAvatarRef] = coll.AvatarRef
			}
			specs = append(specs, types.CollectionSpec{
				Label:          coll.Label,
				Collection:     coll.Collection,
				OwnerField:     coll.OwnerField,
				Fields:         fields,
				Optional:       coll.Optional,
				UpdatedAtField: coll.UpdatedAtField,
			})
		}
	}
	if len(c.Sync.Disabled) == 0 {
		return specs
	}
	disabled := make(map[string]bool, len(c.Sync.Disabled))
	for _, key := range c.Sync.Disabled {
		disabled[strings.TrimSpace(key)] = true
	}
	out := specs[:0]
	for _, spec := range specs {
		if !disabled[spec.Key()] {
			out = append(out, spec)
		}
	}
	return out
}
