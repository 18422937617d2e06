package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/goliatone/go-profilesync/config"
	"github.com/goliatone/go-profilesync/journal"
	"github.com/goliatone/go-profilesync/logging"
	"github.com/goliatone/go-profilesync/metrics"
	"github.com/goliatone/go-profilesync/migrations"
	"github.com/goliatone/go-profilesync/objectstore"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/profile"
	"github.com/goliatone/go-profilesync/service"
	"github.com/goliatone/go-profilesync/store/bunstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const featureProfileFanout = "profilesync.fanout"

// runtime holds every dependency a subcommand may need.
type runtime struct {
	cfg      config.Config
	db       *bun.DB
	zap      *zap.Logger
	logger   types.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	profiles *profile.Repository
	store    *bunstore.Store
	journal  *journal.Repository
	svc      *service.Service
}

// loadConfig resolves the layered configuration using the global flags as
// the highest priority layer.
func loadConfig(c *cli.Command) (config.Config, error) {
	root := c.Root()
	overrides := map[string]any{}
	if root.IsSet("dialect") {
		overrides["database.dialect"] = root.String("dialect")
	}
	if root.IsSet("dsn") {
		overrides["database.dsn"] = root.String("dsn")
	}
	if root.IsSet("log-level") {
		overrides["log.level"] = root.String("log-level")
	}
	if root.IsSet("log-file") {
		overrides["log.file"] = root.String("log-file")
	}
	if root.IsSet("no-fanout") {
		overrides["features.fanout"] = !root.Bool("no-fanout")
	}
	return config.Load(root.String("config"), overrides)
}

// openRuntime connects to the database and wires the service.
func openRuntime(ctx context.Context, c *cli.Command) (*runtime, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	zapLogger := logging.New(logging.Config{
		Level: cfg.Log.Level,
		File:  cfg.Log.File,
		Quiet: c.Root().Bool("quiet"),
	})
	logger := logging.Adapt(zapLogger)

	db, err := bunstore.Open(ctx, cfg.Database.Dialect, cfg.Database.DSN)
	if err != nil {
		_ = zapLogger.Sync()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	rt := &runtime{cfg: cfg, db: db, zap: zapLogger, logger: logger}

	if c.Root().Bool("auto-migrate") {
		applied, err := migrations.Up(ctx, db)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		zapLogger.Debug("Migrations applied", zap.Int("count", applied))
	}

	specs := cfg.CollectionSpecs()
	rt.store, err = bunstore.New(bunstore.Config{
		DB:          db,
		Logger:      logger,
		Collections: storeCollections(specs),
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.profiles, err = profile.NewRepository(profile.RepositoryConfig{DB: db},
		profile.WithCache(cfg.Cache.RepositoryCache))
	if err != nil {
		rt.Close()
		return nil, err
	}

	mask := journal.DefaultMasker()
	if cfg.Sync.Journal {
		rt.journal, err = journal.NewRepository(journal.RepositoryConfig{DB: db, Masker: mask})
		if err != nil {
			rt.Close()
			return nil, err
		}
	}

	objects, err := newObjectStore(ctx, cfg, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.registry = prometheus.NewRegistry()
	rt.metrics = metrics.New(rt.registry)

	svcCfg := service.Config{
		Store:             rt.store,
		ProfileRepository: rt.profiles,
		ObjectStore:       objects,
		FeatureGate: service.NewStaticGate(map[string]bool{
			featureProfileFanout: cfg.Features.Fanout && cfg.Sync.Enabled,
		}, true),
		Collections:      specs,
		CacheTTL:         cfg.Cache.TTL,
		CacheParallelism: cfg.Cache.Parallelism,
		DefaultRadiusKm:  cfg.Location.DefaultRadiusKm,
		MaxAvatarBytes:   cfg.Storage.MaxAvatarBytes,
		RetryMaxAttempts: cfg.Sync.MaxAttempts,
		Masker:           mask,
		Hooks:            rt.metrics.Hooks(),
		Logger:           logger,
	}
	if rt.journal != nil {
		svcCfg.Journal = rt.journal
		svcCfg.RetryQueue = rt.journal
	}
	rt.svc = service.New(svcCfg)
	if err := rt.svc.HealthCheck(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("service not ready: %w", err)
	}
	return rt, nil
}

func newObjectStore(ctx context.Context, cfg config.Config, logger types.Logger) (types.ObjectStore, error) {
	if cfg.Storage.Bucket == "" {
		return objectstore.NewMemory(cfg.Storage.BaseURL), nil
	}
	return objectstore.NewS3Store(ctx, objectstore.S3Config{
		Bucket:   cfg.Storage.Bucket,
		Region:   cfg.Storage.Region,
		Endpoint: cfg.Storage.Endpoint,
		BaseURL:  cfg.Storage.BaseURL,
		Logger:   logger,
	})
}

// storeCollections returns the tables the document store serves: the
// default content tables plus any configured dependent collection.
func storeCollections(specs []types.CollectionSpec) []string {
	names := bunstore.DefaultCollections()
	for _, spec := range specs {
		if !slices.Contains(names, spec.Collection) {
			names = append(names, spec.Collection)
		}
	}
	return names
}

// Close releases the database handle and flushes the logger.
func (r *runtime) Close() {
	if r == nil {
		return
	}
	if r.store != nil {
		r.store.Close()
	}
	if r.db != nil {
		_ = r.db.Close()
	}
	if r.zap != nil {
		_ = r.zap.Sync()
	}
}

// withRuntime opens the runtime for the duration of an action.
func withRuntime(fn func(ctx context.Context, c *cli.Command, rt *runtime) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		rt, err := openRuntime(ctx, c)
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(ctx, c, rt)
	}
}
