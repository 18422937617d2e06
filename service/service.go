package service

import (
	"context"
	"time"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-masker"
	"github.com/goliatone/go-profilesync/audit"
	"github.com/goliatone/go-profilesync/command"
	"github.com/goliatone/go-profilesync/fanout"
	"github.com/goliatone/go-profilesync/journal"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/query"
	"github.com/goliatone/go-profilesync/snapshot"
	"github.com/goliatone/go-profilesync/watch"
)

// Service is the entry point for go-profilesync. It wires the fan-out
// engine, auditor, snapshot cache and the command/query facades over the
// stores supplied by the host application.
type Service struct {
	cfg      Config
	engine   *fanout.Engine
	auditor  *audit.Auditor
	cache    *snapshot.Cache
	retrier  *journal.Retrier
	commands Commands
	queries  Queries
	initErr  error
}

// Commands exposes the service command handlers.
type Commands struct {
	ProfileUpsert  *command.ProfileUpsertCommand
	AvatarUpload   *command.AvatarUploadCommand
	ProfileSync    *command.ProfileSyncCommand
	ProfileRepair  *command.ProfileRepairCommand
	PostDelete     *command.PostDeleteCommand
	CommentDelete  *command.CommentDeleteCommand
	UserDelete     *command.UserDeleteCommand
	RoleChange     *command.RoleChangeCommand
	LocationSave   *command.LocationSaveCommand
	LocationRemove *command.LocationRemoveCommand
}

// Queries exposes read-model helpers.
type Queries struct {
	TopPosts       *query.TopPostsQuery
	DashboardStats *query.DashboardStatsQuery
	RecentUsers    *query.RecentUsersQuery
	PostInventory  *query.PostInventoryQuery
	ActivitySeries *query.ActivitySeriesQuery
	TopAuthors     *query.TopAuthorsQuery
	NearbyUsers    *query.NearbyUsersQuery
	ProfileDetail  *query.ProfileQuery
	Consistency    *query.ConsistencyQuery
	Journal        *query.JournalQuery
	JournalStats   *query.JournalStatsQuery
}

// Config captures every dependency so callers can provide their own
// instances (bun-backed stores, S3 object store, metrics hooks, etc.).
type Config struct {
	Store             types.DocumentStore
	ProfileRepository types.ProfileRepository
	ObjectStore       types.ObjectStore
	Journal           types.JournalRepository
	RetryQueue        types.RetryQueue
	FeatureGate       featuregate.FeatureGate
	// Collections overrides types.DefaultCollections.
	Collections []types.CollectionSpec
	// SnapshotLoader defaults to a snapshot.StoreLoader over Store and
	// ProfileRepository.
	SnapshotLoader   snapshot.Loader
	CacheTTL         time.Duration
	CacheParallelism int
	DefaultRadiusKm  float64
	MaxAvatarBytes   int64
	RetryMaxAttempts int
	Masker           *masker.Masker
	Hooks            types.Hooks
	Clock            types.Clock
	IDGenerator      types.IDGenerator
	Logger           types.Logger
}

// New constructs a Service from the supplied configuration. Construction
// errors are surfaced by HealthCheck.
func New(cfg Config) *Service {
	norm := normalizeConfig(cfg)
	s := &Service{cfg: norm}

	loader := norm.SnapshotLoader
	if loader == nil {
		loader = snapshot.StoreLoader{Store: norm.Store, Profiles: norm.ProfileRepository}
	}
	cache, err := snapshot.New(snapshot.Config{
		Loader:      loader,
		TTL:         norm.CacheTTL,
		Parallelism: norm.CacheParallelism,
		Clock:       norm.Clock,
		Logger:      norm.Logger,
		Hooks:       norm.Hooks,
	})
	if err != nil {
		s.initErr = err
	}
	s.cache = cache

	if norm.Store != nil {
		engineCfg := fanout.Config{
			Store:       norm.Store,
			Collections: norm.Collections,
			Retries:     norm.RetryQueue,
			Masker:      norm.Masker,
			Hooks:       norm.Hooks,
			Clock:       norm.Clock,
			IDGen:       norm.IDGenerator,
			Logger:      norm.Logger,
		}
		if cache != nil {
			engineCfg.Cache = cache
		}
		if norm.Journal != nil {
			engineCfg.Journal = norm.Journal
		}
		engine, err := fanout.NewEngine(engineCfg)
		if err != nil && s.initErr == nil {
			s.initErr = err
		}
		s.engine = engine
	}

	if norm.Store != nil && norm.ProfileRepository != nil {
		auditor, err := audit.NewAuditor(audit.Config{
			Store:       norm.Store,
			Profiles:    norm.ProfileRepository,
			Collections: norm.Collections,
			Hooks:       norm.Hooks,
			Clock:       norm.Clock,
			Logger:      norm.Logger,
		})
		if err != nil && s.initErr == nil {
			s.initErr = err
		}
		s.auditor = auditor
	}

	if norm.RetryQueue != nil && s.engine != nil {
		retrierCfg := journal.RetrierConfig{
			Queue:       norm.RetryQueue,
			Replayer:    s.engine,
			Profiles:    norm.ProfileRepository,
			MaxAttempts: norm.RetryMaxAttempts,
			Clock:       norm.Clock,
			IDGen:       norm.IDGenerator,
			Logger:      norm.Logger,
		}
		if norm.Journal != nil {
			retrierCfg.Journal = norm.Journal
		}
		retrier, err := journal.NewRetrier(retrierCfg)
		if err != nil && s.initErr == nil {
			s.initErr = err
		}
		s.retrier = retrier
	}

	s.commands = s.buildCommands()
	s.queries = s.buildQueries()
	return s
}

func normalizeConfig(cfg Config) Config {
	if cfg.Clock == nil {
		cfg.Clock = types.SystemClock{}
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = types.UUIDGenerator{}
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = snapshot.DefaultTTL
	}
	if cfg.DefaultRadiusKm <= 0 {
		cfg.DefaultRadiusKm = query.DefaultRadiusKm
	}
	if len(cfg.Collections) == 0 {
		cfg.Collections = types.DefaultCollections()
	}
	return cfg
}

// Commands returns the command facade.
func (s *Service) Commands() Commands {
	return s.commands
}

// Queries returns the query facade.
func (s *Service) Queries() Queries {
	return s.queries
}

// Engine exposes the fan-out engine for transports that sync directly.
func (s *Service) Engine() *fanout.Engine {
	return s.engine
}

// Auditor exposes the consistency auditor.
func (s *Service) Auditor() *audit.Auditor {
	return s.auditor
}

// Cache exposes the snapshot cache so writers outside the service can
// invalidate it.
func (s *Service) Cache() *snapshot.Cache {
	return s.cache
}

// Retrier returns the retry worker, or nil when no retry queue is wired.
func (s *Service) Retrier() *journal.Retrier {
	return s.retrier
}

// NotificationFeed builds a live feed over the service stores.
func (s *Service) NotificationFeed(onUpdate func(watch.State)) (*watch.NotificationFeed, error) {
	return watch.NewNotificationFeed(watch.Config{
		Store:    s.cfg.Store,
		Profiles: s.cfg.ProfileRepository,
		OnUpdate: onUpdate,
		Clock:    s.cfg.Clock,
		Logger:   s.cfg.Logger,
	})
}

// Ready reports whether the service has the required dependencies wired in.
func (s *Service) Ready() bool {
	return s != nil &&
		s.initErr == nil &&
		s.cfg.Store != nil &&
		s.cfg.ProfileRepository != nil &&
		s.engine != nil &&
		s.auditor != nil &&
		s.cache != nil
}

// HealthCheck surfaces missing dependencies and probes the profile
// repository.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s == nil {
		return types.ErrServiceNotReady
	}
	if s.initErr != nil {
		return s.initErr
	}
	if s.cfg.Store == nil {
		return types.ErrMissingDocumentStore
	}
	if s.cfg.ProfileRepository == nil {
		return types.ErrMissingProfileRepository
	}
	if s.engine == nil {
		return types.ErrMissingSyncEngine
	}
	if s.auditor == nil {
		return types.ErrMissingAuditor
	}
	if s.cache == nil {
		return types.ErrMissingSnapshot
	}
	if _, err := s.cfg.ProfileRepository.ListProfiles(ctx, types.ProfileFilter{
		Pagination: types.Pagination{Limit: 1},
	}); err != nil {
		return err
	}
	return nil
}

func (s *Service) syncer() command.Syncer {
	if s.engine == nil {
		return nil
	}
	return s.engine
}

func (s *Service) invalidator() command.Invalidator {
	if s.cache == nil {
		return nil
	}
	return s.cache
}

func (s *Service) auditorFacade() command.Auditor {
	if s.auditor == nil {
		return nil
	}
	return s.auditor
}

func (s *Service) buildCommands() Commands {
	profileCfg := command.ProfileCommandConfig{
		Repository:  s.cfg.ProfileRepository,
		Sync:        s.syncer(),
		FeatureGate: s.cfg.FeatureGate,
		Hooks:       s.cfg.Hooks,
		Clock:       s.cfg.Clock,
		Logger:      s.cfg.Logger,
	}
	syncCfg := command.SyncCommandConfig{
		Repository: s.cfg.ProfileRepository,
		Sync:       s.syncer(),
		Auditor:    s.auditorFacade(),
		Logger:     s.cfg.Logger,
	}
	adminCfg := command.AdminCommandConfig{
		Store:    s.cfg.Store,
		Profiles: s.cfg.ProfileRepository,
		Cache:    s.invalidator(),
		Hooks:    s.cfg.Hooks,
		Clock:    s.cfg.Clock,
		Logger:   s.cfg.Logger,
	}
	locationCfg := command.LocationCommandConfig{
		Store:  s.cfg.Store,
		Cache:  s.invalidator(),
		Clock:  s.cfg.Clock,
		Logger: s.cfg.Logger,
	}
	return Commands{
		ProfileUpsert: command.NewProfileUpsertCommand(profileCfg),
		AvatarUpload: command.NewAvatarUploadCommand(command.AvatarCommandConfig{
			Repository:  s.cfg.ProfileRepository,
			Objects:     s.cfg.ObjectStore,
			Sync:        s.syncer(),
			FeatureGate: s.cfg.FeatureGate,
			MaxBytes:    s.cfg.MaxAvatarBytes,
			Hooks:       s.cfg.Hooks,
			Clock:       s.cfg.Clock,
			Logger:      s.cfg.Logger,
		}),
		ProfileSync:    command.NewProfileSyncCommand(syncCfg),
		ProfileRepair:  command.NewProfileRepairCommand(syncCfg),
		PostDelete:     command.NewPostDeleteCommand(adminCfg),
		CommentDelete:  command.NewCommentDeleteCommand(adminCfg),
		UserDelete:     command.NewUserDeleteCommand(adminCfg),
		RoleChange:     command.NewRoleChangeCommand(adminCfg),
		LocationSave:   command.NewLocationSaveCommand(locationCfg),
		LocationRemove: command.NewLocationRemoveCommand(locationCfg),
	}
}

func (s *Service) buildQueries() Queries {
	var source query.SnapshotSource
	if s.cache != nil {
		source = s.cache
	}
	var auditor query.Auditor
	if s.auditor != nil {
		auditor = s.auditor
	}
	return Queries{
		TopPosts:       query.NewTopPostsQuery(source),
		DashboardStats: query.NewDashboardStatsQuery(source),
		RecentUsers:    query.NewRecentUsersQuery(source),
		PostInventory:  query.NewPostInventoryQuery(source),
		ActivitySeries: query.NewActivitySeriesQuery(source, s.cfg.Clock),
		TopAuthors:     query.NewTopAuthorsQuery(source),
		NearbyUsers:    query.NewNearbyUsersQuery(source, s.cfg.DefaultRadiusKm),
		ProfileDetail:  query.NewProfileQuery(s.cfg.ProfileRepository),
		Consistency:    query.NewConsistencyQuery(auditor),
		Journal:        query.NewJournalQuery(s.cfg.Journal, s.cfg.Logger),
		JournalStats:   query.NewJournalStatsQuery(s.cfg.Journal),
	}
}
