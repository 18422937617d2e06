package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-profilesync/pkg/types"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryConfig wires the Bun-backed profile repository.
type RepositoryConfig struct {
	DB         *bun.DB
	Repository repository.Repository[*Record]
	Clock      types.Clock
}

type profileStore interface {
	repository.Repository[*Record]
}

// Repository implements types.ProfileRepository using Bun.
type Repository struct {
	profileStore
	clock types.Clock
}

// NewRepository constructs the default profile repository.
func NewRepository(cfg RepositoryConfig, options ...RepositoryOption) (*Repository, error) {
	if cfg.Repository == nil && cfg.DB == nil {
		return nil, errors.New("profile: db or repository required")
	}
	repo := cfg.Repository
	if repo == nil {
		repo = repository.NewRepository(cfg.DB, repository.ModelHandlers[*Record]{
			NewRecord: func() *Record { return &Record{} },
			GetID: func(rec *Record) uuid.UUID {
				if rec == nil {
					return uuid.Nil
				}
				return rec.UserID
			},
			SetID: func(rec *Record, id uuid.UUID) {
				if rec != nil {
					rec.UserID = id
				}
			},
		})
	}

	opts := applyRepositoryOptions(options)
	if opts.CacheEnabled {
		wrapped, err := withCache(repo, opts.CacheConfig)
		if err != nil {
			return nil, err
		}
		repo = wrapped
	}

	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}

	return &Repository{
		profileStore: repo,
		clock:        clock,
	}, nil
}

func withCache(repo repository.Repository[*Record], cfg *cache.Config) (repository.Repository[*Record], error) {
	if _, ok := repo.(*repositorycache.CachedRepository[*Record]); ok {
		return repo, nil
	}
	cacheCfg := cache.DefaultConfig()
	if cfg != nil {
		cacheCfg = *cfg
	}
	service, err := cache.NewCacheService(cacheCfg)
	if err != nil {
		return nil, err
	}
	return repositorycache.New(repo, service, cache.NewDefaultKeySerializer()), nil
}

var (
	_ repository.Repository[*Record] = (*Repository)(nil)
	_ types.ProfileRepository        = (*Repository)(nil)
)

// GetProfile returns the profile for the supplied user, or nil when none exists.
func (r *Repository) GetProfile(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error) {
	if userID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	rec, err := r.Get(ctx, selectUserID(userID))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return toDomain(rec), nil
}

// UpsertProfile inserts or updates the profile based on whether it already exists.
func (r *Repository) UpsertProfile(ctx context.Context, profile types.UserProfile) (*types.UserProfile, error) {
	if profile.UserID == uuid.Nil {
		return nil, types.ErrUserIDRequired
	}
	now := r.clock.Now()
	rec := fromDomain(profile)
	rec.UpdatedAt = now
	if strings.TrimSpace(rec.Role) == "" {
		rec.Role = types.RoleUser
	}

	existing, err := r.Get(ctx, selectUserID(profile.UserID))
	switch {
	case err == nil:
		rec.CreatedAt = existing.CreatedAt
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		if rec.SignedInAt.IsZero() {
			rec.SignedInAt = existing.SignedInAt
		}
		updated, err := r.Update(ctx, rec)
		if err != nil {
			return nil, err
		}
		return toDomain(updated), nil
	case repository.IsRecordNotFound(err):
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		created, err := r.Create(ctx, rec)
		if err != nil {
			return nil, err
		}
		return toDomain(created), nil
	default:
		return nil, err
	}
}

// ListProfiles returns profiles newest first.
func (r *Repository) ListProfiles(ctx context.Context, filter types.ProfileFilter) (types.ProfilePage, error) {
	limit := filter.Pagination.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	offset := filter.Pagination.Offset
	if offset < 0 {
		offset = 0
	}
	criteria := []repository.SelectCriteria{
		func(q *bun.SelectQuery) *bun.SelectQuery {
			if role := strings.TrimSpace(filter.Role); role != "" {
				q = q.Where("role = ?", role)
			}
			if filter.Since != nil && !filter.Since.IsZero() {
				q = q.Where("created_at >= ?", *filter.Since)
			}
			return q.OrderExpr("created_at DESC").Limit(limit).Offset(offset)
		},
	}
	rows, total, err := r.List(ctx, criteria...)
	if err != nil {
		return types.ProfilePage{}, err
	}
	profiles := make([]types.UserProfile, 0, len(rows))
	for _, row := range rows {
		if p := toDomain(row); p != nil {
			profiles = append(profiles, *p)
		}
	}
	return types.ProfilePage{Profiles: profiles, Total: total}, nil
}

// DeleteProfile removes the canonical profile. Missing profiles are ignored.
func (r *Repository) DeleteProfile(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return types.ErrUserIDRequired
	}
	existing, err := r.Get(ctx, selectUserID(userID))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil
		}
		return err
	}
	return r.Delete(ctx, existing)
}

func selectUserID(userID uuid.UUID) repository.SelectCriteria {
	return repository.SelectBy("user_id", "=", userID.String())
}

func fromDomain(profile types.UserProfile) *Record {
	return &Record{
		UserID:      profile.UserID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		AvatarRef:   profile.AvatarRef,
		Bio:         profile.Bio,
		Gender:      profile.Gender,
		Role:        profile.Role,
		Provider:    profile.Provider,
		CreatedAt:   profile.CreatedAt,
		SignedInAt:  profile.SignedInAt,
		UpdatedAt:   profile.UpdatedAt,
	}
}

func toDomain(rec *Record) *types.UserProfile {
	if rec == nil {
		return nil
	}
	return &types.UserProfile{
		UserID:      rec.UserID,
		Email:       rec.Email,
		DisplayName: rec.DisplayName,
		AvatarRef:   rec.AvatarRef,
		Bio:         rec.Bio,
		Gender:      rec.Gender,
		Role:        rec.Role,
		Provider:    rec.Provider,
		CreatedAt:   rec.CreatedAt,
		SignedInAt:  rec.SignedInAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}
