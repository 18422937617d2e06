// Package seed fills a store with fake users and social content for local
// development and load testing.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// Options controls how much content Run generates.
type Options struct {
	Users           int
	PostsPerUser    int
	CommentsPerPost int
	LikesPerPost    int
	MessagesPerUser int
	// StaleRatio is the fraction of content rows written with an outdated
	// author name, leaving drift for the auditor to find.
	StaleRatio float64
	// Window bounds generated timestamps to the last Window of the clock.
	Window time.Duration
}

// DefaultOptions returns a small dev dataset.
func DefaultOptions() Options {
	return Options{
		Users:           10,
		PostsPerUser:    3,
		CommentsPerPost: 2,
		LikesPerPost:    3,
		MessagesPerUser: 2,
		Window:          30 * 24 * time.Hour,
	}
}

// Summary counts what Run created.
type Summary struct {
	Users         int
	Posts         int
	Comments      int
	Likes         int
	Messages      int
	Notifications int
	Locations     int
	Stale         int
	UserIDs       []uuid.UUID
}

// Config wires the seeder.
type Config struct {
	Store    types.DocumentStore
	Profiles types.ProfileRepository
	// Seed makes runs reproducible. Zero uses the clock.
	Seed   uint64
	Clock  types.Clock
	Logger types.Logger
}

// Seeder generates fake data.
type Seeder struct {
	store    types.DocumentStore
	profiles types.ProfileRepository
	faker    *gofakeit.Faker
	clock    types.Clock
	logger   types.Logger
}

// New builds a Seeder.
func New(cfg Config) (*Seeder, error) {
	if cfg.Store == nil {
		return nil, types.ErrMissingDocumentStore
	}
	if cfg.Profiles == nil {
		return nil, types.ErrMissingProfileRepository
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(clock.Now().UnixNano())
	}
	return &Seeder{
		store:    cfg.Store,
		profiles: cfg.Profiles,
		faker:    gofakeit.New(seed),
		clock:    clock,
		logger:   logger,
	}, nil
}

// Run creates profiles, then content authored by them with denormalized
// author fields.
func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	if opts.Users <= 0 {
		return Summary{}, types.InvalidArgument("seed: users must be positive")
	}
	if opts.Window <= 0 {
		opts.Window = DefaultOptions().Window
	}
	var summary Summary

	users := make([]types.UserProfile, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		profile, err := s.seedProfile(ctx)
		if err != nil {
			return summary, err
		}
		users = append(users, *profile)
		summary.UserIDs = append(summary.UserIDs, profile.UserID)
		summary.Users++

		if _, err := s.store.Insert(ctx, types.CollectionLocations, map[string]any{
			"id":         profile.UserID.String(),
			"user_id":    profile.UserID.String(),
			"latitude":   s.faker.Latitude(),
			"longitude":  s.faker.Longitude(),
			"updated_at": s.timestamp(opts.Window),
		}); err != nil {
			return summary, fmt.Errorf("seed: location: %w", err)
		}
		summary.Locations++
	}

	for _, author := range users {
		for p := 0; p < opts.PostsPerUser; p++ {
			name, stale := s.authorName(author, opts.StaleRatio)
			if stale {
				summary.Stale++
			}
			post, err := s.store.Insert(ctx, types.CollectionPosts, map[string]any{
				"user_id":    author.UserID.String(),
				"user_name":  name,
				"avatar":     author.AvatarRef,
				"title":      s.faker.HipsterSentence(),
				"content":    s.faker.HipsterSentence(),
				"created_at": s.timestamp(opts.Window),
			})
			if err != nil {
				return summary, fmt.Errorf("seed: post: %w", err)
			}
			summary.Posts++

			for c := 0; c < opts.CommentsPerPost; c++ {
				commenter := users[s.faker.IntRange(0, len(users)-1)]
				name, stale := s.authorName(commenter, opts.StaleRatio)
				if stale {
					summary.Stale++
				}
				if _, err := s.store.Insert(ctx, types.CollectionComments, map[string]any{
					"post_id":    post.ID,
					"user_id":    commenter.UserID.String(),
					"user_name":  name,
					"avatar":     commenter.AvatarRef,
					"content":    s.faker.HipsterSentence(),
					"created_at": s.timestamp(opts.Window),
				}); err != nil {
					return summary, fmt.Errorf("seed: comment: %w", err)
				}
				summary.Comments++
			}

			likes, notes, err := s.seedLikes(ctx, post.ID, author, users, opts)
			if err != nil {
				return summary, err
			}
			summary.Likes += likes
			summary.Notifications += notes
		}

		if len(users) < 2 {
			continue
		}
		for m := 0; m < opts.MessagesPerUser; m++ {
			receiver := s.pickOther(users, author.UserID)
			if _, err := s.store.Insert(ctx, types.CollectionMessages, map[string]any{
				"sender_id":       author.UserID.String(),
				"sender_name":     author.DisplayName,
				"sender_avatar":   author.AvatarRef,
				"receiver_id":     receiver.UserID.String(),
				"receiver_name":   receiver.DisplayName,
				"receiver_avatar": receiver.AvatarRef,
				"content":         s.faker.HipsterSentence(),
				"read":            false,
				"created_at":      s.timestamp(opts.Window),
			}); err != nil {
				return summary, fmt.Errorf("seed: message: %w", err)
			}
			summary.Messages++
		}
	}

	s.logger.Info("seed complete",
		"users", summary.Users,
		"posts", summary.Posts,
		"comments", summary.Comments,
		"likes", summary.Likes,
		"messages", summary.Messages,
		"stale", summary.Stale,
	)
	return summary, nil
}

func (s *Seeder) seedProfile(ctx context.Context) (*types.UserProfile, error) {
	userID, err := uuid.Parse(s.faker.UUID())
	if err != nil {
		return nil, fmt.Errorf("seed: user id: %w", err)
	}
	now := s.clock.Now()
	profile, err := s.profiles.UpsertProfile(ctx, types.UserProfile{
		UserID:      userID,
		Email:       s.faker.Email(),
		DisplayName: s.faker.Name(),
		AvatarRef:   fmt.Sprintf("https://avatars.example.com/%s.png", s.faker.Username()),
		Bio:         s.faker.HipsterSentence(),
		Gender:      s.faker.Gender(),
		Role:        types.RoleUser,
		Provider:    "seed",
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("seed: profile: %w", err)
	}
	return profile, nil
}

func (s *Seeder) seedLikes(ctx context.Context, postID string, author types.UserProfile, users []types.UserProfile, opts Options) (int, int, error) {
	likes, notes := 0, 0
	seen := map[uuid.UUID]bool{}
	for l := 0; l < opts.LikesPerPost && l < len(users); l++ {
		liker := users[s.faker.IntRange(0, len(users)-1)]
		if seen[liker.UserID] {
			continue
		}
		seen[liker.UserID] = true
		created := s.timestamp(opts.Window)
		if _, err := s.store.Insert(ctx, types.CollectionLikes, map[string]any{
			"post_id":    postID,
			"user_id":    liker.UserID.String(),
			"user_name":  liker.DisplayName,
			"avatar":     liker.AvatarRef,
			"created_at": created,
		}); err != nil {
			return likes, notes, fmt.Errorf("seed: like: %w", err)
		}
		likes++
		if liker.UserID == author.UserID {
			continue
		}
		if _, err := s.store.Insert(ctx, types.CollectionNotifications, map[string]any{
			"recipient_id": author.UserID.String(),
			"sender_id":    liker.UserID.String(),
			"sender_name":  liker.DisplayName,
			"type":         "like",
			"post_id":      postID,
			"message":      liker.DisplayName + " liked your post",
			"read":         false,
			"created_at":   created,
		}); err != nil {
			return likes, notes, fmt.Errorf("seed: notification: %w", err)
		}
		notes++
	}
	return likes, notes, nil
}

func (s *Seeder) authorName(profile types.UserProfile, staleRatio float64) (string, bool) {
	if staleRatio > 0 && s.faker.Float64Range(0, 1) < staleRatio {
		return s.faker.Name(), true
	}
	return profile.DisplayName, false
}

func (s *Seeder) pickOther(users []types.UserProfile, exclude uuid.UUID) types.UserProfile {
	for {
		candidate := users[s.faker.IntRange(0, len(users)-1)]
		if candidate.UserID != exclude {
			return candidate
		}
	}
}

func (s *Seeder) timestamp(window time.Duration) time.Time {
	now := s.clock.Now()
	return s.faker.DateRange(now.Add(-window), now).UTC()
}
