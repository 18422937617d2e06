package types

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// RoleUser is the default role assigned to new profiles.
	RoleUser = "user"
	// RoleAdmin grants access to administrative commands.
	RoleAdmin = "admin"
)

// UserProfile is the canonical record owning denormalizable fields.
type UserProfile struct {
	UserID      uuid.UUID
	Email       string
	DisplayName string
	AvatarRef   string
	Bio         string
	Gender      string
	Role        string
	Provider    string
	CreatedAt   time.Time
	SignedInAt  time.Time
	UpdatedAt   time.Time
}

// IsAdmin reports whether the profile carries the admin role.
func (p UserProfile) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(p.Role), RoleAdmin)
}

// Canonical returns the denormalizable fields keyed by canonical name.
func (p UserProfile) Canonical() map[CanonicalField]string {
	return map[CanonicalField]string{
		FieldDisplayName: p.DisplayName,
		FieldAvatarRef:   p.AvatarRef,
	}
}

// ProfilePatch captures optional profile mutations.
type ProfilePatch struct {
	DisplayName *string
	AvatarRef   *string
	Bio         *string
	Gender      *string
}

// ProfileFilter narrows profile listings.
type ProfileFilter struct {
	Role       string
	Since      *time.Time
	Pagination Pagination
}

// ProfilePage is a bounded listing of profiles.
type ProfilePage struct {
	Profiles []UserProfile
	Total    int
}

// ProfileRepository persists canonical profiles.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*UserProfile, error)
	UpsertProfile(ctx context.Context, profile UserProfile) (*UserProfile, error)
	ListProfiles(ctx context.Context, filter ProfileFilter) (ProfilePage, error)
	DeleteProfile(ctx context.Context, userID uuid.UUID) error
}
