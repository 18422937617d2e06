package profile

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Record models the user_profiles row.
type Record struct {
	bun.BaseModel `bun:"table:user_profiles"`

	UserID      uuid.UUID `bun:"user_id,pk,type:uuid"`
	Email       string    `bun:"email"`
	DisplayName string    `bun:"display_name"`
	AvatarRef   string    `bun:"avatar_ref"`
	Bio         string    `bun:"bio"`
	Gender      string    `bun:"gender"`
	Role        string    `bun:"role"`
	Provider    string    `bun:"provider"`
	CreatedAt   time.Time `bun:"created_at,nullzero"`
	SignedInAt  time.Time `bun:"signed_in_at,nullzero"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero"`
}
