package snapshot

import (
	"context"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// Loader performs one bulk read of a whole collection.
type Loader interface {
	Load(ctx context.Context, collection string) ([]types.Document, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, collection string) ([]types.Document, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, collection string) ([]types.Document, error) {
	return f(ctx, collection)
}

const profilePageSize = 500

// StoreLoader reads content collections from the document store and the
// "users" collection from the canonical profile repository.
type StoreLoader struct {
	Store    types.DocumentStore
	Profiles types.ProfileRepository
}

// Load implements Loader.
func (l StoreLoader) Load(ctx context.Context, collection string) ([]types.Document, error) {
	if collection == types.CollectionUsers && l.Profiles != nil {
		return l.loadProfiles(ctx)
	}
	if l.Store == nil {
		return nil, types.ErrMissingDocumentStore
	}
	return l.Store.Query(ctx, collection)
}

func (l StoreLoader) loadProfiles(ctx context.Context) ([]types.Document, error) {
	var docs []types.Document
	offset := 0
	for {
		page, err := l.Profiles.ListProfiles(ctx, types.ProfileFilter{
			Pagination: types.Pagination{Limit: profilePageSize, Offset: offset},
		})
		if err != nil {
			return nil, err
		}
		for _, profile := range page.Profiles {
			docs = append(docs, ProfileDocument(profile))
		}
		offset += len(page.Profiles)
		if len(page.Profiles) == 0 || offset >= page.Total {
			break
		}
	}
	if docs == nil {
		docs = []types.Document{}
	}
	return docs, nil
}

// ProfileDocument renders a profile as a users document.
func ProfileDocument(profile types.UserProfile) types.Document {
	return types.Document{
		ID:         profile.UserID.String(),
		Collection: types.CollectionUsers,
		Fields: map[string]any{
			"email":        profile.Email,
			"display_name": profile.DisplayName,
			"avatar_ref":   profile.AvatarRef,
			"bio":          profile.Bio,
			"gender":       profile.Gender,
			"role":         profile.Role,
			"provider":     profile.Provider,
			"created_at":   profile.CreatedAt,
			"signed_in_at": profile.SignedInAt,
			"updated_at":   profile.UpdatedAt,
		},
	}
}

// ProfileFromDocument is the inverse of ProfileDocument.
func ProfileFromDocument(doc types.Document) types.UserProfile {
	id, _ := uuid.Parse(doc.ID)
	return types.UserProfile{
		UserID:      id,
		Email:       doc.String("email"),
		DisplayName: doc.String("display_name"),
		AvatarRef:   doc.String("avatar_ref"),
		Bio:         doc.String("bio"),
		Gender:      doc.String("gender"),
		Role:        doc.String("role"),
		Provider:    doc.String("provider"),
		CreatedAt:   types.AsTime(doc.Fields["created_at"]),
		SignedInAt:  types.AsTime(doc.Fields["signed_in_at"]),
		UpdatedAt:   types.AsTime(doc.Fields["updated_at"]),
	}
}
