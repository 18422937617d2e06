package snapshot

import (
	"sort"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
)

// Snapshot is a point-in-time bulk read of whole collections. It is shared
// read-only between callers; never mutate the returned documents.
type Snapshot struct {
	collections map[string][]types.Document
	capturedAt  time.Time
}

// CapturedAt returns when the snapshot was loaded.
func (s *Snapshot) CapturedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.capturedAt
}

// Documents returns the records captured for the collection.
func (s *Snapshot) Documents(collection string) []types.Document {
	if s == nil {
		return nil
	}
	return s.collections[collection]
}

// Has reports whether every collection was captured.
func (s *Snapshot) Has(collections ...string) bool {
	if s == nil {
		return false
	}
	for _, name := range collections {
		if _, ok := s.collections[name]; !ok {
			return false
		}
	}
	return true
}

// Collections lists the captured collection names in sorted order.
func (s *Snapshot) Collections() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.collections))
	for name := range s.collections {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Posts returns the captured posts as typed records.
func (s *Snapshot) Posts() []types.Post {
	docs := s.Documents(types.CollectionPosts)
	out := make([]types.Post, 0, len(docs))
	for _, doc := range docs {
		out = append(out, types.PostFromDocument(doc))
	}
	return out
}

// Comments returns the captured comments as typed records.
func (s *Snapshot) Comments() []types.Comment {
	docs := s.Documents(types.CollectionComments)
	out := make([]types.Comment, 0, len(docs))
	for _, doc := range docs {
		out = append(out, types.CommentFromDocument(doc))
	}
	return out
}

// Likes returns the captured likes as typed records.
func (s *Snapshot) Likes() []types.Like {
	docs := s.Documents(types.CollectionLikes)
	out := make([]types.Like, 0, len(docs))
	for _, doc := range docs {
		out = append(out, types.LikeFromDocument(doc))
	}
	return out
}

// Locations returns the captured locations, dropping rows without valid
// coordinates.
func (s *Snapshot) Locations() []types.Location {
	docs := s.Documents(types.CollectionLocations)
	out := make([]types.Location, 0, len(docs))
	for _, doc := range docs {
		loc := types.LocationFromDocument(doc)
		if !loc.Valid {
			continue
		}
		out = append(out, loc)
	}
	return out
}

// Users returns the captured canonical profiles.
func (s *Snapshot) Users() []types.UserProfile {
	docs := s.Documents(types.CollectionUsers)
	out := make([]types.UserProfile, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ProfileFromDocument(doc))
	}
	return out
}
