package types

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestErrorPredicates(t *testing.T) {
	require.True(t, IsInvalidArgument(InvalidArgument("bad input")))
	require.True(t, IsInvalidArgument(fmt.Errorf("wrapped: %w", ErrInvalidArgument)))
	require.False(t, IsInvalidArgument(ErrNotFound))

	require.True(t, IsAccessDenied(AccessDenied("nope")))
	require.True(t, IsNotFound(NotFound("gone")))
	require.False(t, IsNotFound(nil))

	cause := errors.New("constraint failed")
	partial := PartialWrite(CollectionPosts, cause)
	require.True(t, IsPartialWrite(partial))
	require.ErrorIs(t, partial, cause)
	require.True(t, IsPartialWrite(PartialWrite(CollectionPosts, nil)))
}

func TestCollectionSpecHelpers(t *testing.T) {
	spec := CollectionSpec{
		Collection: CollectionMessages,
		OwnerField: "sender_id",
		Fields:     map[CanonicalField]string{FieldDisplayName: "sender_name"},
	}
	require.Equal(t, CollectionMessages, spec.Key())
	require.Equal(t, DefaultUpdatedAtField, spec.StampField())

	spec.Label = "messages.sender"
	spec.UpdatedAtField = "-"
	require.Equal(t, "messages.sender", spec.Key())
	require.Empty(t, spec.StampField())

	mapped := spec.Mapped(map[CanonicalField]string{
		FieldDisplayName: "Ada",
		FieldAvatarRef:   "https://cdn.example.test/a.png",
	})
	require.Equal(t, map[string]any{"sender_name": "Ada"}, mapped)
}

func TestDefaultCollectionsKeysAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, spec := range DefaultCollections() {
		require.False(t, seen[spec.Key()], spec.Key())
		seen[spec.Key()] = true
		require.NotEmpty(t, spec.OwnerField)
	}
	require.Len(t, seen, 6)
}

func TestParseCanonicalField(t *testing.T) {
	field, ok := ParseCanonicalField(" display_name ")
	require.True(t, ok)
	require.Equal(t, FieldDisplayName, field)

	field, ok = ParseCanonicalField("avatarURL")
	require.True(t, ok)
	require.Equal(t, FieldAvatarRef, field)

	_, ok = ParseCanonicalField("bio")
	require.False(t, ok)
	require.False(t, CanonicalField("bio").Valid())
}

func TestSyncResultAndAuditReport(t *testing.T) {
	result := SyncResult{
		TotalUpdated: 3,
		Collections: []CollectionOutcome{
			{Collection: CollectionPosts, Updated: 3, Success: true},
			{Collection: CollectionNotifications, Success: true, Skipped: true, SkipReason: "no mapped fields"},
		},
	}
	require.True(t, result.Complete())
	require.Empty(t, result.FailedCollections())

	result.Collections = append(result.Collections, CollectionOutcome{Collection: CollectionLikes, Error: "denied"})
	require.False(t, result.Complete())
	require.Equal(t, []string{CollectionLikes}, result.FailedCollections())

	outcome, ok := result.Outcome(CollectionPosts)
	require.True(t, ok)
	require.Equal(t, 3, outcome.Updated)

	fallback := SyncResult{Collections: []CollectionOutcome{{Collection: CollectionPosts, Updated: 1, Failed: 1, Success: true}}}
	require.False(t, fallback.Complete())

	report := AuditReport{Collections: []CollectionAudit{
		{Collection: CollectionPosts, MismatchCount: 2, Mismatches: []Mismatch{
			{RecordID: "p1", CanonicalField: FieldDisplayName},
			{RecordID: "p2", CanonicalField: FieldDisplayName},
		}},
		{Collection: CollectionComments, MismatchCount: 1, Mismatches: []Mismatch{
			{RecordID: "c1", CanonicalField: FieldAvatarRef},
		}},
	}}
	require.Equal(t, 3, report.TotalMismatches())
	require.False(t, report.Consistent())
	require.Equal(t, []CanonicalField{FieldDisplayName, FieldAvatarRef}, report.Drift())
}

func TestValueConversions(t *testing.T) {
	require.Equal(t, "abc", AsString([]byte("abc")))
	require.Equal(t, "", AsString(nil))
	require.Equal(t, 7, AsInt(int64(7)))
	require.Equal(t, 12, AsInt("12"))
	require.Equal(t, 1, AsInt(true))

	f, ok := AsFloat("51.5")
	require.True(t, ok)
	require.InDelta(t, 51.5, f, 1e-9)
	_, ok = AsFloat("north")
	require.False(t, ok)

	require.True(t, AsBool(int64(1)))
	require.True(t, AsBool("true"))
	require.False(t, AsBool("0"))

	want := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.Equal(t, want, AsTime("2026-03-01 09:00:00"))
	require.Equal(t, want, AsTime(want.Format(time.RFC3339Nano)))
	require.True(t, AsTime("yesterday").IsZero())
}

func TestRecordFallbacks(t *testing.T) {
	post := PostFromDocument(Document{ID: "p1", Fields: map[string]any{"user_id": "u1"}})
	require.Equal(t, DefaultDisplayName, post.UserName)
	require.Equal(t, DefaultPostTitle, post.Title)

	loc := LocationFromDocument(Document{ID: "u1", Fields: map[string]any{"latitude": 1.5}})
	require.False(t, loc.Valid)
}

func TestHooksMerge(t *testing.T) {
	var calls []string
	first := Hooks{AfterSync: func(context.Context, SyncEvent) { calls = append(calls, "first") }}
	second := Hooks{
		AfterSync:  func(context.Context, SyncEvent) { calls = append(calls, "second") },
		AfterAudit: func(context.Context, AuditEvent) { calls = append(calls, "audit") },
	}
	merged := first.Merge(second)
	merged.AfterSync(context.Background(), SyncEvent{})
	merged.AfterAudit(context.Background(), AuditEvent{})
	require.Equal(t, []string{"first", "second", "audit"}, calls)
	require.Nil(t, merged.AfterAdminAction)
}

func TestProfileHelpers(t *testing.T) {
	profile := UserProfile{DisplayName: "Ada", AvatarRef: "a.png", Role: " Admin "}
	require.True(t, profile.IsAdmin())
	require.Equal(t, map[CanonicalField]string{FieldDisplayName: "Ada", FieldAvatarRef: "a.png"}, profile.Canonical())
}
