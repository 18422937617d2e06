package types

import "strings"

// CanonicalField names a denormalizable profile attribute.
type CanonicalField string

const (
	FieldDisplayName CanonicalField = "displayName"
	FieldAvatarRef   CanonicalField = "avatarRef"
)

// CanonicalFields lists every recognized denormalizable field in a stable order.
func CanonicalFields() []CanonicalField {
	return []CanonicalField{FieldDisplayName, FieldAvatarRef}
}

// Valid reports whether the field is a recognized canonical field.
func (f CanonicalField) Valid() bool {
	switch f {
	case FieldDisplayName, FieldAvatarRef:
		return true
	}
	return false
}

// ParseCanonicalField accepts canonical names and their snake_case forms.
func ParseCanonicalField(name string) (CanonicalField, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "displayname", "display_name", "name", "username":
		return FieldDisplayName, true
	case "avatarref", "avatar_ref", "avatar", "avatar_url", "avatarurl":
		return FieldAvatarRef, true
	}
	return "", false
}

// DefaultUpdatedAtField is the column stamped on every fan-out write.
const DefaultUpdatedAtField = "updated_at"

// CollectionSpec declares where a collection stores denormalized copies.
type CollectionSpec struct {
	// Label distinguishes multiple specs over the same collection.
	Label      string
	Collection string
	OwnerField string
	Fields     map[CanonicalField]string
	Optional   bool
	// UpdatedAtField overrides DefaultUpdatedAtField; "-" disables the stamp.
	UpdatedAtField string
}

// Key returns the identifier used in outcomes and reports.
func (s CollectionSpec) Key() string {
	if strings.TrimSpace(s.Label) != "" {
		return s.Label
	}
	return s.Collection
}

// StampField returns the updated-at column or "" when stamping is disabled.
func (s CollectionSpec) StampField() string {
	switch s.UpdatedAtField {
	case "":
		return DefaultUpdatedAtField
	case "-":
		return ""
	}
	return s.UpdatedAtField
}

// Mapped translates a canonical change set into stored field names. Fields
// the spec does not map are dropped.
func (s CollectionSpec) Mapped(changes map[CanonicalField]string) map[string]any {
	out := make(map[string]any, len(changes))
	for canonical, value := range changes {
		stored, ok := s.Fields[canonical]
		if !ok || strings.TrimSpace(stored) == "" {
			continue
		}
		out[stored] = value
	}
	return out
}

// DefaultCollections returns the dependent collection table.
func DefaultCollections() []CollectionSpec {
	return []CollectionSpec{
		{
			Collection: CollectionPosts,
			OwnerField: "user_id",
			Fields:     map[CanonicalField]string{FieldDisplayName: "user_name", FieldAvatarRef: "avatar"},
		},
		{
			Collection: CollectionComments,
			OwnerField: "user_id",
			Fields:     map[CanonicalField]string{FieldDisplayName: "user_name", FieldAvatarRef: "avatar"},
		},
		{
			Collection: CollectionLikes,
			OwnerField: "user_id",
			Fields:     map[CanonicalField]string{FieldDisplayName: "user_name", FieldAvatarRef: "avatar"},
		},
		{
			Label:      "messages.sender",
			Collection: CollectionMessages,
			OwnerField: "sender_id",
			Fields:     map[CanonicalField]string{FieldDisplayName: "sender_name", FieldAvatarRef: "sender_avatar"},
			Optional:   true,
		},
		{
			Label:      "messages.receiver",
			Collection: CollectionMessages,
			OwnerField: "receiver_id",
			Fields:     map[CanonicalField]string{FieldDisplayName: "receiver_name", FieldAvatarRef: "receiver_avatar"},
			Optional:   true,
		},
		{
			Collection: CollectionNotifications,
			OwnerField: "sender_id",
			Fields:     map[CanonicalField]string{FieldDisplayName: "sender_name"},
			Optional:   true,
		},
	}
}

// CollectionOutcome reports what happened to one dependent collection.
type CollectionOutcome struct {
	Collection string
	Updated    int
	Failed     int
	Success    bool
	Skipped    bool
	SkipReason string
	Error      string
}

// SyncResult aggregates the outcome of a fan-out job.
type SyncResult struct {
	TotalUpdated int
	Collections  []CollectionOutcome
	Errors       []string
}

// Outcome returns the outcome recorded for the collection key.
func (r SyncResult) Outcome(key string) (CollectionOutcome, bool) {
	for _, outcome := range r.Collections {
		if outcome.Collection == key {
			return outcome, true
		}
	}
	return CollectionOutcome{}, false
}

// Complete reports whether every collection succeeded or was skipped and no
// record-level failure occurred.
func (r SyncResult) Complete() bool {
	if len(r.Errors) > 0 {
		return false
	}
	for _, outcome := range r.Collections {
		if !outcome.Success || outcome.Failed > 0 {
			return false
		}
	}
	return true
}

// FailedCollections returns the keys of collections that did not succeed.
func (r SyncResult) FailedCollections() []string {
	var out []string
	for _, outcome := range r.Collections {
		if !outcome.Success {
			out = append(out, outcome.Collection)
		}
	}
	return out
}

// Mismatch describes a stale denormalized copy.
type Mismatch struct {
	RecordID       string
	Field          string
	CanonicalField CanonicalField
	Current        string
	Expected       string
}

// CollectionAudit lists mismatches found in a collection.
type CollectionAudit struct {
	Collection    string
	MismatchCount int
	Mismatches    []Mismatch
	Skipped       bool
	Error         string
}

// AuditReport is the full auditor output for one user.
type AuditReport struct {
	UserID      string
	Collections []CollectionAudit
}

// TotalMismatches sums mismatches across collections.
func (r AuditReport) TotalMismatches() int {
	total := 0
	for _, coll := range r.Collections {
		total += coll.MismatchCount
	}
	return total
}

// Consistent reports whether no mismatches were found.
func (r AuditReport) Consistent() bool {
	return r.TotalMismatches() == 0
}

// Drift returns the canonical fields that have at least one stale copy.
func (r AuditReport) Drift() []CanonicalField {
	seen := make(map[CanonicalField]bool)
	var out []CanonicalField
	for _, coll := range r.Collections {
		for _, m := range coll.Mismatches {
			if seen[m.CanonicalField] {
				continue
			}
			seen[m.CanonicalField] = true
			out = append(out, m.CanonicalField)
		}
	}
	return out
}
