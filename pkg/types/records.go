package types

import (
	"strings"
	"time"
)

// Collection names used by the social content model.
const (
	CollectionUsers         = "users"
	CollectionPosts         = "posts"
	CollectionComments      = "comments"
	CollectionLikes         = "likes"
	CollectionMessages      = "messages"
	CollectionNotifications = "notifications"
	CollectionLocations     = "locations"
)

const (
	// DefaultDisplayName is used when a record carries no author name.
	DefaultDisplayName = "Anonymous"
	// DefaultPostTitle is used when a post carries no title.
	DefaultPostTitle = "Untitled"
)

// Post is the typed view of a posts document.
type Post struct {
	ID        string
	UserID    string
	UserName  string
	Avatar    string
	Title     string
	Content   string
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Comment is the typed view of a comments document.
type Comment struct {
	ID        string
	PostID    string
	UserID    string
	UserName  string
	Avatar    string
	Content   string
	CreatedAt time.Time
}

// Like is the typed view of a likes document.
type Like struct {
	ID        string
	PostID    string
	UserID    string
	UserName  string
	Avatar    string
	CreatedAt time.Time
}

// Message is the typed view of a messages document.
type Message struct {
	ID             string
	SenderID       string
	SenderName     string
	SenderAvatar   string
	ReceiverID     string
	ReceiverName   string
	ReceiverAvatar string
	Content        string
	Read           bool
	CreatedAt      time.Time
}

// Notification is the typed view of a notifications document.
type Notification struct {
	ID          string
	RecipientID string
	SenderID    string
	SenderName  string
	Type        string
	PostID      string
	Message     string
	Read        bool
	CreatedAt   time.Time
}

// Location is the last shared position of a user.
type Location struct {
	ID        string
	UserID    string
	Latitude  float64
	Longitude float64
	Valid     bool
	UpdatedAt time.Time
}

// PostFromDocument converts a document applying default fallbacks.
func PostFromDocument(doc Document) Post {
	return Post{
		ID:        doc.ID,
		UserID:    doc.String("user_id"),
		UserName:  orDefault(doc.String("user_name"), DefaultDisplayName),
		Avatar:    doc.String("avatar"),
		Title:     orDefault(doc.String("title"), DefaultPostTitle),
		Content:   doc.String("content"),
		ImageURL:  doc.String("image_url"),
		CreatedAt: AsTime(doc.Fields["created_at"]),
		UpdatedAt: AsTime(doc.Fields["updated_at"]),
	}
}

// CommentFromDocument converts a document applying default fallbacks.
func CommentFromDocument(doc Document) Comment {
	return Comment{
		ID:        doc.ID,
		PostID:    doc.String("post_id"),
		UserID:    doc.String("user_id"),
		UserName:  orDefault(doc.String("user_name"), DefaultDisplayName),
		Avatar:    doc.String("avatar"),
		Content:   doc.String("content"),
		CreatedAt: AsTime(doc.Fields["created_at"]),
	}
}

// LikeFromDocument converts a document applying default fallbacks.
func LikeFromDocument(doc Document) Like {
	return Like{
		ID:        doc.ID,
		PostID:    doc.String("post_id"),
		UserID:    doc.String("user_id"),
		UserName:  orDefault(doc.String("user_name"), DefaultDisplayName),
		Avatar:    doc.String("avatar"),
		CreatedAt: AsTime(doc.Fields["created_at"]),
	}
}

// MessageFromDocument converts a document applying default fallbacks.
func MessageFromDocument(doc Document) Message {
	return Message{
		ID:             doc.ID,
		SenderID:       doc.String("sender_id"),
		SenderName:     orDefault(doc.String("sender_name"), DefaultDisplayName),
		SenderAvatar:   doc.String("sender_avatar"),
		ReceiverID:     doc.String("receiver_id"),
		ReceiverName:   orDefault(doc.String("receiver_name"), DefaultDisplayName),
		ReceiverAvatar: doc.String("receiver_avatar"),
		Content:        doc.String("content"),
		Read:           AsBool(doc.Fields["read"]),
		CreatedAt:      AsTime(doc.Fields["created_at"]),
	}
}

// NotificationFromDocument converts a document applying default fallbacks.
func NotificationFromDocument(doc Document) Notification {
	return Notification{
		ID:          doc.ID,
		RecipientID: doc.String("recipient_id"),
		SenderID:    doc.String("sender_id"),
		SenderName:  orDefault(doc.String("sender_name"), DefaultDisplayName),
		Type:        doc.String("type"),
		PostID:      doc.String("post_id"),
		Message:     doc.String("message"),
		Read:        AsBool(doc.Fields["read"]),
		CreatedAt:   AsTime(doc.Fields["created_at"]),
	}
}

// LocationFromDocument converts a document. Valid is false when either
// coordinate is missing or not numeric.
func LocationFromDocument(doc Document) Location {
	lat, latOK := AsFloat(doc.Fields["latitude"])
	lng, lngOK := AsFloat(doc.Fields["longitude"])
	return Location{
		ID:        doc.ID,
		UserID:    doc.String("user_id"),
		Latitude:  lat,
		Longitude: lng,
		Valid:     latOK && lngOK,
		UpdatedAt: AsTime(doc.Fields["updated_at"]),
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
