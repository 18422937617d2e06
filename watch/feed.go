// Package watch keeps a live, per-user view of notifications on top of the
// document store's subscriptions.
package watch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/google/uuid"
)

// NotificationTypeLike marks notifications created by NotifyLike.
const NotificationTypeLike = "like"

// Config wires the notification feed.
type Config struct {
	Store    types.DocumentStore
	Profiles types.ProfileRepository
	// OnUpdate receives a copy of the state after every change.
	OnUpdate func(State)
	Clock    types.Clock
	Logger   types.Logger
}

// State is a point-in-time copy of the feed.
type State struct {
	UserID           uuid.UUID
	Notifications    []types.Notification
	Unread           int
	Loading          bool
	Listening        bool
	PermissionDenied bool
	Err              string
}

// NotificationFeed tracks the notifications addressed to one user at a time.
type NotificationFeed struct {
	store    types.DocumentStore
	profiles types.ProfileRepository
	onUpdate func(State)
	clock    types.Clock
	logger   types.Logger

	mu          sync.Mutex
	gen         uint64
	state       State
	unsubscribe func()
}

// NewNotificationFeed constructs a stopped feed.
func NewNotificationFeed(cfg Config) (*NotificationFeed, error) {
	if cfg.Store == nil {
		return nil, types.ErrMissingDocumentStore
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &NotificationFeed{
		store:    cfg.Store,
		profiles: cfg.Profiles,
		onUpdate: cfg.OnUpdate,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Start subscribes to the user's notifications. Starting again for the user
// already being watched is a no-op; starting for another user replaces the
// previous subscription.
func (f *NotificationFeed) Start(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return types.ErrUserIDRequired
	}
	f.mu.Lock()
	if f.unsubscribe != nil && f.state.UserID == userID && f.state.Err == "" {
		f.mu.Unlock()
		return nil
	}
	f.stopLocked()
	f.gen++
	gen := f.gen
	f.state = State{UserID: userID, Loading: true}
	f.mu.Unlock()

	unsubscribe, err := f.store.Subscribe(ctx, types.CollectionNotifications,
		[]types.Filter{types.Where("recipient_id", userID.String())},
		func(docs []types.Document) { f.apply(gen, docs) },
		func(err error) { f.fail(gen, err) },
	)
	if err != nil {
		f.fail(gen, err)
		return err
	}

	f.mu.Lock()
	if f.gen != gen {
		f.mu.Unlock()
		unsubscribe()
		return nil
	}
	f.unsubscribe = unsubscribe
	f.mu.Unlock()
	f.logger.Debug("notification feed started", "user_id", userID.String())
	return nil
}

// Stop cancels the subscription. Notifications already loaded are kept.
func (f *NotificationFeed) Stop() {
	f.mu.Lock()
	f.stopLocked()
	f.mu.Unlock()
}

// Reset stops the feed and clears all state.
func (f *NotificationFeed) Reset() {
	f.mu.Lock()
	f.stopLocked()
	f.state = State{}
	f.mu.Unlock()
}

func (f *NotificationFeed) stopLocked() {
	f.gen++
	if f.unsubscribe != nil {
		f.unsubscribe()
		f.unsubscribe = nil
	}
	f.state.Listening = false
	f.state.Loading = false
}

// State returns a copy of the current feed state.
func (f *NotificationFeed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyState(f.state)
}

// UnreadCount returns the number of unread notifications.
func (f *NotificationFeed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Unread
}

// MarkRead flags one notification as read.
func (f *NotificationFeed) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return types.InvalidArgument("watch: notification id required")
	}
	return f.store.Write(ctx, types.CollectionNotifications, id, map[string]any{
		"read":       true,
		"updated_at": f.clock.Now(),
	})
}

// MarkAllRead flags every unread notification in the feed as read in one
// atomic write.
func (f *NotificationFeed) MarkAllRead(ctx context.Context) error {
	f.mu.Lock()
	stamp := f.clock.Now()
	var updates []types.Update
	for _, n := range f.state.Notifications {
		if n.Read {
			continue
		}
		updates = append(updates, types.Update{ID: n.ID, Fields: map[string]any{"read": true, "updated_at": stamp}})
	}
	f.mu.Unlock()
	if len(updates) == 0 {
		return nil
	}
	return f.store.BulkWrite(ctx, types.CollectionNotifications, updates)
}

// NotifyLike tells the post owner that liker liked the post. Self-likes do
// not notify.
func (f *NotificationFeed) NotifyLike(ctx context.Context, postID string, ownerID, likerID uuid.UUID) error {
	if postID == "" || ownerID == uuid.Nil || likerID == uuid.Nil {
		return types.InvalidArgument("watch: post, owner and liker required")
	}
	if ownerID == likerID {
		return nil
	}
	name := types.DefaultDisplayName
	if f.profiles != nil {
		profile, err := f.profiles.GetProfile(ctx, likerID)
		if err != nil {
			return err
		}
		if profile != nil && profile.DisplayName != "" {
			name = profile.DisplayName
		}
	}
	_, err := f.store.Insert(ctx, types.CollectionNotifications, map[string]any{
		"recipient_id": ownerID.String(),
		"sender_id":    likerID.String(),
		"sender_name":  name,
		"type":         NotificationTypeLike,
		"post_id":      postID,
		"message":      fmt.Sprintf("%s liked your post", name),
		"read":         false,
		"created_at":   f.clock.Now(),
	})
	return err
}

func (f *NotificationFeed) apply(gen uint64, docs []types.Document) {
	notifications := make([]types.Notification, 0, len(docs))
	unread := 0
	for _, doc := range docs {
		n := types.NotificationFromDocument(doc)
		if !n.Read {
			unread++
		}
		notifications = append(notifications, n)
	}
	sort.SliceStable(notifications, func(i, j int) bool {
		a, b := notifications[i], notifications[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	f.mu.Lock()
	if f.gen != gen {
		f.mu.Unlock()
		return
	}
	f.state.Notifications = notifications
	f.state.Unread = unread
	f.state.Loading = false
	f.state.Listening = true
	f.state.PermissionDenied = false
	f.state.Err = ""
	snapshot := copyState(f.state)
	f.mu.Unlock()
	f.notify(snapshot)
}

func (f *NotificationFeed) fail(gen uint64, err error) {
	f.mu.Lock()
	if f.gen != gen {
		f.mu.Unlock()
		return
	}
	f.state.Loading = false
	f.state.Listening = false
	f.state.PermissionDenied = types.IsAccessDenied(err)
	f.state.Err = err.Error()
	userID := f.state.UserID
	snapshot := copyState(f.state)
	f.mu.Unlock()
	f.logger.Error("notification feed error", err, "user_id", userID.String())
	f.notify(snapshot)
}

func (f *NotificationFeed) notify(state State) {
	if f.onUpdate != nil {
		f.onUpdate(state)
	}
}

func copyState(state State) State {
	state.Notifications = append([]types.Notification(nil), state.Notifications...)
	return state
}
