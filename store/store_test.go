package store_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/goliatone/go-profilesync/store"
	"github.com/goliatone/go-profilesync/store/memory"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversInitialAndCoalescedReloads(t *testing.T) {
	hub := store.NewHub(nil)
	defer hub.Close()

	var loads atomic.Int32
	deliveries := make(chan int, 16)
	unsubscribe, err := hub.Subscribe(context.Background(), "posts",
		func(context.Context) ([]types.Document, error) {
			n := loads.Add(1)
			return []types.Document{{ID: "p", Fields: map[string]any{"n": int(n)}}}, nil
		},
		func(docs []types.Document) { deliveries <- types.AsInt(docs[0].Fields["n"]) },
		nil,
	)
	require.NoError(t, err)
	require.Equal(t, 1, hub.Subscribers("posts"))

	require.Equal(t, 1, waitFor(t, deliveries))

	hub.Publish("posts")
	require.Eventually(t, func() bool { return loads.Load() >= 2 }, time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()
	require.Equal(t, 0, hub.Subscribers("posts"))
}

func TestHub_ReportsQueryErrors(t *testing.T) {
	hub := store.NewHub(nil)
	defer hub.Close()

	errs := make(chan error, 1)
	unsubscribe, err := hub.Subscribe(context.Background(), "posts",
		func(context.Context) ([]types.Document, error) { return nil, types.AccessDenied("nope") },
		func([]types.Document) { t.Error("onChange must not run") },
		func(err error) { errs <- err },
	)
	require.NoError(t, err)
	defer unsubscribe()

	select {
	case err := <-errs:
		require.True(t, types.IsAccessDenied(err))
	case <-time.After(time.Second):
		t.Fatal("expected subscription error")
	}
}

func TestHub_SubscribeDoesNotBlockOnConcurrentPublish(t *testing.T) {
	hub := store.NewHub(nil)
	defer hub.Close()

	stop := make(chan struct{})
	publisherDone := make(chan struct{})
	go func() {
		defer close(publisherDone)
		for {
			select {
			case <-stop:
				return
			default:
				hub.Publish("posts")
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			unsubscribe, err := hub.Subscribe(context.Background(), "posts",
				func(context.Context) ([]types.Document, error) { return nil, nil },
				func([]types.Document) {}, nil)
			if err != nil {
				t.Errorf("subscribe: %v", err)
				return
			}
			unsubscribe()
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("subscribe blocked while publishing")
	}
	close(stop)
	<-publisherDone
}

func TestHub_RejectsAfterClose(t *testing.T) {
	hub := store.NewHub(nil)
	hub.Close()
	_, err := hub.Subscribe(context.Background(), "posts",
		func(context.Context) ([]types.Document, error) { return nil, nil },
		func([]types.Document) {}, nil)
	require.Error(t, err)

	_, err = store.NewHub(nil).Subscribe(context.Background(), "posts", nil, nil, nil)
	require.True(t, types.IsInvalidArgument(err))
}

func TestGuarded_DeniesWritesAndReads(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	defer inner.Close()
	_, err := inner.Insert(ctx, types.CollectionMessages, map[string]any{"id": "m1", "sender_id": "u1"})
	require.NoError(t, err)

	guarded := store.WithRules(inner,
		store.DenyWrites(types.CollectionMessages),
		store.DenyReads(types.CollectionNotifications),
		nil,
	)

	docs, err := guarded.Query(ctx, types.CollectionMessages, types.Where("sender_id", "u1"))
	require.NoError(t, err)
	require.Len(t, docs, 1)

	err = guarded.BulkWrite(ctx, types.CollectionMessages, []types.Update{{ID: "m1", Fields: map[string]any{"sender_name": "x"}}})
	require.True(t, types.IsAccessDenied(err))

	err = guarded.Write(ctx, types.CollectionMessages, "m1", map[string]any{"sender_name": "x"})
	require.True(t, types.IsAccessDenied(err))

	_, err = guarded.Insert(ctx, types.CollectionMessages, map[string]any{"sender_id": "u1"})
	require.True(t, types.IsAccessDenied(err))

	require.NoError(t, guarded.Delete(ctx, types.CollectionMessages, "missing"))

	_, err = guarded.Query(ctx, types.CollectionNotifications)
	require.True(t, types.IsAccessDenied(err))

	var reported error
	unsubscribe, err := guarded.Subscribe(ctx, types.CollectionNotifications, nil,
		func([]types.Document) {},
		func(err error) { reported = err },
	)
	require.NoError(t, err)
	require.NotNil(t, unsubscribe)
	unsubscribe()
	require.True(t, types.IsAccessDenied(reported))

	stored, ok := inner.Get(types.CollectionMessages, "m1")
	require.True(t, ok)
	require.False(t, stored.Has("sender_name"))
}

func waitFor(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
		return 0
	}
}
