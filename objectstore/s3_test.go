package objectstore

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goliatone/go-profilesync/pkg/types"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	deleted []string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = body
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_PutDeleteAndKeyFor(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	store, err := NewS3Store(ctx, S3Config{
		Bucket:  "avatars-bucket",
		BaseURL: "https://cdn.example.test/",
		Client:  client,
	})
	require.NoError(t, err)

	ref, err := store.Put(ctx, "avatars/u1/1.png", []byte("png"), "image/png")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.test/avatars/u1/1.png", ref)
	require.Equal(t, []byte("png"), client.objects["avatars-bucket/avatars/u1/1.png"])
	require.Equal(t, "image/png", client.types["avatars-bucket/avatars/u1/1.png"])

	key, ok := store.KeyFor(ref)
	require.True(t, ok)
	require.Equal(t, "avatars/u1/1.png", key)

	_, ok = store.KeyFor("https://elsewhere.example.test/a.png")
	require.False(t, ok)

	require.NoError(t, store.Delete(ctx, key))
	require.Empty(t, client.objects)
	require.Equal(t, []string{"avatars-bucket/avatars/u1/1.png"}, client.deleted)
}

func TestS3Store_DefaultBaseURLAndErrors(t *testing.T) {
	ctx := context.Background()
	_, err := NewS3Store(ctx, S3Config{Client: newFakeS3()})
	require.True(t, types.IsInvalidArgument(err))

	client := newFakeS3()
	store, err := NewS3Store(ctx, S3Config{Bucket: "media", Region: "eu-west-1", Client: client})
	require.NoError(t, err)

	ref, err := store.Put(ctx, "a.png", []byte("x"), "image/png")
	require.NoError(t, err)
	require.Equal(t, "https://media.s3.eu-west-1.amazonaws.com/a.png", ref)

	_, err = store.Put(ctx, "  ", []byte("x"), "image/png")
	require.True(t, types.IsInvalidArgument(err))

	client.putErr = errors.New("access denied")
	_, err = store.Put(ctx, "b.png", []byte("x"), "image/png")
	require.ErrorContains(t, err, "access denied")
}

func TestMemory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory("")

	ref, err := store.Put(ctx, "avatars/u1/a.png", []byte("img"), "image/png")
	require.NoError(t, err)
	key, ok := store.KeyFor(ref)
	require.True(t, ok)

	payload, contentType, ok := store.Get(key)
	require.True(t, ok)
	require.Equal(t, []byte("img"), payload)
	require.Equal(t, "image/png", contentType)

	require.NoError(t, store.Delete(ctx, key))
	_, _, ok = store.Get(key)
	require.False(t, ok)
}
