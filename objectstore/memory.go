package objectstore

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-profilesync/pkg/types"
)

// Memory keeps objects in process. Used when no bucket is configured.
type Memory struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]memoryObject
}

type memoryObject struct {
	payload     []byte
	contentType string
}

var _ types.ObjectStore = (*Memory)(nil)

// NewMemory returns an empty store whose references start with baseURL.
func NewMemory(baseURL string) *Memory {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "memory://objects"
	}
	return &Memory{baseURL: baseURL, objects: map[string]memoryObject{}}
}

func (m *Memory) Put(_ context.Context, key string, payload []byte, contentType string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "", types.InvalidArgument("objectstore: key required")
	}
	m.mu.Lock()
	m.objects[key] = memoryObject{payload: append([]byte(nil), payload...), contentType: contentType}
	m.mu.Unlock()
	return m.baseURL + "/" + key, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) KeyFor(ref string) (string, bool) {
	key, ok := strings.CutPrefix(ref, m.baseURL+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// Get returns a stored payload and its content type.
func (m *Memory) Get(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), obj.payload...), obj.contentType, true
}
