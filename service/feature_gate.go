package service

import (
	"context"
	"strings"
	"sync"

	featuregate "github.com/goliatone/go-featuregate/gate"
)

// StaticGate resolves feature keys from a fixed table, typically loaded
// from configuration. Unknown keys resolve to Fallback.
type StaticGate struct {
	mu       sync.RWMutex
	values   map[string]bool
	Fallback bool
}

var _ featuregate.FeatureGate = (*StaticGate)(nil)

// NewStaticGate copies values into a new gate.
func NewStaticGate(values map[string]bool, fallback bool) *StaticGate {
	gate := &StaticGate{values: make(map[string]bool, len(values)), Fallback: fallback}
	for key, enabled := range values {
		gate.values[normalizeFeatureKey(key)] = enabled
	}
	return gate
}

// Enabled implements featuregate.FeatureGate. Scope options are ignored.
func (g *StaticGate) Enabled(_ context.Context, key string, _ ...featuregate.ResolveOption) (bool, error) {
	if g == nil {
		return true, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if enabled, ok := g.values[normalizeFeatureKey(key)]; ok {
		return enabled, nil
	}
	return g.Fallback, nil
}

// Set toggles a key at runtime.
func (g *StaticGate) Set(key string, enabled bool) {
	g.mu.Lock()
	g.values[normalizeFeatureKey(key)] = enabled
	g.mu.Unlock()
}

func normalizeFeatureKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
