// Package contextcache tracks provider-side prompt cache state across turns.
// The coordinator keys a conversation prefix by content hash, pushes only the
// raw turns the provider has not seen yet, and drops all bookkeeping the
// moment the prefix can no longer be trusted (project switch, new
// conversation).
package contextcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"sitesmith/core"
	"sitesmith/logging"
)

// Provider is the provider-side cache surface. Push uploads raw turns under a
// prefix key; implementations are free to batch or ignore.
type Provider interface {
	Push(ctx context.Context, key string, raw []core.RawTurn) error
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, key string, raw []core.RawTurn) error

// Push implements Provider.
func (f ProviderFunc) Push(ctx context.Context, key string, raw []core.RawTurn) error {
	return f(ctx, key, raw)
}

// Coordinator tracks which prefix of the raw history the provider cache has
// seen. It is deliberately conservative: any doubt about prefix identity
// invalidates the whole cache rather than risking a stale prefix.
type Coordinator struct {
	provider Provider
	logger   logging.Logger

	mu          sync.Mutex
	key         string
	cachedTurns int
}

// NewCoordinator creates a Coordinator. A nil provider disables pushing but
// key bookkeeping still works, so callers need no special casing.
func NewCoordinator(provider Provider, logger logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Coordinator{provider: provider, logger: logger}
}

// Key derives the cache key for a conversation prefix: a content hash over
// the system prompt and every raw turn, in order. Identical prefixes yield
// identical keys across restarts.
func Key(systemPrompt string, raw []core.RawTurn) string {
	h := sha256.New()
	h.Write([]byte(systemPrompt))
	for _, turn := range raw {
		h.Write([]byte{0}) // turn separator
		h.Write(turn)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ActiveKey returns the key of the currently cached prefix, empty when
// nothing is cached.
func (c *Coordinator) ActiveKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

// CachedTurns returns how many raw turns the provider cache has seen.
func (c *Coordinator) CachedTurns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cachedTurns
}

// Sync pushes the raw turns beyond the cached prefix and advances the
// bookkeeping. If the history is shorter than the cached prefix the cache is
// invalidated first; a shrunk history means the conversation was replaced.
func (c *Coordinator) Sync(ctx context.Context, systemPrompt string, raw []core.RawTurn) error {
	c.mu.Lock()
	if len(raw) < c.cachedTurns {
		c.logger.Debug("contextcache.shrunk", "cached", c.cachedTurns, "have", len(raw))
		c.key = ""
		c.cachedTurns = 0
	}
	delta := raw[c.cachedTurns:]
	newKey := Key(systemPrompt, raw)
	c.mu.Unlock()

	if len(delta) > 0 && c.provider != nil {
		if err := c.provider.Push(ctx, newKey, delta); err != nil {
			// A failed push leaves the old bookkeeping in place; the next
			// Sync retries the same delta.
			c.logger.Warn("contextcache.push_failed", "error", err.Error())
			return err
		}
	}

	c.mu.Lock()
	c.key = newKey
	c.cachedTurns = len(raw)
	c.mu.Unlock()

	c.logger.Debug("contextcache.synced", "turns", len(raw), "delta", len(delta))
	return nil
}

// Invalidate forgets the cached prefix entirely. Called on project switch and
// new conversation.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	c.key = ""
	c.cachedTurns = 0
	c.mu.Unlock()
	c.logger.Debug("contextcache.invalidated")
}
