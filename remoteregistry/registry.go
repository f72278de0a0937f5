package remoteregistry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/manifest"

	"golang.org/x/sync/singleflight"
)

const defaultTTL = 5 * time.Minute

var _ safeclick.PromptRegistry = (*Registry)(nil)

type cacheEntry struct {
	tpl       *safeclick.ChatPromptTemplate
	expiresAt time.Time
}

// Registry loads templates through a Fetcher and caches them with a TTL.
// Concurrent misses for the same key share one fetch.
type Registry struct {
	fetcher Fetcher
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.RWMutex
	cache   map[string]cacheEntry
	sf      singleflight.Group
}

// New creates a Registry backed by fetcher. Panics if fetcher is nil.
func New(fetcher Fetcher, opts ...Option) *Registry {
	if fetcher == nil {
		panic("remoteregistry: Fetcher must not be nil")
	}
	r := &Registry{
		fetcher: fetcher,
		ttl:     defaultTTL,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
		cache:   make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) lookup(key string) (*safeclick.ChatPromptTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ent, ok := r.cache[key]
	if !ok || (r.ttl > 0 && !r.now().Before(ent.expiresAt)) {
		return nil, false
	}
	return safeclick.CloneTemplate(ent.tpl), true
}

// GetTemplate returns a copy of the template for name in env, fetching on miss or expiry.
func (r *Registry) GetTemplate(ctx context.Context, name, env string) (*safeclick.ChatPromptTemplate, error) {
	if err := ValidateName(name, env); err != nil {
		return nil, err
	}
	key := name + ":" + env
	if tpl, ok := r.lookup(key); ok {
		return tpl, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The shared fetch must not die with whichever caller started it.
	v, err, _ := r.sf.Do(key, func() (any, error) {
		fetchCtx, cancel := detachCancel(ctx)
		defer cancel()
		start := r.now()
		data, err := r.fetcher.Fetch(fetchCtx, name, env)
		if err != nil {
			return nil, err
		}
		tpl, err := manifest.ParseBytes(data)
		if err != nil {
			return nil, err
		}
		tpl.Metadata.Environment = env
		var expiresAt time.Time
		if r.ttl > 0 {
			expiresAt = r.now().Add(r.ttl)
		}
		r.mu.Lock()
		r.cache[key] = cacheEntry{tpl: tpl, expiresAt: expiresAt}
		r.mu.Unlock()
		r.logger.DebugContext(ctx, "prompt manifest fetched",
			"name", name, "env", env, "version", tpl.Metadata.Version, "elapsed", r.now().Sub(start))
		return tpl, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %q: %w", safeclick.ErrTemplateNotFound, name, err)
		}
		return nil, err
	}
	return safeclick.CloneTemplate(v.(*safeclick.ChatPromptTemplate)), nil
}

// detachCancel keeps parent's values and deadline but not its cancellation.
func detachCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(parent)
	if dl, ok := parent.Deadline(); ok {
		return context.WithDeadline(ctx, dl)
	}
	return context.WithCancel(ctx)
}

// Evict drops every cached environment of name.
func (r *Registry) Evict(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.cache {
		if n, _, _ := cutKey(key); n == name {
			delete(r.cache, key)
		}
	}
}

func cutKey(key string) (name, env string, ok bool) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == ':' {
			return key[:i], key[i+1:], true
		}
	}
	return key, "", false
}

// EvictAll clears the cache.
func (r *Registry) EvictAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.cache)
}

// Close releases the Fetcher's resources when it has any (git.Fetcher removes its clone).
func (r *Registry) Close() error {
	if c, ok := r.fetcher.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
