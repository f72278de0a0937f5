package fileregistry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/manifest"
)

var _ safeclick.PromptRegistry = (*Registry)(nil)

var extensions = []string{".yaml", ".yml"}

// Registry loads manifests from a directory on first use and caches them.
// name+env resolves to {dir}/{name}.{env}.yaml, falling back to {dir}/{name}.yaml.
type Registry struct {
	dir    string
	logger *slog.Logger
	mu     sync.RWMutex
	cache  map[string]*safeclick.ChatPromptTemplate
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report manifest loads.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// New creates a Registry that reads YAML manifests from dir.
func New(dir string, opts ...Option) *Registry {
	r := &Registry{
		dir:    dir,
		logger: slog.New(slog.DiscardHandler),
		cache:  make(map[string]*safeclick.ChatPromptTemplate),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetTemplate returns a copy of the template for name in env, loading it on first request.
func (r *Registry) GetTemplate(ctx context.Context, name, env string) (*safeclick.ChatPromptTemplate, error) {
	if err := safeclick.ValidateName(name, env); err != nil {
		return nil, err
	}
	key := name + ":" + env
	r.mu.RLock()
	tpl, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return safeclick.CloneTemplate(tpl), nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok = r.cache[key]; ok {
		return safeclick.CloneTemplate(tpl), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, base := range candidates(name, env) {
		for _, ext := range extensions {
			path := filepath.Join(r.dir, base+ext)
			tpl, err := manifest.ParseFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, err
			}
			tpl.Metadata.Environment = env
			r.cache[key] = tpl
			r.logger.DebugContext(ctx, "prompt manifest loaded", "name", name, "env", env, "path", path)
			return safeclick.CloneTemplate(tpl), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", safeclick.ErrTemplateNotFound, name)
}

func candidates(name, env string) []string {
	if env == "" {
		return []string{name}
	}
	return []string{name + "." + env, name}
}

// Reload drops every cached template so the next lookup rereads the directory.
func (r *Registry) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.cache)
}
