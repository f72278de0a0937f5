package embedregistry

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/manifest"
)

var _ safeclick.PromptRegistry = (*Registry)(nil)

// key identifies a manifest: "name.yaml" has an empty env, "name.prod.yaml" has env "prod".
type key struct {
	name string
	env  string
}

// Registry holds every manifest of an fs.FS, parsed once at construction. It is read-only afterwards.
type Registry struct {
	cache    map[key]*safeclick.ChatPromptTemplate
	required []string
}

// Option configures New.
type Option func(*Registry)

// WithRequired makes New fail unless a base manifest exists for each of names.
func WithRequired(names ...string) Option {
	return func(r *Registry) { r.required = append(r.required, names...) }
}

// New walks fsys from root and parses every .yaml/.yml file.
func New(fsys fs.FS, root string, opts ...Option) (*Registry, error) {
	r := &Registry{cache: make(map[key]*safeclick.ChatPromptTemplate)}
	for _, opt := range opts {
		opt(r)
	}
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := path.Ext(p)
		if d.IsDir() || (ext != ".yaml" && ext != ".yml") {
			return nil
		}
		tpl, err := manifest.ParseFS(fsys, p)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		k := splitName(strings.TrimSuffix(path.Base(p), ext))
		tpl.Metadata.Environment = k.env
		r.cache[k] = tpl
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, name := range r.required {
		if _, ok := r.cache[key{name: name}]; !ok {
			return nil, fmt.Errorf("%w: %q", safeclick.ErrTemplateNotFound, name)
		}
	}
	return r, nil
}

func splitName(base string) key {
	if name, env, ok := strings.Cut(base, "."); ok {
		return key{name: name, env: env}
	}
	return key{name: base}
}

// GetTemplate returns a copy of the template for name in env, falling back to the base manifest.
func (r *Registry) GetTemplate(ctx context.Context, name, env string) (*safeclick.ChatPromptTemplate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := safeclick.ValidateName(name, env); err != nil {
		return nil, err
	}
	if tpl, ok := r.cache[key{name: name, env: env}]; ok {
		return safeclick.CloneTemplate(tpl), nil
	}
	if tpl, ok := r.cache[key{name: name}]; ok {
		return safeclick.CloneTemplate(tpl), nil
	}
	return nil, fmt.Errorf("%w: %q", safeclick.ErrTemplateNotFound, name)
}

// Names returns the sorted distinct template names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.cache))
	for k := range r.cache {
		if !slices.Contains(out, k.name) {
			out = append(out, k.name)
		}
	}
	slices.Sort(out)
	return out
}
