package git

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/safeclick/safeclick/remoteregistry"
)

var _ remoteregistry.Fetcher = (*Fetcher)(nil)

// Fetcher reads manifests from the working tree of a Git clone. The repository is cloned
// into a temporary directory on first Fetch and pulled on later ones. Close removes the clone.
type Fetcher struct {
	repoURL      string
	branch       string
	dir          string
	depth        int
	authToken    string
	pullInterval time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	localDir string
	repo     *git.Repository
	pulledAt time.Time
}

// NewFetcher creates a Fetcher for repoURL (https:// or file://).
func NewFetcher(repoURL string, opts ...Option) (*Fetcher, error) {
	if strings.TrimSpace(repoURL) == "" {
		return nil, errors.New("remoteregistry/git: repo URL must not be empty")
	}
	g := &Fetcher{
		repoURL: repoURL,
		branch:  "main",
		depth:   1,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	if strings.TrimSpace(g.branch) == "" {
		return nil, errors.New("remoteregistry/git: branch must not be empty")
	}
	return g, nil
}

// Fetch returns the first of remoteregistry.CandidatePaths(name, env) present in the working tree.
func (g *Fetcher) Fetch(ctx context.Context, name, env string) ([]byte, error) {
	if err := remoteregistry.ValidateName(name, env); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.sync(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", remoteregistry.ErrFetchFailed, err)
	}
	root, err := os.OpenRoot(filepath.Join(g.localDir, g.dir))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", remoteregistry.ErrFetchFailed, g.dir, err)
	}
	defer func() { _ = root.Close() }()
	for _, rel := range remoteregistry.CandidatePaths(name, env) {
		data, err := root.ReadFile(rel)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", remoteregistry.ErrFetchFailed, rel, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %q", remoteregistry.ErrNotFound, name)
}

func (g *Fetcher) auth() transport.AuthMethod {
	if g.authToken == "" {
		return nil
	}
	return &http.BasicAuth{Username: "x-access-token", Password: g.authToken}
}

// sync clones on first use and pulls afterwards. Must be called with g.mu held.
func (g *Fetcher) sync(ctx context.Context) error {
	if g.repo == nil {
		return g.clone(ctx)
	}
	if g.pullInterval > 0 && time.Since(g.pulledAt) < g.pullInterval {
		return nil
	}
	wt, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	err = wt.PullContext(ctx, &git.PullOptions{
		ReferenceName: plumbing.NewBranchReferenceName(g.branch),
		SingleBranch:  true,
		Auth:          g.auth(),
	})
	g.pulledAt = time.Now()
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		// The previous working tree stays usable.
		g.logger.WarnContext(ctx, "git pull failed, serving cached clone", "repo", g.repoURL, "error", err)
	}
	return nil
}

func (g *Fetcher) clone(ctx context.Context) error {
	dir, err := os.MkdirTemp("", "safeclick-prompts-*")
	if err != nil {
		return fmt.Errorf("temp dir: %w", err)
	}
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           g.repoURL,
		ReferenceName: plumbing.NewBranchReferenceName(g.branch),
		SingleBranch:  true,
		Depth:         max(g.depth, 0),
		Auth:          g.auth(),
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("clone %s: %w", g.repoURL, err)
	}
	g.localDir, g.repo, g.pulledAt = dir, repo, time.Now()
	g.logger.InfoContext(ctx, "prompt repository cloned", "repo", g.repoURL, "branch", g.branch)
	return nil
}

// Close removes the local clone. The next Fetch clones again.
func (g *Fetcher) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.localDir == "" {
		return nil
	}
	dir := g.localDir
	g.localDir, g.repo = "", nil
	return os.RemoveAll(dir)
}
