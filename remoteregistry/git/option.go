package git

import (
	"log/slog"
	"time"
)

// Option configures Fetcher.
type Option func(*Fetcher)

// WithBranch sets the branch to clone. Default is "main".
func WithBranch(branch string) Option {
	return func(g *Fetcher) {
		g.branch = branch
	}
}

// WithDir sets the repository subdirectory holding the manifests (e.g. "prompts").
func WithDir(dir string) Option {
	return func(g *Fetcher) {
		g.dir = dir
	}
}

// WithDepth sets the clone depth. Default is 1; 0 clones the full history.
func WithDepth(depth int) Option {
	return func(g *Fetcher) {
		g.depth = depth
	}
}

// WithAuth sets an HTTPS access token, sent as basic auth with user "x-access-token".
func WithAuth(token string) Option {
	return func(g *Fetcher) {
		g.authToken = token
	}
}

// WithPullInterval limits how often an existing clone is pulled. Default is 0 (pull on every fetch).
func WithPullInterval(d time.Duration) Option {
	return func(g *Fetcher) {
		g.pullInterval = d
	}
}

// WithLogger sets the logger used to report clone and pull activity.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Fetcher) {
		if logger != nil {
			g.logger = logger
		}
	}
}
