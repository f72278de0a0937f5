package git

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/remoteregistry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// commitFiles writes files into the worktree of repo and commits them.
func commitFiles(t *testing.T, repo *git.Repository, dir string, files map[string]string) {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for rel, content := range files {
		full := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
		_, err = wt.Add(rel)
		require.NoError(t, err)
	}
	_, err = wt.Commit("update prompts", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

// newRepo creates a repository on branch main with one commit holding files.
func newRepo(t *testing.T, files map[string]string) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	require.NoError(t, err)
	commitFiles(t, repo, dir, files)
	return dir, repo
}

func manifest(id, content string) string {
	return "id: " + id + "\nversion: \"1\"\nmessages:\n  - role: system\n    content: \"" + content + "\"\n"
}

func newFetcher(t *testing.T, dir string, opts ...Option) *Fetcher {
	t.Helper()
	g, err := NewFetcher("file://"+dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()
	dir, _ := newRepo(t, map[string]string{
		"threat_analysis.yaml":      manifest("threat_analysis", "Base"),
		"threat_analysis.prod.yaml": manifest("threat_analysis", "Production"),
		"prompts/soc_chat.yml":      manifest("soc_chat", "From subdir"),
	})
	g := newFetcher(t, dir)

	data, err := g.Fetch(t.Context(), "threat_analysis", "")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Base")

	data, err = g.Fetch(t.Context(), "threat_analysis", "prod")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Production")

	data, err = g.Fetch(t.Context(), "threat_analysis", "staging")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Base")

	_, err = g.Fetch(t.Context(), "missing", "")
	require.ErrorIs(t, err, remoteregistry.ErrNotFound)

	_, err = g.Fetch(t.Context(), "../threat_analysis", "")
	require.ErrorIs(t, err, safeclick.ErrInvalidName)

	sub := newFetcher(t, dir, WithDir("prompts"))
	data, err = sub.Fetch(t.Context(), "soc_chat", "")
	require.NoError(t, err)
	assert.Contains(t, string(data), "From subdir")
}

func TestFetcher_Fetch_WithBranch(t *testing.T) {
	t.Parallel()
	dir, repo := newRepo(t, map[string]string{"main_only.yaml": manifest("main_only", "FromMain")})
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("dev"), Create: true}))
	commitFiles(t, repo, dir, map[string]string{"dev_only.yaml": manifest("dev_only", "FromDev")})

	data, err := newFetcher(t, dir, WithBranch("dev")).Fetch(t.Context(), "dev_only", "")
	require.NoError(t, err)
	assert.Contains(t, string(data), "FromDev")
}

func TestFetcher_IntegrationWithRegistry(t *testing.T) {
	t.Parallel()
	dir, _ := newRepo(t, map[string]string{"intel_search.yaml": manifest("intel_search", "Integrated")})
	reg := remoteregistry.New(newFetcher(t, dir))
	tpl, err := reg.GetTemplate(t.Context(), "intel_search", "")
	require.NoError(t, err)
	assert.Equal(t, "intel_search", tpl.Metadata.ID)
	assert.Equal(t, "Integrated", tpl.Messages[0].Content)
}

func TestFetcher_FetchAfterClose(t *testing.T) {
	t.Parallel()
	dir, _ := newRepo(t, map[string]string{"a.yaml": manifest("a", "x")})
	g := newFetcher(t, dir)
	_, err := g.Fetch(t.Context(), "a", "")
	require.NoError(t, err)
	require.NoError(t, g.Close())
	require.NoError(t, g.Close())

	data, err := g.Fetch(t.Context(), "a", "")
	require.NoError(t, err)
	assert.Contains(t, string(data), "id: a")
}

func TestFetcher_Concurrent(t *testing.T) {
	t.Parallel()
	dir, _ := newRepo(t, map[string]string{"c.yaml": manifest("c", "concurrent")})
	g := newFetcher(t, dir, WithPullInterval(time.Hour))
	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			data, err := g.Fetch(t.Context(), "c", "")
			assert.NoError(t, err)
			assert.Contains(t, string(data), "concurrent")
		})
	}
	wg.Wait()
}

func TestNewFetcher_Invalid(t *testing.T) {
	t.Parallel()
	_, err := NewFetcher("  ")
	require.Error(t, err)
	_, err = NewFetcher("file:///tmp/x", WithBranch(""))
	require.Error(t, err)
}

func TestFetcher_CloneFailure(t *testing.T) {
	t.Parallel()
	g := newFetcher(t, filepath.Join(t.TempDir(), "absent"))
	_, err := g.Fetch(t.Context(), "a", "")
	require.ErrorIs(t, err, remoteregistry.ErrFetchFailed)
}
