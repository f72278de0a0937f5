package remoteregistry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/safeclick/safeclick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubFetcher struct {
	calls atomic.Int32
	fetch func(ctx context.Context, name, env string) ([]byte, error)
}

func (s *stubFetcher) Fetch(ctx context.Context, name, env string) ([]byte, error) {
	s.calls.Add(1)
	return s.fetch(ctx, name, env)
}

func staticFetcher(docs map[string]string) *stubFetcher {
	return &stubFetcher{fetch: func(_ context.Context, name, env string) ([]byte, error) {
		if d, ok := docs[name+":"+env]; ok {
			return []byte(d), nil
		}
		if d, ok := docs[name+":"]; ok {
			return []byte(d), nil
		}
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}}
}

func manifestWith(id, content string) string {
	return "id: " + id + "\nmessages:\n  - role: system\n    content: \"" + content + "\"\n"
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRegistry_GetTemplate_EnvResolution(t *testing.T) {
	t.Parallel()
	reg := New(staticFetcher(map[string]string{
		"soc_chat:":     manifestWith("soc_chat", "base"),
		"soc_chat:prod": manifestWith("soc_chat", "prod"),
	}))
	tpl, err := reg.GetTemplate(t.Context(), "soc_chat", "")
	require.NoError(t, err)
	assert.Equal(t, "base", tpl.Messages[0].Content)
	assert.Empty(t, tpl.Metadata.Environment)

	tpl, err = reg.GetTemplate(t.Context(), "soc_chat", "prod")
	require.NoError(t, err)
	assert.Equal(t, "prod", tpl.Messages[0].Content)
	assert.Equal(t, "prod", tpl.Metadata.Environment)
}

func TestRegistry_GetTemplate_Errors(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection reset")
	reg := New(&stubFetcher{fetch: func(_ context.Context, name, _ string) ([]byte, error) {
		switch name {
		case "missing":
			return nil, ErrNotFound
		case "broken":
			return []byte("id: broken\nmessages: [unclosed"), nil
		default:
			return nil, fmt.Errorf("%w: %w", ErrFetchFailed, boom)
		}
	}})

	_, err := reg.GetTemplate(t.Context(), "missing", "")
	require.ErrorIs(t, err, safeclick.ErrTemplateNotFound)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = reg.GetTemplate(t.Context(), "broken", "")
	require.ErrorIs(t, err, safeclick.ErrInvalidManifest)

	_, err = reg.GetTemplate(t.Context(), "offline", "")
	require.ErrorIs(t, err, ErrFetchFailed)
	require.ErrorIs(t, err, boom)

	_, err = reg.GetTemplate(t.Context(), "a/b", "")
	require.ErrorIs(t, err, safeclick.ErrInvalidName)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = reg.GetTemplate(ctx, "offline", "")
	require.ErrorIs(t, err, context.Canceled)
}

func TestRegistry_GetTemplate_TTL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		ttl       time.Duration
		advance   time.Duration
		wantCalls int32
	}{
		{"fresh entry served from cache", time.Minute, 30 * time.Second, 1},
		{"expired entry refetched", time.Minute, time.Minute, 2},
		{"zero ttl never expires", 0, 24 * time.Hour, 1},
		{"negative ttl never expires", -time.Second, 24 * time.Hour, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := staticFetcher(map[string]string{"p:": manifestWith("p", "x")})
			clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
			reg := New(f, WithTTL(tt.ttl))
			reg.now = clock.Now

			_, err := reg.GetTemplate(t.Context(), "p", "")
			require.NoError(t, err)
			clock.Advance(tt.advance)
			_, err = reg.GetTemplate(t.Context(), "p", "")
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, f.calls.Load())
		})
	}
}

func TestRegistry_GetTemplate_CacheSafety(t *testing.T) {
	t.Parallel()
	reg := New(staticFetcher(map[string]string{"p:": "id: p\nsections: [VERDICT]\nmessages:\n  - role: user\n    content: original\n"}))
	first, err := reg.GetTemplate(t.Context(), "p", "")
	require.NoError(t, err)
	first.Messages[0].Content = "mutated"
	first.Sections[0] = "OTHER"

	second, err := reg.GetTemplate(t.Context(), "p", "")
	require.NoError(t, err)
	assert.Equal(t, "original", second.Messages[0].Content)
	assert.Equal(t, []string{"VERDICT"}, second.Sections)
}

func TestRegistry_GetTemplate_ConcurrentMissesShareFetch(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	f := &stubFetcher{fetch: func(context.Context, string, string) ([]byte, error) {
		<-release
		return []byte(manifestWith("p", "x")), nil
	}}
	reg := New(f)
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			tpl, err := reg.GetTemplate(t.Context(), "p", "")
			assert.NoError(t, err)
			if tpl != nil {
				assert.Equal(t, "p", tpl.Metadata.ID)
			}
		})
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, f.calls.Load(), int32(20))
	assert.GreaterOrEqual(t, f.calls.Load(), int32(1))
}

func TestRegistry_Evict(t *testing.T) {
	t.Parallel()
	f := staticFetcher(map[string]string{
		"a:": manifestWith("a", "a"),
		"b:": manifestWith("b", "b"),
	})
	reg := New(f)
	for _, key := range [][2]string{{"a", ""}, {"a", "prod"}, {"b", ""}} {
		_, err := reg.GetTemplate(t.Context(), key[0], key[1])
		require.NoError(t, err)
	}
	require.Equal(t, int32(3), f.calls.Load())

	reg.Evict("a")
	_, _ = reg.GetTemplate(t.Context(), "a", "")
	_, _ = reg.GetTemplate(t.Context(), "a", "prod")
	_, _ = reg.GetTemplate(t.Context(), "b", "")
	assert.Equal(t, int32(5), f.calls.Load())

	reg.EvictAll()
	_, _ = reg.GetTemplate(t.Context(), "b", "")
	assert.Equal(t, int32(6), f.calls.Load())
}

type closingFetcher struct {
	stubFetcher
	closed bool
}

func (c *closingFetcher) Close() error {
	c.closed = true
	return nil
}

func TestRegistry_Close(t *testing.T) {
	t.Parallel()
	require.NoError(t, New(staticFetcher(nil)).Close())
	cf := &closingFetcher{}
	require.NoError(t, New(cf).Close())
	assert.True(t, cf.closed)
}

func TestRegistry_New_NilFetcherPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { New(nil) })
}
