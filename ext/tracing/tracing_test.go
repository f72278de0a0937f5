package tracing_test

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/adapter"
	"github.com/safeclick/safeclick/ext/tracing"
	"github.com/safeclick/safeclick/internal/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordedSpan struct {
	noop.Span
	name   string
	attrs  []attribute.KeyValue
	status codes.Code
	errs   []error
	ended  bool
}

func (s *recordedSpan) SetAttributes(kv ...attribute.KeyValue) { s.attrs = append(s.attrs, kv...) }
func (s *recordedSpan) SetStatus(c codes.Code, _ string)       { s.status = c }
func (s *recordedSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}
func (s *recordedSpan) End(...trace.SpanEndOption) { s.ended = true }

func (s *recordedSpan) attr(key attribute.Key) (attribute.Value, bool) {
	i := slices.IndexFunc(s.attrs, func(kv attribute.KeyValue) bool { return kv.Key == key })
	if i < 0 {
		return attribute.Value{}, false
	}
	return s.attrs[i].Value, true
}

type recorder struct {
	noop.TracerProvider
	mu    sync.Mutex
	spans []*recordedSpan
}

func (r *recorder) Tracer(string, ...trace.TracerOption) trace.Tracer { return recordingTracer{r: r} }

type recordingTracer struct {
	noop.Tracer
	r *recorder
}

func (t recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	span := &recordedSpan{name: name, attrs: cfg.Attributes()}
	t.r.mu.Lock()
	t.r.spans = append(t.r.spans, span)
	t.r.mu.Unlock()
	return trace.ContextWithSpan(ctx, span), span
}

func (r *recorder) only(t *testing.T) *recordedSpan {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.spans, 1)
	return r.spans[0]
}

func execution() *safeclick.PromptExecution {
	return &safeclick.PromptExecution{
		Messages:    []safeclick.ChatMessage{{Role: safeclick.RoleUser, Content: []safeclick.ContentPart{safeclick.TextPart{Text: "hi"}}}},
		ModelConfig: map[string]any{"model": "gemini-3-flash-preview"},
		Metadata:    safeclick.PromptMetadata{ID: "intel_search", Version: "1", Environment: "prod"},
		Grounding:   true,
	}
}

func chunks(parts ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	next := mocks.NewMockClient(gomock.NewController(t))
	next.EXPECT().Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ *safeclick.PromptExecution) (*adapter.Response, error) {
			_, traced := trace.SpanFromContext(ctx).(*recordedSpan)
			assert.True(t, traced)
			return &adapter.Response{Parts: []safeclick.ContentPart{
				safeclick.TextPart{Text: "brief"},
				safeclick.CitationPart{URI: "https://a.example"},
			}}, nil
		})
	rec := &recorder{}
	c := tracing.Wrap(next, tracing.WithTracerProvider(rec))

	resp, err := c.Generate(t.Context(), execution())
	require.NoError(t, err)
	assert.Equal(t, "brief", resp.Text())

	span := rec.only(t)
	assert.Equal(t, tracing.SpanGenerate, span.name)
	assert.True(t, span.ended)
	assert.Equal(t, codes.Ok, span.status)
	for key, want := range map[attribute.Key]attribute.Value{
		tracing.AttrPromptID:      attribute.StringValue("intel_search"),
		tracing.AttrPromptVersion: attribute.StringValue("1"),
		tracing.AttrPromptEnv:     attribute.StringValue("prod"),
		tracing.AttrModel:         attribute.StringValue("gemini-3-flash-preview"),
		tracing.AttrGrounding:     attribute.BoolValue(true),
		tracing.AttrResponseChars: attribute.IntValue(5),
		tracing.AttrCitations:     attribute.IntValue(1),
	} {
		got, ok := span.attr(key)
		require.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
}

func TestGenerate_Error(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	next := mocks.NewMockClient(gomock.NewController(t))
	next.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(nil, boom)
	rec := &recorder{}

	_, err := tracing.Wrap(next, tracing.WithTracerProvider(rec)).Generate(t.Context(), execution())
	require.ErrorIs(t, err, boom)
	span := rec.only(t)
	assert.Equal(t, codes.Error, span.status)
	assert.Equal(t, []error{boom}, span.errs)
	assert.True(t, span.ended)
}

func TestStream(t *testing.T) {
	t.Parallel()
	next := mocks.NewMockClient(gomock.NewController(t))
	next.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(chunks("### [ANALYSIS]", "\nok"))
	rec := &recorder{}
	c := tracing.Wrap(next, tracing.WithTracerProvider(rec))

	seq := c.Stream(t.Context(), execution())
	rec.mu.Lock()
	assert.Empty(t, rec.spans, "span starts on iteration")
	rec.mu.Unlock()

	var got []string
	for chunk, err := range seq {
		require.NoError(t, err)
		got = append(got, chunk)
	}
	assert.Equal(t, []string{"### [ANALYSIS]", "\nok"}, got)
	span := rec.only(t)
	assert.Equal(t, tracing.SpanStream, span.name)
	assert.True(t, span.ended)
	n, _ := span.attr(tracing.AttrChunks)
	assert.Equal(t, int64(2), n.AsInt64())
}

func TestStream_Error(t *testing.T) {
	t.Parallel()
	boom := errors.New("uplink")
	next := mocks.NewMockClient(gomock.NewController(t))
	next.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(adapter.StreamError(boom))
	rec := &recorder{}

	var errs []error
	for _, err := range tracing.Wrap(next, tracing.WithTracerProvider(rec)).Stream(t.Context(), execution()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], boom)
	span := rec.only(t)
	assert.Equal(t, codes.Error, span.status)
	assert.True(t, span.ended)
}

func TestStream_EarlyBreak(t *testing.T) {
	t.Parallel()
	next := mocks.NewMockClient(gomock.NewController(t))
	next.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(chunks("a", "b", "c"))
	rec := &recorder{}

	for range tracing.Wrap(next, tracing.WithTracerProvider(rec)).Stream(t.Context(), execution()) {
		break
	}
	span := rec.only(t)
	assert.True(t, span.ended)
	n, _ := span.attr(tracing.AttrChunks)
	assert.Equal(t, int64(1), n.AsInt64())
}

func TestWrap_DefaultProvider(t *testing.T) {
	t.Parallel()
	next := mocks.NewMockClient(gomock.NewController(t))
	next.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(&adapter.Response{}, nil)
	_, err := tracing.Wrap(next).Generate(t.Context(), execution())
	require.NoError(t, err)
}
