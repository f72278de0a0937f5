package builder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/prompts"
	"github.com/safeclick/safeclick/threat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newBuilder(t *testing.T, opts ...Option) *Builder {
	t.Helper()
	reg, err := prompts.Registry()
	require.NoError(t, err)
	b, err := New(t.Context(), reg, opts...)
	require.NoError(t, err)
	return b
}

func lastText(exec *safeclick.PromptExecution) string {
	m := exec.Messages[len(exec.Messages)-1]
	var sb strings.Builder
	for _, p := range m.Content {
		if tp, ok := p.(safeclick.TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

type emptyRegistry struct{}

func (emptyRegistry) GetTemplate(context.Context, string, string) (*safeclick.ChatPromptTemplate, error) {
	return nil, safeclick.ErrTemplateNotFound
}

func TestNew_MissingPrompt(t *testing.T) {
	t.Parallel()
	_, err := New(t.Context(), emptyRegistry{})
	require.ErrorIs(t, err, safeclick.ErrTemplateNotFound)
}

func TestBuild_Textual(t *testing.T) {
	t.Parallel()
	b := newBuilder(t)
	for _, kind := range []threat.Kind{threat.KindURL, threat.KindEmail, threat.KindSMS} {
		plan, err := b.Build(t.Context(), threat.AnalysisRequest{Kind: kind, Text: "http://g00gle.com/login-verify"})
		require.NoError(t, err, kind)
		assert.Equal(t, ShapeSchema, plan.Shape)
		assert.Equal(t, kind, plan.Kind)
		require.NotNil(t, plan.Execution.ResponseFormat)
		assert.Equal(t, "http://g00gle.com/login-verify", lastText(plan.Execution))
		system := plan.Execution.Messages[0].Content[0].(safeclick.TextPart).Text
		assert.Equal(t, kind == threat.KindURL, strings.Contains(system, "homograph"), kind)
	}
}

func TestBuild_TokenBudget(t *testing.T) {
	t.Parallel()
	b := newBuilder(t, WithTokenBudget(5))
	plan, err := b.Build(t.Context(), threat.AnalysisRequest{Kind: threat.KindEmail, Text: strings.Repeat("urgent ", 100)})
	require.NoError(t, err)
	assert.Len(t, lastText(plan.Execution), 20)
}

func TestBuild_Video(t *testing.T) {
	t.Parallel()
	b := newBuilder(t)
	clip := []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p'}
	plan, err := b.Build(t.Context(), threat.AnalysisRequest{
		Kind:  threat.KindVideo,
		Media: &threat.Media{Data: clip, MIMEType: "video/mp4"},
	})
	require.NoError(t, err)
	assert.Equal(t, ShapeSections, plan.Shape)
	assert.Len(t, plan.Execution.Sections, 5)
	content := plan.Execution.Messages[0].Content
	require.Len(t, content, 2)
	media, ok := content[0].(safeclick.MediaPart)
	require.True(t, ok)
	assert.Equal(t, "video/mp4", media.MIMEType)
	assert.Equal(t, clip, media.Data)
	assert.Contains(t, content[1].(safeclick.TextPart).Text, "[VERDICT]")
}

func TestBuild_VideoUnresolved(t *testing.T) {
	t.Parallel()
	_, err := newBuilder(t).Build(t.Context(), threat.AnalysisRequest{
		Kind:  threat.KindVideo,
		Media: &threat.Media{URL: "https://cdn.example/clip.mp4"},
	})
	require.ErrorIs(t, err, threat.ErrInvalidRequest)
}

func TestBuild_Invalid(t *testing.T) {
	t.Parallel()
	_, err := newBuilder(t).Build(t.Context(), threat.AnalysisRequest{Kind: threat.KindSMS})
	require.ErrorIs(t, err, threat.ErrInvalidRequest)
}

func TestChat(t *testing.T) {
	t.Parallel()
	b := newBuilder(t)
	history := []safeclick.ChatMessage{
		{Role: safeclick.RoleUser, Content: []safeclick.ContentPart{safeclick.TextPart{Text: "hi"}}},
		{Role: safeclick.RoleAssistant, Content: []safeclick.ContentPart{safeclick.TextPart{Text: "Online."}}},
	}
	plan, err := b.Chat(t.Context(), history, "Header audit please")
	require.NoError(t, err)
	assert.Equal(t, ShapeChat, plan.Shape)
	require.Len(t, plan.Execution.Messages, 4)
	assert.Equal(t, safeclick.RoleSystem, plan.Execution.Messages[0].Role)
	assert.Equal(t, "Header audit please", lastText(plan.Execution))

	plan, err = b.Build(t.Context(), threat.AnalysisRequest{Kind: threat.KindChat, Text: "hello"})
	require.NoError(t, err)
	assert.Len(t, plan.Execution.Messages, 2)

	_, err = b.Chat(t.Context(), nil, " ")
	require.ErrorIs(t, err, threat.ErrInvalidRequest)
}

func TestSearch(t *testing.T) {
	t.Parallel()
	b := newBuilder(t)
	plan, err := b.Search(t.Context(), "smishing toll road")
	require.NoError(t, err)
	assert.Equal(t, ShapeGrounded, plan.Shape)
	assert.True(t, plan.Execution.Grounding)

	_, err = b.Search(t.Context(), "")
	require.ErrorIs(t, err, threat.ErrInvalidRequest)
}

func TestBuild_Canceled(t *testing.T) {
	t.Parallel()
	b := newBuilder(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := b.Build(ctx, threat.AnalysisRequest{Kind: threat.KindURL, Text: "x"})
	require.True(t, errors.Is(err, context.Canceled))
}

func TestShape_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "schema", ShapeSchema.String())
	assert.Equal(t, "Shape(0)", Shape(0).String())
}
