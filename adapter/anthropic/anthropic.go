package anthropic

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/adapter"
)

const defaultMaxTokens int64 = 4096

// Adapter implements adapter.ProviderAdapter for the Anthropic Messages API.
// Translate returns *anthropic.MessageNewParams; ParseResponse expects *anthropic.Message;
// ParseStreamChunk expects anthropic.MessageStreamEventUnion.
type Adapter struct {
	defaultModel anthropic.Model
}

// Option configures an Adapter (e.g. WithModel).
type Option func(*Adapter)

// WithModel sets the default model used when exec.ModelConfig does not contain "model".
func WithModel(m anthropic.Model) Option {
	return func(a *Adapter) {
		if m != "" {
			a.defaultModel = m
		}
	}
}

// New returns an Adapter with a default model. Options can override the default model.
func New(opts ...Option) *Adapter {
	a := &Adapter{defaultModel: anthropic.ModelClaudeSonnet4_5_20250929}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ adapter.ProviderAdapter = (*Adapter)(nil)

// Translate converts PromptExecution into *anthropic.MessageNewParams.
func (a *Adapter) Translate(ctx context.Context, exec *safeclick.PromptExecution) (any, error) {
	return a.TranslateTyped(ctx, exec)
}

// TranslateTyped returns the concrete type so callers avoid type assertion.
func (a *Adapter) TranslateTyped(ctx context.Context, exec *safeclick.PromptExecution) (*anthropic.MessageNewParams, error) {
	if exec == nil {
		return nil, adapter.ErrNilExecution
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if exec.Grounding {
		return nil, adapter.ErrGroundingNotSupported
	}
	params := &anthropic.MessageNewParams{
		MaxTokens: defaultMaxTokens,
		Model:     a.defaultModel,
	}
	mp := adapter.ExtractModelConfig(exec.ModelConfig)
	if mp.Model != "" {
		params.Model = anthropic.Model(mp.Model)
	}
	if mp.MaxTokens != nil {
		params.MaxTokens = *mp.MaxTokens
	}
	if mp.Temperature != nil {
		params.Temperature = anthropic.Float(*mp.Temperature)
	}
	if mp.TopP != nil {
		params.TopP = anthropic.Float(*mp.TopP)
	}
	if len(mp.Stop) > 0 {
		params.StopSequences = mp.Stop
	}

	var system []string
	if s := adapter.SystemText(exec.Messages); s != "" {
		system = append(system, s)
	}
	// No native structured output: the schema travels as a system instruction.
	instruction, err := adapter.SchemaInstruction(exec.ResponseFormat)
	if err != nil {
		return nil, err
	}
	if instruction != "" {
		system = append(system, instruction)
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	for _, msg := range exec.Messages {
		switch msg.Role {
		case safeclick.RoleSystem:
		case safeclick.RoleUser:
			m, err := userMessage(msg.Content)
			if err != nil {
				return nil, err
			}
			params.Messages = append(params.Messages, m)
		case safeclick.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(adapter.TextFromParts(msg.Content))))
		default:
			return nil, fmt.Errorf("%w: %q", adapter.ErrUnsupportedRole, msg.Role)
		}
	}
	return params, nil
}

func userMessage(parts []safeclick.ContentPart) (anthropic.MessageParam, error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, p := range parts {
		switch x := p.(type) {
		case safeclick.TextPart:
			blocks = append(blocks, anthropic.NewTextBlock(x.Text))
		case safeclick.MediaPart:
			if x.Kind() != "image" {
				return anthropic.MessageParam{}, fmt.Errorf("%w: %s media", adapter.ErrUnsupportedContentType, x.MIMEType)
			}
			if len(x.Data) == 0 {
				return anthropic.MessageParam{}, fmt.Errorf("%w: image part has no data", adapter.ErrUnsupportedContentType)
			}
			blocks = append(blocks, anthropic.NewImageBlockBase64(x.MIMEType, base64.StdEncoding.EncodeToString(x.Data)))
		case safeclick.CitationPart:
		default:
			return anthropic.MessageParam{}, fmt.Errorf("%w: %T", adapter.ErrUnsupportedContentType, p)
		}
	}
	return anthropic.NewUserMessage(blocks...), nil
}

// ParseResponse converts *anthropic.Message into text parts.
func (a *Adapter) ParseResponse(_ context.Context, raw any) ([]safeclick.ContentPart, error) {
	msg, ok := raw.(*anthropic.Message)
	if !ok || msg == nil {
		return nil, adapter.ErrInvalidResponse
	}
	var out []safeclick.ContentPart
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			out = append(out, safeclick.TextPart{Text: block.Text})
		}
	}
	if len(out) == 0 {
		return nil, adapter.ErrEmptyResponse
	}
	return out, nil
}

// ParseStreamChunk returns the text delta carried by a content_block_delta event.
// Other events yield no parts.
func (a *Adapter) ParseStreamChunk(_ context.Context, rawChunk any) ([]safeclick.ContentPart, error) {
	var event anthropic.MessageStreamEventUnion
	switch x := rawChunk.(type) {
	case anthropic.MessageStreamEventUnion:
		event = x
	case *anthropic.MessageStreamEventUnion:
		if x == nil {
			return nil, adapter.ErrInvalidResponse
		}
		event = *x
	default:
		return nil, adapter.ErrInvalidResponse
	}
	if event.Type != "content_block_delta" || event.Delta.Type != "text_delta" || event.Delta.Text == "" {
		return nil, nil
	}
	return []safeclick.ContentPart{safeclick.TextPart{Text: event.Delta.Text}}, nil
}
