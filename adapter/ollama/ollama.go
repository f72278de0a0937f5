package ollama

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/adapter"
)

// Adapter implements adapter.ProviderAdapter for the Ollama Chat API.
// Translate returns *api.ChatRequest; ParseResponse and ParseStreamChunk expect *api.ChatResponse.
type Adapter struct {
	defaultModel string
}

// Option configures an Adapter (e.g. WithModel).
type Option func(*Adapter)

// WithModel sets the default model used when exec.ModelConfig does not contain "model".
func WithModel(m string) Option {
	return func(a *Adapter) {
		if m != "" {
			a.defaultModel = m
		}
	}
}

// New returns an Adapter with default model set to "llama3.2". Options can override the default model.
func New(opts ...Option) *Adapter {
	a := &Adapter{defaultModel: "llama3.2"}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ adapter.ProviderAdapter = (*Adapter)(nil)

// Translate converts PromptExecution into *api.ChatRequest.
func (a *Adapter) Translate(ctx context.Context, exec *safeclick.PromptExecution) (any, error) {
	return a.TranslateTyped(ctx, exec)
}

// TranslateTyped returns the concrete type so callers avoid type assertion.
func (a *Adapter) TranslateTyped(ctx context.Context, exec *safeclick.PromptExecution) (*api.ChatRequest, error) {
	if exec == nil {
		return nil, adapter.ErrNilExecution
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if exec.Grounding {
		return nil, adapter.ErrGroundingNotSupported
	}
	mp := adapter.ExtractModelConfig(exec.ModelConfig)
	req := &api.ChatRequest{
		Model:    a.defaultModel,
		Messages: make([]api.Message, 0, len(exec.Messages)),
	}
	if mp.Model != "" {
		req.Model = mp.Model
	}
	if mp.Temperature != nil || mp.MaxTokens != nil || mp.TopP != nil || len(mp.Stop) > 0 {
		req.Options = make(map[string]any)
		if mp.Temperature != nil {
			req.Options["temperature"] = *mp.Temperature
		}
		if mp.MaxTokens != nil {
			req.Options["num_predict"] = *mp.MaxTokens
		}
		if mp.TopP != nil {
			req.Options["top_p"] = *mp.TopP
		}
		if len(mp.Stop) > 0 {
			req.Options["stop"] = mp.Stop
		}
	}
	format, err := adapter.SchemaJSON(exec.ResponseFormat)
	if err != nil {
		return nil, err
	}
	req.Format = format
	for _, msg := range exec.Messages {
		m, err := translateMessage(msg)
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, m)
	}
	return req, nil
}

func translateMessage(msg safeclick.ChatMessage) (api.Message, error) {
	var images []api.ImageData
	for _, p := range msg.Content {
		media, ok := p.(safeclick.MediaPart)
		if !ok {
			continue
		}
		if msg.Role != safeclick.RoleUser || media.Kind() != "image" {
			return api.Message{}, fmt.Errorf("%w: %s media in %s message", adapter.ErrUnsupportedContentType, media.MIMEType, msg.Role)
		}
		if len(media.Data) == 0 {
			return api.Message{}, fmt.Errorf("%w: image part has no data", adapter.ErrUnsupportedContentType)
		}
		images = append(images, api.ImageData(media.Data))
	}
	switch msg.Role {
	case safeclick.RoleSystem, safeclick.RoleUser, safeclick.RoleAssistant:
		return api.Message{Role: string(msg.Role), Content: adapter.TextFromParts(msg.Content), Images: images}, nil
	}
	return api.Message{}, fmt.Errorf("%w: %q", adapter.ErrUnsupportedRole, msg.Role)
}

// ParseResponse converts *api.ChatResponse into a text part.
func (a *Adapter) ParseResponse(_ context.Context, raw any) ([]safeclick.ContentPart, error) {
	resp, ok := raw.(*api.ChatResponse)
	if !ok || resp == nil {
		return nil, adapter.ErrInvalidResponse
	}
	if resp.Message.Content == "" {
		return nil, adapter.ErrEmptyResponse
	}
	return []safeclick.ContentPart{safeclick.TextPart{Text: resp.Message.Content}}, nil
}

// ParseStreamChunk parses a single Ollama stream chunk. Chunks without content yield no parts.
func (a *Adapter) ParseStreamChunk(_ context.Context, rawChunk any) ([]safeclick.ContentPart, error) {
	chunk, ok := rawChunk.(*api.ChatResponse)
	if !ok || chunk == nil {
		return nil, adapter.ErrInvalidResponse
	}
	if chunk.Message.Content == "" {
		return nil, nil
	}
	return []safeclick.ContentPart{safeclick.TextPart{Text: chunk.Message.Content}}, nil
}
