package openai

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/adapter"
)

// Adapter implements adapter.ProviderAdapter for the OpenAI Chat Completions API.
// Translate returns *openai.ChatCompletionNewParams; ParseResponse expects *openai.ChatCompletion;
// ParseStreamChunk expects openai.ChatCompletionChunk (value or pointer).
type Adapter struct {
	defaultModel shared.ChatModel
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithModel sets the model used when the execution's model_config has no "model" key.
func WithModel(m shared.ChatModel) Option {
	return func(a *Adapter) {
		if m != "" {
			a.defaultModel = m
		}
	}
}

// New returns an Adapter defaulting to gpt-4o.
func New(opts ...Option) *Adapter {
	a := &Adapter{defaultModel: openai.ChatModelGPT4o}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ adapter.ProviderAdapter = (*Adapter)(nil)

// Translate converts exec into *openai.ChatCompletionNewParams.
func (a *Adapter) Translate(ctx context.Context, exec *safeclick.PromptExecution) (any, error) {
	return a.TranslateTyped(ctx, exec)
}

// TranslateTyped is Translate without the type assertion.
func (a *Adapter) TranslateTyped(ctx context.Context, exec *safeclick.PromptExecution) (*openai.ChatCompletionNewParams, error) {
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
	params := &openai.ChatCompletionNewParams{
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(exec.Messages)),
		Model:    a.defaultModel,
	}
	if mp.Model != "" {
		params.Model = shared.ChatModel(mp.Model)
	}
	if mp.Temperature != nil {
		params.Temperature = openai.Float(*mp.Temperature)
	}
	if mp.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(*mp.MaxTokens)
	}
	if mp.TopP != nil {
		params.TopP = openai.Float(*mp.TopP)
	}
	if len(mp.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: mp.Stop}
	}
	for _, msg := range exec.Messages {
		union, err := toMessage(msg)
		if err != nil {
			return nil, err
		}
		params.Messages = append(params.Messages, union)
	}
	if rf := exec.ResponseFormat; rf != nil {
		// Not strict: strict mode requires every property to be listed as required.
		schema := shared.ResponseFormatJSONSchemaJSONSchemaParam{Name: rf.Name, Schema: rf.Schema}
		if rf.Description != "" {
			schema.Description = openai.String(rf.Description)
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{JSONSchema: schema},
		}
	}
	return params, nil
}

func toMessage(msg safeclick.ChatMessage) (openai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case safeclick.RoleSystem:
		return openai.SystemMessage(adapter.TextFromParts(msg.Content)), nil
	case safeclick.RoleAssistant:
		return openai.AssistantMessage(adapter.TextFromParts(msg.Content)), nil
	case safeclick.RoleUser:
		return userMessage(msg.Content)
	}
	return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("%w: %q", adapter.ErrUnsupportedRole, msg.Role)
}

func userMessage(parts []safeclick.ContentPart) (openai.ChatCompletionMessageParamUnion, error) {
	var content []openai.ChatCompletionContentPartUnionParam
	multimodal := false
	for _, p := range parts {
		switch x := p.(type) {
		case safeclick.TextPart:
			content = append(content, openai.TextContentPart(x.Text))
		case safeclick.MediaPart:
			if x.Kind() != "image" {
				return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("%w: %s media", adapter.ErrUnsupportedContentType, x.MIMEType)
			}
			url := x.URL
			if len(x.Data) > 0 {
				url = "data:" + x.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(x.Data)
			}
			if url == "" {
				return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("%w: media part has neither data nor URL", adapter.ErrUnsupportedContentType)
			}
			multimodal = true
			content = append(content, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
		case safeclick.CitationPart:
		default:
			return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("%w: %T", adapter.ErrUnsupportedContentType, p)
		}
	}
	if !multimodal {
		return openai.UserMessage(adapter.TextFromParts(parts)), nil
	}
	return openai.UserMessage(content), nil
}

// ParseResponse converts *openai.ChatCompletion into a text part.
func (a *Adapter) ParseResponse(_ context.Context, raw any) ([]safeclick.ContentPart, error) {
	completion, ok := raw.(*openai.ChatCompletion)
	if !ok || completion == nil {
		return nil, adapter.ErrInvalidResponse
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, adapter.ErrEmptyResponse
	}
	return []safeclick.ContentPart{safeclick.TextPart{Text: completion.Choices[0].Message.Content}}, nil
}

// ParseStreamChunk returns the content delta of one chunk, or nil when it carries none.
func (a *Adapter) ParseStreamChunk(_ context.Context, rawChunk any) ([]safeclick.ContentPart, error) {
	var chunk openai.ChatCompletionChunk
	switch x := rawChunk.(type) {
	case openai.ChatCompletionChunk:
		chunk = x
	case *openai.ChatCompletionChunk:
		if x == nil {
			return nil, adapter.ErrInvalidResponse
		}
		chunk = *x
	default:
		return nil, adapter.ErrInvalidResponse
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return nil, nil
	}
	return []safeclick.ContentPart{safeclick.TextPart{Text: chunk.Choices[0].Delta.Content}}, nil
}
