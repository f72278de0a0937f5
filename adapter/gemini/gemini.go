package gemini

import (
	"context"
	"fmt"
	"math"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/adapter"

	"google.golang.org/genai"
)

// DefaultModel is used when neither the execution nor WithModel names one.
const DefaultModel = "gemini-3-flash-preview"

// Request carries everything Models.GenerateContent needs.
type Request struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// Adapter implements adapter.ProviderAdapter for the Gemini API.
// Translate returns *Request; ParseResponse and ParseStreamChunk expect *genai.GenerateContentResponse.
type Adapter struct {
	model string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithModel sets the model used when the execution's model_config has no "model" key.
func WithModel(model string) Option {
	return func(a *Adapter) {
		if model != "" {
			a.model = model
		}
	}
}

// New returns an Adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{model: DefaultModel}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ adapter.ProviderAdapter = (*Adapter)(nil)

// Translate converts exec into *Request.
func (a *Adapter) Translate(ctx context.Context, exec *safeclick.PromptExecution) (any, error) {
	return a.TranslateTyped(ctx, exec)
}

// TranslateTyped is Translate without the type assertion.
func (a *Adapter) TranslateTyped(ctx context.Context, exec *safeclick.PromptExecution) (*Request, error) {
	if exec == nil {
		return nil, adapter.ErrNilExecution
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mp := adapter.ExtractModelConfig(exec.ModelConfig)
	req := &Request{
		Model:  a.model,
		Config: generationConfig(mp),
	}
	if mp.Model != "" {
		req.Model = mp.Model
	}
	if sys := adapter.SystemText(exec.Messages); sys != "" {
		req.Config.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
	}
	for _, msg := range exec.Messages {
		var role genai.Role
		switch msg.Role {
		case safeclick.RoleSystem:
			continue
		case safeclick.RoleUser:
			role = genai.RoleUser
		case safeclick.RoleAssistant:
			role = genai.RoleModel
		default:
			return nil, fmt.Errorf("%w: %q", adapter.ErrUnsupportedRole, msg.Role)
		}
		parts, err := toParts(msg.Content)
		if err != nil {
			return nil, err
		}
		req.Contents = append(req.Contents, genai.NewContentFromParts(parts, role))
	}
	if rf := exec.ResponseFormat; rf != nil {
		schema, err := toSchema(rf.Schema)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", adapter.ErrMalformedSchema, rf.Name, err)
		}
		req.Config.ResponseMIMEType = "application/json"
		req.Config.ResponseSchema = schema
	}
	if exec.Grounding {
		req.Config.Tools = append(req.Config.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	return req, nil
}

func generationConfig(mp adapter.ModelParams) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{StopSequences: mp.Stop}
	if mp.Temperature != nil {
		t := float32(*mp.Temperature)
		cfg.Temperature = &t
	}
	if mp.TopP != nil {
		p := float32(*mp.TopP)
		cfg.TopP = &p
	}
	if mp.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(min(*mp.MaxTokens, math.MaxInt32))
	}
	return cfg
}

// toParts keeps message order, so media attached ahead of the instruction stays ahead.
func toParts(content []safeclick.ContentPart) ([]*genai.Part, error) {
	out := make([]*genai.Part, 0, len(content))
	for _, p := range content {
		switch x := p.(type) {
		case safeclick.TextPart:
			out = append(out, genai.NewPartFromText(x.Text))
		case safeclick.MediaPart:
			if x.MIMEType == "" {
				return nil, fmt.Errorf("%w: media part without MIME type", adapter.ErrUnsupportedContentType)
			}
			switch {
			case len(x.Data) > 0:
				out = append(out, genai.NewPartFromBytes(x.Data, x.MIMEType))
			case x.URL != "":
				out = append(out, genai.NewPartFromURI(x.URL, x.MIMEType))
			default:
				return nil, fmt.Errorf("%w: media part has neither data nor URL", adapter.ErrUnsupportedContentType)
			}
		case safeclick.CitationPart:
			// Sources of an earlier grounded answer are not sent back.
		default:
			return nil, fmt.Errorf("%w: %T", adapter.ErrUnsupportedContentType, p)
		}
	}
	if len(out) == 0 {
		out = append(out, genai.NewPartFromText(""))
	}
	return out, nil
}

// ParseResponse converts *genai.GenerateContentResponse into text and citation parts.
func (a *Adapter) ParseResponse(_ context.Context, raw any) ([]safeclick.ContentPart, error) {
	resp, ok := raw.(*genai.GenerateContentResponse)
	if !ok || resp == nil {
		return nil, adapter.ErrInvalidResponse
	}
	out := parseParts(resp)
	if len(out) == 0 {
		return nil, adapter.ErrEmptyResponse
	}
	return out, nil
}

// ParseStreamChunk converts one streamed *genai.GenerateContentResponse. Chunks without text yield nil.
func (a *Adapter) ParseStreamChunk(_ context.Context, rawChunk any) ([]safeclick.ContentPart, error) {
	chunk, ok := rawChunk.(*genai.GenerateContentResponse)
	if !ok || chunk == nil {
		return nil, adapter.ErrInvalidResponse
	}
	return parseParts(chunk), nil
}

func parseParts(resp *genai.GenerateContentResponse) []safeclick.ContentPart {
	var out []safeclick.ContentPart
	if text := resp.Text(); text != "" {
		out = append(out, safeclick.TextPart{Text: text})
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return out
	}
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		out = append(out, safeclick.CitationPart{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return out
}
