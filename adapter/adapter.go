package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/internal/cast"
)

// ProviderAdapter maps a PromptExecution to a provider-specific request and parses
// provider responses back to content parts. Implementations live in subpackages.
type ProviderAdapter interface {
	// Translate converts exec into the provider request payload; callers type-assert the result.
	Translate(ctx context.Context, exec *safeclick.PromptExecution) (any, error)
	// ParseResponse converts a unary provider response into content parts.
	ParseResponse(ctx context.Context, raw any) ([]safeclick.ContentPart, error)
	// ParseStreamChunk converts one stream event into content parts; events without text yield none.
	ParseStreamChunk(ctx context.Context, rawChunk any) ([]safeclick.ContentPart, error)
}

// Sentinel errors for adapter implementations. Callers should use errors.Is.
var (
	ErrUnsupportedRole        = errors.New("adapter: unsupported message role for this provider")
	ErrUnsupportedContentType = errors.New("adapter: unsupported ContentPart type for this provider")
	ErrInvalidResponse        = errors.New("adapter: raw response has unexpected type")
	ErrEmptyResponse          = errors.New("adapter: response contains no content")
	ErrNilExecution           = errors.New("adapter: execution must not be nil")
	ErrGroundingNotSupported  = errors.New("adapter: search grounding not supported by this provider")
	ErrMalformedSchema        = errors.New("adapter: response schema cannot be encoded")
	ErrProviderCall           = errors.New("adapter: provider call failed")
)

// ModelParams holds the well-known keys of PromptExecution.ModelConfig.
type ModelParams struct {
	Model       string
	Temperature *float64
	MaxTokens   *int64
	TopP        *float64
	Stop        []string
}

// ExtractModelConfig reads "model", "temperature", "max_tokens", "top_p" and "stop" from cfg.
// Keys with values of the wrong type are ignored.
func ExtractModelConfig(cfg map[string]any) ModelParams {
	var out ModelParams
	if s, ok := cfg["model"].(string); ok {
		out.Model = s
	}
	if f, ok := cast.ToFloat64(cfg["temperature"]); ok {
		out.Temperature = &f
	}
	if i, ok := cast.ToInt64(cfg["max_tokens"]); ok {
		out.MaxTokens = &i
	}
	if f, ok := cast.ToFloat64(cfg["top_p"]); ok {
		out.TopP = &f
	}
	if ss, ok := cast.ToStringSlice(cfg["stop"]); ok {
		out.Stop = ss
	}
	return out
}

// TextFromParts concatenates the text parts, ignoring everything else.
func TextFromParts(parts []safeclick.ContentPart) string {
	var b strings.Builder
	for _, p := range parts {
		if t, ok := p.(safeclick.TextPart); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// CitationsFromParts returns the citation parts in order, dropping duplicate URIs.
func CitationsFromParts(parts []safeclick.ContentPart) []safeclick.CitationPart {
	var out []safeclick.CitationPart
	seen := make(map[string]bool)
	for _, p := range parts {
		c, ok := p.(safeclick.CitationPart)
		if !ok || seen[c.URI] {
			continue
		}
		seen[c.URI] = true
		out = append(out, c)
	}
	return out
}

// SchemaInstruction renders a response schema as a plain-text instruction for providers
// without native structured output.
func SchemaInstruction(def *safeclick.SchemaDefinition) (string, error) {
	if def == nil {
		return "", nil
	}
	b, err := json.MarshalIndent(def.Schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedSchema, err)
	}
	return "Respond with a single JSON object and nothing else. It must validate against this JSON Schema:\n" + string(b), nil
}

// SchemaJSON encodes the schema body of def, or returns nil when def is nil.
func SchemaJSON(def *safeclick.SchemaDefinition) (json.RawMessage, error) {
	if def == nil {
		return nil, nil
	}
	b, err := json.Marshal(def.Schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSchema, err)
	}
	return b, nil
}

// SystemText joins the text of all system messages with blank lines.
func SystemText(msgs []safeclick.ChatMessage) string {
	var parts []string
	for _, m := range msgs {
		if m.Role == safeclick.RoleSystem {
			if t := TextFromParts(m.Content); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}
