package gemini

import (
	"context"
	"fmt"
	"iter"
	"net/http"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/adapter"

	"google.golang.org/genai"
)

// Client implements adapter.Client over a genai.Client.
type Client struct {
	models  *genai.Models
	adapter *Adapter
}

var _ adapter.Client = (*Client)(nil)

// ClientConfig holds connection settings for NewClient.
type ClientConfig struct {
	APIKey     string
	BaseURL    string // optional override of the Gemini API endpoint
	Model      string
	HTTPClient *http.Client
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI, HTTPClient: cfg.HTTPClient}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Client{models: gc.Models, adapter: New(WithModel(cfg.Model))}, nil
}

// Generate sends exec with GenerateContent.
func (c *Client) Generate(ctx context.Context, exec *safeclick.PromptExecution) (*adapter.Response, error) {
	req, err := c.adapter.TranslateTyped(ctx, exec)
	if err != nil {
		return nil, err
	}
	resp, err := c.models.GenerateContent(ctx, req.Model, req.Contents, req.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %w", adapter.ErrProviderCall, err)
	}
	parts, err := c.adapter.ParseResponse(ctx, resp)
	if err != nil {
		return nil, err
	}
	return &adapter.Response{Parts: parts}, nil
}

// Stream sends exec with GenerateContentStream and yields text fragments.
func (c *Client) Stream(ctx context.Context, exec *safeclick.PromptExecution) iter.Seq2[string, error] {
	req, err := c.adapter.TranslateTyped(ctx, exec)
	if err != nil {
		return adapter.StreamError(err)
	}
	return func(yield func(string, error) bool) {
		for chunk, err := range c.models.GenerateContentStream(ctx, req.Model, req.Contents, req.Config) {
			if err != nil {
				yield("", fmt.Errorf("%w: gemini: %w", adapter.ErrProviderCall, err))
				return
			}
			parts, err := c.adapter.ParseStreamChunk(ctx, chunk)
			if err != nil {
				yield("", err)
				return
			}
			if text := adapter.TextFromParts(parts); text != "" && !yield(text, nil) {
				return
			}
		}
	}
}
