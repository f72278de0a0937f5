package openai

import (
	"context"
	"fmt"
	"iter"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/adapter"
)

// ClientConfig holds connection settings for NewClient.
type ClientConfig struct {
	APIKey     string
	BaseURL    string // optional; any OpenAI-compatible endpoint
	Model      string
	HTTPClient *http.Client
}

// Client implements adapter.Client over the OpenAI SDK.
type Client struct {
	sdk     openai.Client
	adapter *Adapter
}

var _ adapter.Client = (*Client)(nil)

// NewClient creates an OpenAI client. The SDK does not retry; retries are the caller's decision.
func NewClient(cfg ClientConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &Client{
		sdk:     openai.NewClient(opts...),
		adapter: New(WithModel(shared.ChatModel(cfg.Model))),
	}
}

// Generate sends exec to Chat Completions.
func (c *Client) Generate(ctx context.Context, exec *safeclick.PromptExecution) (*adapter.Response, error) {
	params, err := c.adapter.TranslateTyped(ctx, exec)
	if err != nil {
		return nil, err
	}
	completion, err := c.sdk.Chat.Completions.New(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %w", adapter.ErrProviderCall, err)
	}
	parts, err := c.adapter.ParseResponse(ctx, completion)
	if err != nil {
		return nil, err
	}
	return &adapter.Response{Parts: parts}, nil
}

// Stream sends exec as a streaming Chat Completions request and yields content deltas.
func (c *Client) Stream(ctx context.Context, exec *safeclick.PromptExecution) iter.Seq2[string, error] {
	params, err := c.adapter.TranslateTyped(ctx, exec)
	if err != nil {
		return adapter.StreamError(err)
	}
	return func(yield func(string, error) bool) {
		stream := c.sdk.Chat.Completions.NewStreaming(ctx, *params)
		defer func() { _ = stream.Close() }()
		for stream.Next() {
			parts, err := c.adapter.ParseStreamChunk(ctx, stream.Current())
			if err != nil {
				yield("", err)
				return
			}
			if text := adapter.TextFromParts(parts); text != "" && !yield(text, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("%w: openai: %w", adapter.ErrProviderCall, err))
		}
	}
}
