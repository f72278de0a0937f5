package anthropic

import (
	"context"
	"fmt"
	"iter"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/adapter"
)

// ClientConfig holds connection settings for NewClient.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Client implements adapter.Client over the Anthropic SDK.
type Client struct {
	sdk     anthropic.Client
	adapter *Adapter
}

var _ adapter.Client = (*Client)(nil)

// NewClient creates an Anthropic client with SDK retries disabled.
func NewClient(cfg ClientConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &Client{
		sdk:     anthropic.NewClient(opts...),
		adapter: New(WithModel(anthropic.Model(cfg.Model))),
	}
}

// Generate sends exec to the Messages API.
func (c *Client) Generate(ctx context.Context, exec *safeclick.PromptExecution) (*adapter.Response, error) {
	params, err := c.adapter.TranslateTyped(ctx, exec)
	if err != nil {
		return nil, err
	}
	msg, err := c.sdk.Messages.New(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic: %w", adapter.ErrProviderCall, err)
	}
	parts, err := c.adapter.ParseResponse(ctx, msg)
	if err != nil {
		return nil, err
	}
	return &adapter.Response{Parts: parts}, nil
}

// Stream sends exec as a streaming Messages request and yields text deltas.
func (c *Client) Stream(ctx context.Context, exec *safeclick.PromptExecution) iter.Seq2[string, error] {
	params, err := c.adapter.TranslateTyped(ctx, exec)
	if err != nil {
		return adapter.StreamError(err)
	}
	return func(yield func(string, error) bool) {
		stream := c.sdk.Messages.NewStreaming(ctx, *params)
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
			yield("", fmt.Errorf("%w: anthropic: %w", adapter.ErrProviderCall, err))
		}
	}
}
