package ollama

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/adapter"
)

// ClientConfig holds connection settings for NewClient.
type ClientConfig struct {
	BaseURL    string // defaults to http://localhost:11434
	Model      string
	HTTPClient *http.Client
}

// Client implements adapter.Client over a local or remote Ollama server.
type Client struct {
	api     *api.Client
	adapter *Adapter
}

var _ adapter.Client = (*Client)(nil)

var errStopped = errors.New("ollama: consumer stopped")

// NewClient creates an Ollama client. It fails only on an unparseable BaseURL.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = "http://localhost:11434"
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("ollama: base url: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{api: api.NewClient(u, hc), adapter: New(WithModel(cfg.Model))}, nil
}

// Generate sends exec as a non-streaming chat request.
func (c *Client) Generate(ctx context.Context, exec *safeclick.PromptExecution) (*adapter.Response, error) {
	req, err := c.adapter.TranslateTyped(ctx, exec)
	if err != nil {
		return nil, err
	}
	stream := false
	req.Stream = &stream
	var final api.ChatResponse
	err = c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		final.Message.Content += resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ollama: %w", adapter.ErrProviderCall, err)
	}
	parts, err := c.adapter.ParseResponse(ctx, &final)
	if err != nil {
		return nil, err
	}
	return &adapter.Response{Parts: parts}, nil
}

// Stream sends exec as a streaming chat request and yields content fragments.
func (c *Client) Stream(ctx context.Context, exec *safeclick.PromptExecution) iter.Seq2[string, error] {
	req, err := c.adapter.TranslateTyped(ctx, exec)
	if err != nil {
		return adapter.StreamError(err)
	}
	return func(yield func(string, error) bool) {
		var parseErr error
		err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
			parts, err := c.adapter.ParseStreamChunk(ctx, &resp)
			if err != nil {
				parseErr = err
				return err
			}
			if text := adapter.TextFromParts(parts); text != "" && !yield(text, nil) {
				return errStopped
			}
			return nil
		})
		switch {
		case err == nil, errors.Is(err, errStopped):
		case parseErr != nil:
			yield("", parseErr)
		default:
			yield("", fmt.Errorf("%w: ollama: %w", adapter.ErrProviderCall, err))
		}
	}
}
