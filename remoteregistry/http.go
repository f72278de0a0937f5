package remoteregistry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var _ Fetcher = (*HTTPFetcher)(nil)

const (
	maxBodySize      = 1 << 20
	defaultUserAgent = "safeclick-prompts/1.0"
)

// HTTPFetcher fetches manifests from {baseURL}/{name}.{env}.yaml with fallback to {baseURL}/{name}.yaml.
// A 404 moves on to the next candidate; any other non-2xx status fails with ErrHTTPStatus.
type HTTPFetcher struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
}

// HTTPOption configures HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient replaces the default client (30s timeout). A nil c is ignored.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPFetcher) {
		if c != nil {
			h.httpClient = c
		}
	}
}

// WithAuthToken sets the Bearer token for Authorization header.
func WithAuthToken(token string) HTTPOption {
	return func(h *HTTPFetcher) {
		h.authToken = token
	}
}

// NewHTTPFetcher creates an HTTPFetcher. baseURL must be a valid URL (e.g. https://api.example.com/prompts).
func NewHTTPFetcher(baseURL string, opts ...HTTPOption) (*HTTPFetcher, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("remoteregistry: base URL must not be empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" {
		return nil, fmt.Errorf("remoteregistry: invalid base URL %q", baseURL)
	}
	h := &HTTPFetcher{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Fetch tries each of CandidatePaths(name, env) in order.
func (h *HTTPFetcher) Fetch(ctx context.Context, name, env string) ([]byte, error) {
	if err := ValidateName(name, env); err != nil {
		return nil, err
	}
	for _, path := range CandidatePaths(name, env) {
		data, err := h.fetchOne(ctx, path)
		if errors.Is(err, errNotFound) {
			continue
		}
		return data, err
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}

var errNotFound = errors.New("not found")

func (h *HTTPFetcher) fetchOne(ctx context.Context, path string) ([]byte, error) {
	u := h.baseURL + "/" + url.PathEscape(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	if h.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.authToken)
	}
	resp, err := h.httpClient.Do(req) // #nosec G704 -- URL is from config and path-escaped name
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %w: %s %s", ErrFetchFailed, ErrHTTPStatus, resp.Status, u)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetchFailed, err)
	}
	if len(data) > maxBodySize {
		return nil, fmt.Errorf("%w: response body exceeds %d bytes", ErrFetchFailed, maxBodySize)
	}
	return data, nil
}
