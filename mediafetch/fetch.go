// Package mediafetch downloads remote media (videos referenced by URL) for providers that
// only accept inline bytes, and sniffs media types of uploads.
package mediafetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBodySize is the default download limit (64 MiB).
const DefaultMaxBodySize = 64 << 20

var (
	// ErrUnsafeScheme is returned when the URL scheme is not https.
	ErrUnsafeScheme = errors.New("mediafetch: only https scheme is allowed")
	// ErrBodyTooLarge is returned when the response exceeds the size limit.
	ErrBodyTooLarge = errors.New("mediafetch: response body exceeds size limit")
	// ErrUnsupportedType is returned when the media type is outside the allowed prefixes.
	ErrUnsupportedType = errors.New("mediafetch: unsupported content type")
	// ErrStatus is returned for any non-200 response.
	ErrStatus = errors.New("mediafetch: unexpected HTTP status")
)

// Media is a downloaded payload with its concrete media type.
type Media struct {
	Data     []byte
	MIMEType string
}

// Fetcher downloads media over https with a size limit and a media-type allow list.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	prefixes []string
	schemes  []string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client (2 minute timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithMaxBytes sets the download limit. Values <= 0 keep DefaultMaxBodySize.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithAllowedPrefixes sets the accepted media-type prefixes. Default is "video/".
func WithAllowedPrefixes(prefixes ...string) Option {
	return func(f *Fetcher) {
		f.prefixes = prefixes
	}
}

// New returns a Fetcher that accepts https video downloads.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: 2 * time.Minute},
		maxBytes: DefaultMaxBodySize,
		prefixes: []string{"video/"},
		schemes:  []string{"https"},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads rawURL. The media type comes from Content-Type, or is sniffed from the
// body when the header is missing or generic.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Media, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Media{}, fmt.Errorf("mediafetch: parse URL: %w", err)
	}
	if !slices.Contains(f.schemes, u.Scheme) {
		return Media{}, ErrUnsafeScheme
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Media{}, fmt.Errorf("mediafetch: new request: %w", err)
	}
	resp, err := f.client.Do(req) // #nosec G107 -- scheme is restricted above
	if err != nil {
		return Media{}, fmt.Errorf("mediafetch: do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Media{}, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}
	declared, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if declared != "" && !generic(declared) && !f.allowed(declared) {
		return Media{}, fmt.Errorf("%w: %s", ErrUnsupportedType, declared)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Media{}, fmt.Errorf("mediafetch: read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return Media{}, ErrBodyTooLarge
	}
	mt := declared
	if mt == "" || generic(mt) {
		mt = DetectType(data)
	}
	if !f.allowed(mt) {
		return Media{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mt)
	}
	return Media{Data: data, MIMEType: mt}, nil
}

func (f *Fetcher) allowed(mediaType string) bool {
	for _, p := range f.prefixes {
		if strings.HasPrefix(mediaType, p) {
			return true
		}
	}
	return false
}

func generic(mediaType string) bool {
	return mediaType == "application/octet-stream" || mediaType == "binary/octet-stream"
}

// DetectType sniffs the media type of data, without parameters (e.g. "video/mp4").
func DetectType(data []byte) string {
	mt, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return strings.TrimSpace(mt)
}
