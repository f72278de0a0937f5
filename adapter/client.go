//go:generate go run go.uber.org/mock/mockgen -source=client.go -destination=../internal/mocks/mock_client.go -package=mocks

package adapter

import (
	"context"
	"iter"

	"github.com/safeclick/safeclick"
)

// Client sends a PromptExecution to a model provider.
type Client interface {
	// Generate performs one request and returns the complete answer.
	Generate(ctx context.Context, exec *safeclick.PromptExecution) (*Response, error)
	// Stream yields answer fragments in arrival order. The sequence ends after the final
	// fragment, or after yielding one non-nil error. Cancelling ctx ends it early.
	Stream(ctx context.Context, exec *safeclick.PromptExecution) iter.Seq2[string, error]
}

// Response is a complete provider answer.
type Response struct {
	Parts []safeclick.ContentPart
}

// Text returns the concatenated text of the answer.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return TextFromParts(r.Parts)
}

// Citations returns the grounding sources attached to the answer, without duplicates.
func (r *Response) Citations() []safeclick.CitationPart {
	if r == nil {
		return nil
	}
	return CitationsFromParts(r.Parts)
}

// StreamError returns a sequence that yields only err.
func StreamError(err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", err)
	}
}
