// Package tracing wraps an adapter.Client with OpenTelemetry spans.
//
// Every Generate call and every Stream iteration becomes one client span named after the
// operation, carrying the prompt id, version, environment and model. Failures are recorded
// on the span and flip its status to Error.
package tracing

import (
	"context"
	"iter"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/adapter"
)

// ScopeName is the instrumentation scope of the tracer.
const ScopeName = "github.com/safeclick/safeclick/ext/tracing"

// Span and attribute names.
const (
	SpanGenerate = "safeclick.generate"
	SpanStream   = "safeclick.stream"

	AttrPromptID      = attribute.Key("safeclick.prompt.id")
	AttrPromptVersion = attribute.Key("safeclick.prompt.version")
	AttrPromptEnv     = attribute.Key("safeclick.prompt.env")
	AttrModel         = attribute.Key("safeclick.model")
	AttrGrounding     = attribute.Key("safeclick.grounding")
	AttrMessages      = attribute.Key("safeclick.messages")
	AttrResponseChars = attribute.Key("safeclick.response.chars")
	AttrCitations     = attribute.Key("safeclick.response.citations")
	AttrChunks        = attribute.Key("safeclick.stream.chunks")
)

// Client is a traced adapter.Client.
type Client struct {
	next   adapter.Client
	tracer trace.Tracer
}

var _ adapter.Client = (*Client)(nil)

// Option configures Wrap.
type Option func(*options)

type options struct {
	provider trace.TracerProvider
}

// WithTracerProvider sets the provider spans are created from. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.provider = tp
		}
	}
}

// Wrap returns next instrumented with spans.
func Wrap(next adapter.Client, opts ...Option) *Client {
	o := options{provider: otel.GetTracerProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{next: next, tracer: o.provider.Tracer(ScopeName)}
}

// Generate implements adapter.Client.
func (c *Client) Generate(ctx context.Context, exec *safeclick.PromptExecution) (*adapter.Response, error) {
	ctx, span := c.start(ctx, SpanGenerate, exec)
	defer span.End()
	resp, err := c.next.Generate(ctx, exec)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	span.SetAttributes(
		AttrResponseChars.Int(len(resp.Text())),
		AttrCitations.Int(len(resp.Citations())),
	)
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

// Stream implements adapter.Client. The span covers the iteration, not the call to Stream.
func (c *Client) Stream(ctx context.Context, exec *safeclick.PromptExecution) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := c.start(ctx, SpanStream, exec)
		defer span.End()
		var chunks, chars int
		for chunk, err := range c.next.Stream(ctx, exec) {
			if err != nil {
				fail(span, err)
				span.SetAttributes(AttrChunks.Int(chunks), AttrResponseChars.Int(chars))
				yield("", err)
				return
			}
			chunks++
			chars += len(chunk)
			if !yield(chunk, nil) {
				break
			}
		}
		span.SetAttributes(AttrChunks.Int(chunks), AttrResponseChars.Int(chars))
		span.SetStatus(codes.Ok, "")
	}
}

func (c *Client) start(ctx context.Context, name string, exec *safeclick.PromptExecution) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(executionAttributes(exec)...),
	)
}

func executionAttributes(exec *safeclick.PromptExecution) []attribute.KeyValue {
	if exec == nil {
		return nil
	}
	attrs := []attribute.KeyValue{
		AttrPromptID.String(exec.Metadata.ID),
		AttrMessages.Int(len(exec.Messages)),
		AttrGrounding.Bool(exec.Grounding),
	}
	if exec.Metadata.Version != "" {
		attrs = append(attrs, AttrPromptVersion.String(exec.Metadata.Version))
	}
	if exec.Metadata.Environment != "" {
		attrs = append(attrs, AttrPromptEnv.String(exec.Metadata.Environment))
	}
	if model := adapter.ExtractModelConfig(exec.ModelConfig).Model; model != "" {
		attrs = append(attrs, AttrModel.String(model))
	}
	return attrs
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
