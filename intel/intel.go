// Package intel is the SafeClick service: threat analysis, live intelligence search,
// video audits and analyst chat, composed from builder, a provider client and interpret.
package intel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/safeclick/safeclick/adapter"
	"github.com/safeclick/safeclick/builder"
	"github.com/safeclick/safeclick/interpret"
	"github.com/safeclick/safeclick/mediafetch"
	"github.com/safeclick/safeclick/session"
	"github.com/safeclick/safeclick/threat"
)

// Messages shown to users when an operation fails.
const (
	MsgCoreOffline  = "Intelligence core offline."
	MsgSearchFailed = "Intelligence search failed."
	MsgVideoLab     = "Video lab error."
)

// ErrVideoLab wraps every failed video audit.
var ErrVideoLab = errors.New("intel: video lab error")

// Error is a failed operation. Message is safe to show to users; Err holds the cause.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string { return fmt.Sprintf("intel: %s: %v", e.Op, e.Err) }

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// MediaFetcher resolves a media URL to bytes. *mediafetch.Fetcher implements it.
type MediaFetcher interface {
	Fetch(ctx context.Context, rawURL string) (mediafetch.Media, error)
}

// Service runs SafeClick operations against one provider client.
type Service struct {
	builder *builder.Builder
	client  adapter.Client
	media   MediaFetcher
	logger  *slog.Logger
	policy  session.BusyPolicy
}

// Option configures New.
type Option func(*Service)

// WithMediaFetcher sets how video URLs are downloaded. The default is mediafetch.New().
func WithMediaFetcher(f MediaFetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.media = f
		}
	}
}

// WithLogger sets the logger for provider calls.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithChatPolicy sets the busy policy of sessions opened by StartChat.
func WithChatPolicy(p session.BusyPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// New returns a Service.
func New(b *builder.Builder, client adapter.Client, opts ...Option) *Service {
	s := &Service{
		builder: b,
		client:  client,
		media:   mediafetch.New(),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeThreat scores a URL, email or SMS. Invalid input fails with threat.ErrInvalidRequest;
// provider or decoding failures fail with an *Error carrying MsgCoreOffline.
func (s *Service) AnalyzeThreat(ctx context.Context, kind threat.Kind, content string) (*threat.AnalysisResult, error) {
	if !kind.Textual() {
		return nil, fmt.Errorf("%w: %q is not analyzed as text", threat.ErrInvalidRequest, kind)
	}
	plan, err := s.builder.Build(ctx, threat.AnalysisRequest{Kind: kind, Text: content})
	if err != nil {
		return nil, err
	}
	resp, err := s.generate(ctx, "analyze", plan)
	if err != nil {
		return nil, &Error{Op: "analyze", Message: MsgCoreOffline, Err: fmt.Errorf("%w: %w", interpret.ErrCoreOffline, err)}
	}
	res, err := interpret.DecodeAnalysis(resp.Text())
	if err != nil {
		s.logger.WarnContext(ctx, "undecodable analysis", "kind", kind, "error", err)
		return nil, &Error{Op: "analyze", Message: MsgCoreOffline, Err: err}
	}
	return res, nil
}

// SearchIntel runs a grounded web search. It never fails: on any error the brief holds
// MsgSearchFailed and no sources.
func (s *Service) SearchIntel(ctx context.Context, query string) threat.IntelBrief {
	failed := threat.IntelBrief{Text: MsgSearchFailed, Sources: []threat.Source{}}
	plan, err := s.builder.Search(ctx, query)
	if err != nil {
		s.logger.WarnContext(ctx, "intel search rejected", "error", err)
		return failed
	}
	resp, err := s.generate(ctx, "search", plan)
	if err != nil {
		return failed
	}
	brief := threat.IntelBrief{Text: resp.Text(), Sources: []threat.Source{}}
	for _, c := range resp.Citations() {
		brief.Sources = append(brief.Sources, threat.Source{URI: c.URI, Title: c.Title})
	}
	return brief
}

// AnalyzeVideo audits a clip. Media given by URL is downloaded first; a missing or generic
// media type is sniffed from the bytes. The report never lacks a field, but transport or
// provider failures fail with an *Error carrying MsgVideoLab.
func (s *Service) AnalyzeVideo(ctx context.Context, media threat.Media, notes string) (*threat.VideoForensicReport, error) {
	if media.Resolved() && (media.MIMEType == "" || media.MIMEType == "application/octet-stream") {
		media.MIMEType = mediafetch.DetectType(media.Data)
	}
	req := threat.AnalysisRequest{Kind: threat.KindVideo, Media: &media, Notes: notes}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !media.Resolved() {
		fetched, err := s.media.Fetch(ctx, media.URL)
		if err != nil {
			return nil, s.videoError(err)
		}
		media.Data, media.MIMEType = fetched.Data, fetched.MIMEType
	}
	plan, err := s.builder.Build(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := s.generate(ctx, "video", plan)
	if err != nil {
		return nil, s.videoError(err)
	}
	report := interpret.ParseVideoReport(resp.Text())
	return &report, nil
}

func (s *Service) videoError(err error) error {
	return &Error{Op: "video", Message: MsgVideoLab, Err: fmt.Errorf("%w: %w", ErrVideoLab, err)}
}

// StartChat opens a new analyst session.
func (s *Service) StartChat() *session.Session {
	return session.New(s.builder, s.client, session.WithPolicy(s.policy), session.WithLogger(s.logger))
}

// generate performs one provider call and logs its outcome.
func (s *Service) generate(ctx context.Context, op string, plan *builder.Plan) (*adapter.Response, error) {
	start := time.Now()
	meta := plan.Execution.Metadata
	resp, err := s.client.Generate(ctx, plan.Execution)
	attrs := []any{
		"op", op,
		"prompt", meta.ID,
		"version", meta.Version,
		"shape", plan.Shape.String(),
		"duration", time.Since(start),
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "provider call failed", append(attrs, "error", err)...)
		return nil, err
	}
	s.logger.InfoContext(ctx, "provider call", attrs...)
	return resp, nil
}
