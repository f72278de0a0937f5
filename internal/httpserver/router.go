// Package httpserver exposes the SafeClick operations over HTTP with chi.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/safeclick/safeclick/internal/middleware"
	"github.com/safeclick/safeclick/interpret"
	"github.com/safeclick/safeclick/intel"
	"github.com/safeclick/safeclick/session"
	"github.com/safeclick/safeclick/threat"
)

// DefaultMaxUploadBytes bounds a video upload.
const DefaultMaxUploadBytes = 50 << 20

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// Service is the set of operations served. *intel.Service implements it.
type Service interface {
	AnalyzeThreat(ctx context.Context, kind threat.Kind, content string) (*threat.AnalysisResult, error)
	SearchIntel(ctx context.Context, query string) threat.IntelBrief
	AnalyzeVideo(ctx context.Context, media threat.Media, notes string) (*threat.VideoForensicReport, error)
	StartChat() *session.Session
}

var _ Service = (*intel.Service)(nil)

// Router serves the HTTP API.
type Router struct {
	svc       Service
	sessions  *sessionStore
	logger    *slog.Logger
	maxUpload int64
	origins   []string
	checkers  map[string]middleware.HealthChecker
	handler   http.Handler
}

// Option configures New.
type Option func(*Router)

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMaxUploadBytes bounds video uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(r *Router) {
		if n > 0 {
			r.maxUpload = n
		}
	}
}

// WithCORSOrigins sets the allowed browser origins. Defaults to any origin.
func WithCORSOrigins(origins ...string) Option {
	return func(r *Router) { r.origins = origins }
}

// WithHealthCheckers adds named checks to GET /health.
func WithHealthCheckers(checkers map[string]middleware.HealthChecker) Option {
	return func(r *Router) { r.checkers = checkers }
}

// New builds the router.
func New(svc Service, opts ...Option) *Router {
	r := &Router{
		svc:       svc,
		sessions:  newSessionStore(),
		logger:    slog.New(slog.DiscardHandler),
		maxUpload: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	if len(r.origins) == 0 {
		r.origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(r.logger))
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: r.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.HealthHandler(r.checkers))
	mux.Get("/livez", middleware.LivenessHandler)
	mux.Get("/readyz", middleware.ReadinessHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/analyze/{kind}", r.wrap(r.handleAnalyze))
		rt.Post("/intel/search", r.wrap(r.handleSearch))
		rt.Post("/video", r.wrap(r.handleVideo))
		rt.Route("/chat/sessions", func(rt chi.Router) {
			rt.Post("/", r.wrap(r.handleCreateSession))
			rt.Get("/{id}", r.wrap(r.handleGetSession))
			rt.Delete("/{id}", r.wrap(r.handleDeleteSession))
			rt.Post("/{id}/messages", r.wrap(r.handleSend))
		})
	})
	r.handler = mux
	return r
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// Close cancels all streaming chat replies and drops the sessions.
func (r *Router) Close() {
	r.sessions.closeAll()
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

var errBadBody = errors.New("malformed request body")

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, msg := classify(err)
		if status >= http.StatusInternalServerError {
			r.logger.ErrorContext(req.Context(), "request failed", "path", req.URL.Path, "error", err)
		}
		writeJSON(w, status, errorBody{Error: msg})
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// classify maps an error to a status code and a message safe to show to users.
func classify(err error) (int, string) {
	var (
		ie     *intel.Error
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit)
	case errors.Is(err, errBadBody), errors.Is(err, threat.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errUnknownSession):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict, "a reply is still streaming in this session"
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict, "reply superseded by a newer message"
	case errors.As(err, &ie):
		return http.StatusBadGateway, ie.Message
	case errors.Is(err, interpret.ErrCoreOffline):
		return http.StatusBadGateway, intel.MsgCoreOffline
	}
	return http.StatusInternalServerError, "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return fmt.Errorf("%w: %w", errBadBody, err)
	}
	return nil
}

// POST /v1/analyze/{kind}
// Body: {"content": "..."}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	kind, err := threat.ParseKind(chi.URLParam(req, "kind"))
	if err != nil {
		return err
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, req, &body); err != nil {
		return err
	}
	res, err := r.svc.AnalyzeThreat(req.Context(), kind, body.Content)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

// POST /v1/intel/search
// Body: {"query": "..."}
func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(w, req, &body); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, r.svc.SearchIntel(req.Context(), body.Query))
	return nil
}

// POST /v1/video
// Body: multipart with a "file" part and an optional "notes" field, or {"url": "...", "notes": "..."}.
func (r *Router) handleVideo(w http.ResponseWriter, req *http.Request) error {
	var (
		media threat.Media
		notes string
	)
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var err error
		media, notes, err = r.readUpload(w, req)
		if err != nil {
			return err
		}
	} else {
		var body struct {
			URL   string `json:"url"`
			Notes string `json:"notes"`
		}
		if err := decodeJSON(w, req, &body); err != nil {
			return err
		}
		media, notes = threat.Media{URL: body.URL}, body.Notes
	}
	report, err := r.svc.AnalyzeVideo(req.Context(), media, notes)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, videoView{VideoForensicReport: report, Classification: report.Classification()})
	return nil
}

type videoView struct {
	*threat.VideoForensicReport
	Classification string `json:"classification"`
}

func (r *Router) readUpload(w http.ResponseWriter, req *http.Request) (threat.Media, string, error) {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload+maxJSONBody)
	if err := req.ParseMultipartForm(maxJSONBody); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return threat.Media{}, "", err
		}
		return threat.Media{}, "", fmt.Errorf("%w: %w", errBadBody, err)
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()
	file, header, err := req.FormFile("file")
	if err != nil {
		return threat.Media{}, "", fmt.Errorf("%w: missing file part", errBadBody)
	}
	defer file.Close()
	if header.Size > r.maxUpload {
		return threat.Media{}, "", &http.MaxBytesError{Limit: r.maxUpload}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return threat.Media{}, "", fmt.Errorf("%w: %w", errBadBody, err)
	}
	return threat.Media{Data: data, MIMEType: header.Header.Get("Content-Type")}, req.FormValue("notes"), nil
}

type messageView struct {
	session.Message
	Sections []interpret.Section `json:"sections,omitempty"`
}

type sessionView struct {
	ID       string        `json:"id"`
	Busy     bool          `json:"busy"`
	Messages []messageView `json:"messages"`
}

func viewOf(m session.Message) messageView {
	return messageView{Message: m, Sections: m.Sections()}
}

func viewSession(s *session.Session) sessionView {
	transcript := s.Snapshot()
	out := sessionView{ID: s.ID(), Busy: s.Busy(), Messages: make([]messageView, 0, len(transcript))}
	for _, m := range transcript {
		out.Messages = append(out.Messages, viewOf(m))
	}
	return out
}

// POST /v1/chat/sessions
func (r *Router) handleCreateSession(w http.ResponseWriter, _ *http.Request) error {
	s := r.svc.StartChat()
	r.sessions.put(s)
	writeJSON(w, http.StatusCreated, viewSession(s))
	return nil
}

// GET /v1/chat/sessions/{id}
func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) error {
	s, err := r.sessions.get(chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, viewSession(s))
	return nil
}

// DELETE /v1/chat/sessions/{id}
func (r *Router) handleDeleteSession(w http.ResponseWriter, req *http.Request) error {
	if err := r.sessions.remove(chi.URLParam(req, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// POST /v1/chat/sessions/{id}/messages
// Body: {"message": "..."}. Replies with a text/event-stream of message snapshots.
func (r *Router) handleSend(w http.ResponseWriter, req *http.Request) error {
	s, err := r.sessions.get(chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(w, req, &body); err != nil {
		return err
	}
	if strings.TrimSpace(body.Message) == "" {
		return fmt.Errorf("%w: empty chat message", threat.ErrInvalidRequest)
	}

	stream := newEventStream(w)
	final, err := s.Send(req.Context(), body.Message, func(m session.Message) {
		stream.send(eventMessage, viewOf(m))
	})
	if !stream.started {
		return err
	}
	switch {
	case err == nil:
		stream.send(eventDone, viewOf(final))
	case errors.Is(err, context.Canceled) && req.Context().Err() != nil:
		// client went away
	default:
		r.logger.WarnContext(req.Context(), "chat turn ended early", "session", s.ID(), "error", err)
		stream.send(eventError, errorBody{Error: streamErrorMessage(err)})
	}
	return nil
}

func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrSuperseded):
		return "reply superseded by a newer message"
	case errors.Is(err, context.Canceled):
		return "reply cancelled"
	}
	return session.UplinkSevered
}
