package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/adapter"
	"github.com/safeclick/safeclick/builder"
	"github.com/safeclick/safeclick/threat"
)

// User-facing texts of the analyst chat.
const (
	Greeting      = "SafeClick SOC Analyst Online. Systems synchronized. Upload telemetry or describe suspicious activity for immediate forensic audit."
	UplinkSevered = "CRITICAL_ERROR: AI core uplink severed. Check network protocols."
)

var (
	// ErrBusy is returned by Send under RejectWhileBusy while a reply is streaming.
	ErrBusy = errors.New("session: a reply is still streaming")
	// ErrSuperseded ends a turn whose reply was cut short by a newer Send under CancelPrevious.
	ErrSuperseded = errors.New("session: turn superseded by a newer message")
)

// BusyPolicy decides what Send does while an earlier reply is still streaming.
type BusyPolicy int

// Busy policies.
const (
	RejectWhileBusy BusyPolicy = iota // fail the new Send with ErrBusy
	CancelPrevious                    // stop the running reply, keep its text, start the new turn
)

// Planner renders one chat turn. *builder.Builder implements it.
type Planner interface {
	Chat(ctx context.Context, history []safeclick.ChatMessage, message string) (*builder.Plan, error)
}

// Session is one analyst conversation. It is owned by a single caller, but Snapshot, Busy
// and Cancel may be called from other goroutines while Send streams.
type Session struct {
	id       string
	planner  Planner
	client   adapter.Client
	policy   BusyPolicy
	logger   *slog.Logger
	now      func() time.Time
	greeting bool

	mu       sync.Mutex
	messages []Message
	history  []safeclick.ChatMessage // completed turns only
	turn     uint64
	pending  int // index of the streaming placeholder, -1 when idle
	cancel   context.CancelFunc
}

// Option configures New.
type Option func(*Session)

// WithPolicy sets the busy policy. The default is RejectWhileBusy.
func WithPolicy(p BusyPolicy) Option {
	return func(s *Session) { s.policy = p }
}

// WithLogger sets the logger for turn failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithoutGreeting starts the transcript empty.
func WithoutGreeting() Option {
	return func(s *Session) { s.greeting = false }
}

// New opens a session. The transcript starts with the analyst greeting.
func New(planner Planner, client adapter.Client, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		planner:  planner,
		client:   client,
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
		greeting: true,
		pending:  -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.greeting {
		s.messages = append(s.messages, s.newMessage(RoleAssistant, Greeting))
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Send appends the user's message and streams the analyst reply into a placeholder,
// calling onUpdate (if non-nil) with the placeholder after every fragment and once more
// when it is finalized. It returns the final reply.
//
// A provider failure replaces the placeholder with UplinkSevered and returns the error.
// Cancel, or cancelling ctx, keeps the partial text and returns the context error.
// Only completed turns are sent to the model as history.
func (s *Session) Send(ctx context.Context, text string, onUpdate func(Message)) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, fmt.Errorf("%w: empty chat message", threat.ErrInvalidRequest)
	}
	turnCtx, turn, idx, history, err := s.begin(ctx, text)
	if err != nil {
		return Message{}, err
	}
	notify := func(m Message) {
		if onUpdate != nil {
			onUpdate(m)
		}
	}

	plan, err := s.planner.Chat(turnCtx, history, text)
	if err != nil {
		return s.finish(turn, idx, text, err, notify)
	}
	var streamErr error
	for frag, err := range s.client.Stream(turnCtx, plan.Execution) {
		if err != nil {
			streamErr = err
			break
		}
		msg, ok := s.appendFragment(turn, idx, frag)
		if !ok {
			streamErr = ErrSuperseded
			break
		}
		notify(msg)
	}
	if streamErr == nil {
		streamErr = turnCtx.Err()
	}
	return s.finish(turn, idx, text, streamErr, notify)
}

// begin applies the busy policy and appends the user entry plus the streaming placeholder.
func (s *Session) begin(ctx context.Context, text string) (context.Context, uint64, int, []safeclick.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending >= 0 {
		if s.policy == RejectWhileBusy {
			return nil, 0, 0, nil, ErrBusy
		}
		s.cancel()
		s.messages[s.pending].Streaming = false
		s.messages[s.pending].Incomplete = true
		s.markPrompt(s.pending)
	}
	turnCtx, cancel := context.WithCancel(ctx)
	s.turn++
	s.cancel = cancel
	s.messages = append(s.messages, s.newMessage(RoleUser, text))
	placeholder := s.newMessage(RoleAssistant, "")
	placeholder.Streaming = true
	s.messages = append(s.messages, placeholder)
	s.pending = len(s.messages) - 1
	return turnCtx, s.turn, s.pending, append([]safeclick.ChatMessage(nil), s.history...), nil
}

func (s *Session) appendFragment(turn uint64, idx int, frag string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turn != turn {
		return Message{}, false
	}
	s.messages[idx].Text += frag
	return s.messages[idx], true
}

// finish finalizes the placeholder of turn unless a newer turn already did.
func (s *Session) finish(turn uint64, idx int, prompt string, err error, notify func(Message)) (Message, error) {
	s.mu.Lock()
	if s.turn != turn {
		msg := s.messages[idx]
		s.mu.Unlock()
		return msg, ErrSuperseded
	}
	s.cancel()
	s.pending = -1
	msg := &s.messages[idx]
	msg.Streaming = false
	switch {
	case err == nil:
		s.history = append(s.history,
			safeclick.ChatMessage{Role: safeclick.RoleUser, Content: []safeclick.ContentPart{safeclick.TextPart{Text: prompt}}},
			safeclick.ChatMessage{Role: safeclick.RoleAssistant, Content: []safeclick.ContentPart{safeclick.TextPart{Text: msg.Text}}},
		)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		msg.Incomplete = true
		s.markPrompt(idx)
	default:
		msg.Text = UplinkSevered
		msg.Failed = true
		msg.Incomplete = true
		s.markPrompt(idx)
		s.logger.Warn("chat turn failed", "session", s.id, "turn", turn, "error", err)
	}
	final := *msg
	s.mu.Unlock()
	notify(final)
	return final, err
}

// markPrompt flags the user entry that preceded the placeholder at idx.
func (s *Session) markPrompt(idx int) {
	if idx > 0 && s.messages[idx-1].Role == RoleUser {
		s.messages[idx-1].Incomplete = true
	}
}

// Cancel stops the streaming reply, if any. The partial text is kept.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending >= 0 {
		s.cancel()
	}
}

// Busy reports whether a reply is streaming.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending >= 0
}

// Snapshot returns a copy of the transcript.
func (s *Session) Snapshot() Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(Transcript(nil), s.messages...)
}

func (s *Session) newMessage(role Role, text string) Message {
	return Message{ID: uuid.NewString(), Role: role, Text: text, At: s.now().UTC()}
}
