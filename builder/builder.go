// Package builder turns analysis requests into prompt executions for a provider client.
package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/safeclick/safeclick"
	"github.com/safeclick/safeclick/prompts"
	"github.com/safeclick/safeclick/threat"
)

// DefaultTokenBudget caps user-supplied text when no WithTokenBudget option is given.
const DefaultTokenBudget = 8000

// Shape is the output form a Plan expects from the provider.
type Shape int

// Expected output shapes.
const (
	ShapeSchema   Shape = iota + 1 // JSON matching Execution.ResponseFormat
	ShapeSections                  // free text carrying Execution.Sections tags
	ShapeChat                      // streamed free text, optionally "###" sectioned
	ShapeGrounded                  // free text with web citations
)

func (s Shape) String() string {
	switch s {
	case ShapeSchema:
		return "schema"
	case ShapeSections:
		return "sections"
	case ShapeChat:
		return "chat"
	case ShapeGrounded:
		return "grounded"
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

// Plan is a ready-to-send execution plus the shape its answer should be read as.
type Plan struct {
	Kind      threat.Kind
	Shape     Shape
	Execution *safeclick.PromptExecution
}

// Builder renders the SafeClick prompts. Templates are resolved once in New;
// Build and friends do no I/O and are safe for concurrent use.
type Builder struct {
	templates map[string]*safeclick.ChatPromptTemplate
	budget    int
	env       string
}

// Option configures New.
type Option func(*Builder)

// WithTokenBudget caps the tokens of user-supplied text. Non-positive values keep the default.
func WithTokenBudget(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.budget = n
		}
	}
}

// WithEnv selects the registry environment overlay ("prod", "dev").
func WithEnv(env string) Option {
	return func(b *Builder) { b.env = env }
}

// New resolves every SafeClick prompt from reg.
func New(ctx context.Context, reg safeclick.PromptRegistry, opts ...Option) (*Builder, error) {
	b := &Builder{templates: make(map[string]*safeclick.ChatPromptTemplate, len(prompts.Names)), budget: DefaultTokenBudget}
	for _, opt := range opts {
		opt(b)
	}
	for _, name := range prompts.Names {
		tpl, err := reg.GetTemplate(ctx, name, b.env)
		if err != nil {
			return nil, fmt.Errorf("builder: load %s: %w", name, err)
		}
		b.templates[name] = tpl
	}
	return b, nil
}

// Build validates req and renders the plan for its kind. Video requests must carry resolved media bytes.
func (b *Builder) Build(ctx context.Context, req threat.AnalysisRequest) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	switch {
	case req.Kind.Textual():
		exec, err := b.format(ctx, prompts.ThreatAnalysisPrompt, prompts.ThreatAnalysisPayload{
			Kind:    string(req.Kind),
			Content: req.Text,
			Budget:  b.budget,
		})
		if err != nil {
			return nil, err
		}
		return &Plan{Kind: req.Kind, Shape: ShapeSchema, Execution: exec}, nil
	case req.Kind == threat.KindVideo:
		if !req.Media.Resolved() {
			return nil, fmt.Errorf("%w: video media not resolved", threat.ErrInvalidRequest)
		}
		exec, err := b.format(ctx, prompts.VideoAuditPrompt, prompts.VideoAuditPayload{Notes: req.Notes})
		if err != nil {
			return nil, err
		}
		exec = exec.WithAttachments(safeclick.MediaPart{MIMEType: req.Media.MIMEType, Data: req.Media.Data})
		return &Plan{Kind: req.Kind, Shape: ShapeSections, Execution: exec}, nil
	default:
		return b.Chat(ctx, nil, req.Text)
	}
}

// Chat renders one chat turn. history holds the completed turns only and is spliced
// after the analyst persona.
func (b *Builder) Chat(ctx context.Context, history []safeclick.ChatMessage, message string) (*Plan, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: empty chat message", threat.ErrInvalidRequest)
	}
	exec, err := b.format(ctx, prompts.SOCChatPrompt, prompts.SOCChatPayload{
		Message: message,
		Budget:  b.budget,
		History: history,
	})
	if err != nil {
		return nil, err
	}
	return &Plan{Kind: threat.KindChat, Shape: ShapeChat, Execution: exec}, nil
}

// Search renders a grounded intelligence query.
func (b *Builder) Search(ctx context.Context, query string) (*Plan, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", threat.ErrInvalidRequest)
	}
	exec, err := b.format(ctx, prompts.IntelSearchPrompt, prompts.IntelSearchPayload{Query: query, Budget: b.budget})
	if err != nil {
		return nil, err
	}
	return &Plan{Shape: ShapeGrounded, Execution: exec}, nil
}

func (b *Builder) format(ctx context.Context, name string, payload any) (*safeclick.PromptExecution, error) {
	tpl, ok := b.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", safeclick.ErrTemplateNotFound, name)
	}
	return tpl.FormatStruct(ctx, payload)
}
