package safeclick

import (
	"context"
	"strings"
)

// Role is the message role in a chat (system, user, assistant).
type Role string

// Chat message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentPart is a sealed interface for message parts. Only package types implement it via isContentPart().
type ContentPart interface {
	isContentPart()
}

// TextPart holds plain text content.
type TextPart struct {
	Text string
}

func (TextPart) isContentPart() {}

// MediaPart holds binary media (e.g. an uploaded video) or a reference to it.
// Data takes precedence over URL when both are set.
type MediaPart struct {
	MIMEType string
	Data     []byte
	URL      string
}

func (MediaPart) isContentPart() {}

// Kind returns the top-level media type ("video" for "video/mp4"), or "" when MIMEType is empty.
func (m MediaPart) Kind() string {
	kind, _, _ := strings.Cut(m.MIMEType, "/")
	return kind
}

// CitationPart is a grounding source attached to a model answer.
type CitationPart struct {
	URI   string
	Title string
}

func (CitationPart) isContentPart() {}

// ChatMessage is a single message with role and content parts (supports multimodal).
type ChatMessage struct {
	Role    Role
	Content []ContentPart
}

// SchemaDefinition is a named JSON Schema declaring the shape of a structured response.
type SchemaDefinition struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Schema      map[string]any `yaml:"schema"`
}

// PromptMetadata holds observability metadata.
type PromptMetadata struct {
	ID          string
	Version     string
	Description string
	Tags        []string
	Environment string // set by registry when loading by env; not from manifest
}

// PromptExecution is the result of formatting a template; immutable after creation.
//
// ResponseFormat and Sections describe the expected output shape: a strict JSON schema,
// or an ordered list of bracketed section tags for free text. Grounding asks the provider
// to augment the answer with live web search.
type PromptExecution struct {
	Messages       []ChatMessage
	ModelConfig    map[string]any
	Metadata       PromptMetadata
	ResponseFormat *SchemaDefinition
	Sections       []string
	Grounding      bool
}

// WithAttachments returns a copy of e with parts placed ahead of the last user message's text.
// If there is no user message, a new one holding parts is appended.
func (e *PromptExecution) WithAttachments(parts ...ContentPart) *PromptExecution {
	out := *e
	out.Messages = make([]ChatMessage, len(e.Messages))
	copy(out.Messages, e.Messages)
	if len(parts) == 0 {
		return &out
	}
	for i := len(out.Messages) - 1; i >= 0; i-- {
		if out.Messages[i].Role != RoleUser {
			continue
		}
		content := make([]ContentPart, 0, len(out.Messages[i].Content)+len(parts))
		content = append(content, parts...)
		content = append(content, out.Messages[i].Content...)
		out.Messages[i].Content = content
		return &out
	}
	out.Messages = append(out.Messages, ChatMessage{Role: RoleUser, Content: parts})
	return &out
}

// MessageTemplate is the raw template for one message before rendering.
// Optional: true skips the message if all referenced variables are zero-value.
type MessageTemplate struct {
	Role     Role   `yaml:"role"`
	Content  string `yaml:"content"`
	Optional bool   `yaml:"optional"`
}

// PromptRegistry returns a chat prompt template by name and environment.
type PromptRegistry interface {
	GetTemplate(ctx context.Context, name, env string) (*ChatPromptTemplate, error)
}
