package safeclick

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"text/template"
)

// ChatPromptTemplate holds message templates and options for rendering.
// Use NewChatPromptTemplate to construct; options are applied via ChatTemplateOption.
// Fields must not be mutated after construction to ensure goroutine safety.
type ChatPromptTemplate struct {
	Messages         []MessageTemplate
	PartialVariables map[string]any
	ModelConfig      map[string]any
	Metadata         PromptMetadata
	ResponseFormat   *SchemaDefinition
	Sections         []string
	Grounding        bool
	RequiredVars     []string // explicit required vars from manifest; merged with template-derived in FormatStruct
	requiredFromAST  []string
	tokenCounter     TokenCounter
	parsedTemplates  []parsedMessage
}

type parsedMessage struct {
	tpl      *template.Template
	role     Role
	optional bool
	vars     []string // pre-computed from AST for optional-skip check
}

// NewChatPromptTemplate builds a template with defensive copies and applies options.
// Returns ErrTemplateParse if any message content fails to parse.
func NewChatPromptTemplate(messages []MessageTemplate, opts ...ChatTemplateOption) (*ChatPromptTemplate, error) {
	tpl := &ChatPromptTemplate{
		Messages: slices.Clone(messages),
	}
	for _, opt := range opts {
		opt(tpl)
	}
	tpl.PartialVariables = maps.Clone(tpl.PartialVariables)
	tpl.ModelConfig = maps.Clone(tpl.ModelConfig)
	tpl.RequiredVars = slices.Clone(tpl.RequiredVars)
	tpl.Sections = slices.Clone(tpl.Sections)
	tc := tpl.tokenCounter
	if tc == nil {
		tc = &CharFallbackCounter{}
	}
	funcMap := defaultFuncMap(tc)
	tpl.parsedTemplates = make([]parsedMessage, 0, len(tpl.Messages))
	for i, m := range tpl.Messages {
		parsed, err := template.New("").Funcs(funcMap).Parse(m.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: message %d: %w", ErrTemplateParse, i, err)
		}
		tpl.parsedTemplates = append(tpl.parsedTemplates, parsedMessage{
			tpl:      parsed,
			role:     m.Role,
			optional: m.Optional,
			vars:     extractVarsFromTree(parsed.Tree),
		})
	}
	tpl.requiredFromAST = extractRequiredVarsFromParsed(tpl.parsedTemplates)
	return tpl, nil
}

// CloneTemplate returns a copy of the template with cloned slice and map fields.
// Registries use this so callers cannot mutate the cached template.
func CloneTemplate(c *ChatPromptTemplate) *ChatPromptTemplate {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = slices.Clone(c.Messages)
	out.PartialVariables = maps.Clone(c.PartialVariables)
	out.ModelConfig = maps.Clone(c.ModelConfig)
	out.RequiredVars = slices.Clone(c.RequiredVars)
	out.Sections = slices.Clone(c.Sections)
	out.Metadata.Tags = slices.Clone(c.Metadata.Tags)
	return &out
}

// Variables returns every variable the template can read: explicit required names first,
// then the names referenced by message templates (optional ones included) in first-seen order.
func (c *ChatPromptTemplate) Variables() []string {
	var fromTemplates []string
	for _, pm := range c.parsedTemplates {
		fromTemplates = append(fromTemplates, pm.vars...)
	}
	return mergeRequiredVars(c.RequiredVars, fromTemplates)
}

// FormatStruct renders the template using payload struct (prompt tags), merges variables, validates, splices history.
func (c *ChatPromptTemplate) FormatStruct(ctx context.Context, payload any) (*PromptExecution, error) {
	vars, history, err := getPayloadFields(payload)
	if err != nil {
		return nil, err
	}
	merged := maps.Clone(c.PartialVariables)
	if merged == nil {
		merged = make(map[string]any)
	}
	maps.Copy(merged, vars)
	for _, name := range mergeRequiredVars(c.RequiredVars, c.requiredFromAST) {
		if _, ok := merged[name]; !ok {
			return nil, &VariableError{Variable: name, Template: c.Metadata.ID, Err: ErrMissingVariable}
		}
	}
	var out []ChatMessage
	for i, pm := range c.parsedTemplates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if pm.tpl == nil {
			return nil, fmt.Errorf("%w: message %d", ErrTemplateParse, i)
		}
		if pm.optional && allVarsZeroForMessage(merged, pm.vars) {
			continue
		}
		var buf bytes.Buffer
		if err := pm.tpl.Execute(&buf, merged); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTemplateRender, err)
		}
		out = append(out, ChatMessage{Role: pm.role, Content: []ContentPart{TextPart{Text: buf.String()}}})
	}
	out = spliceHistory(out, history)
	meta := c.Metadata
	meta.Tags = slices.Clone(meta.Tags)
	return &PromptExecution{
		Messages:       out,
		ModelConfig:    maps.Clone(c.ModelConfig),
		Metadata:       meta,
		ResponseFormat: c.ResponseFormat,
		Sections:       slices.Clone(c.Sections),
		Grounding:      c.Grounding,
	}, nil
}

// mergeRequiredVars returns unique names from explicit and template-derived, preserving order (explicit first).
func mergeRequiredVars(explicit, fromTemplates []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range slices.Concat(explicit, fromTemplates) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func allVarsZeroForMessage(merged map[string]any, vars []string) bool {
	for _, name := range vars {
		v, ok := merged[name]
		if !ok || v == nil {
			continue
		}
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Func, reflect.Chan, reflect.UnsafePointer:
			return false
		default:
			if !rv.IsZero() {
				return false
			}
		}
	}
	return true
}

// spliceHistory inserts history after the leading system messages.
func spliceHistory(rendered []ChatMessage, history []ChatMessage) []ChatMessage {
	if len(history) == 0 {
		return rendered
	}
	insertAt := 0
	for i, m := range rendered {
		if m.Role != RoleSystem {
			insertAt = i
			break
		}
		insertAt = i + 1
	}
	return slices.Concat(rendered[:insertAt], history, rendered[insertAt:])
}
