package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"github.com/safeclick/safeclick"

	"gopkg.in/yaml.v3"
)

// sectionTag matches the bracket-free tags a free-text report may declare ("VERDICT", "TECHNICAL_FLAGS").
var sectionTag = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// fileManifest is the YAML document shape.
type fileManifest struct {
	ID          string         `yaml:"id"`
	Version     string         `yaml:"version"`
	Description string         `yaml:"description"`
	ModelConfig map[string]any `yaml:"model_config"`
	Metadata    struct {
		Tags []string `yaml:"tags"`
	} `yaml:"metadata"`
	Variables struct {
		Required []string       `yaml:"required"`
		Partial  map[string]any `yaml:"partial"`
	} `yaml:"variables"`
	ResponseFormat *safeclick.SchemaDefinition `yaml:"response_format"`
	Sections       []string                    `yaml:"sections"`
	Grounding      bool                        `yaml:"grounding"`
	Messages       []safeclick.MessageTemplate `yaml:"messages"`
}

// ParseBytes parses a YAML manifest and returns a ChatPromptTemplate.
func ParseBytes(data []byte) (*safeclick.ChatPromptTemplate, error) {
	var m fileManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", safeclick.ErrInvalidManifest, err)
	}
	return m.template()
}

// ParseFile reads and parses a manifest file.
func ParseFile(path string) (*safeclick.ChatPromptTemplate, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is validated by caller
	if err != nil {
		return nil, fmt.Errorf("manifest: read file: %w", err)
	}
	return ParseBytes(data)
}

// ParseFS reads and parses a manifest from fs.FS (e.g. embed.FS).
func ParseFS(fsys fs.FS, name string) (*safeclick.ChatPromptTemplate, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("manifest: read fs: %w", err)
	}
	return ParseBytes(data)
}

func (m *fileManifest) validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", safeclick.ErrInvalidManifest)
	}
	if err := safeclick.ValidateID(m.ID); err != nil {
		return fmt.Errorf("%w: %w", safeclick.ErrInvalidManifest, err)
	}
	if len(m.Messages) == 0 {
		return fmt.Errorf("%w: missing messages", safeclick.ErrInvalidManifest)
	}
	for i, msg := range m.Messages {
		switch msg.Role {
		case safeclick.RoleSystem, safeclick.RoleUser, safeclick.RoleAssistant:
		default:
			return fmt.Errorf("%w: message %d: invalid role %q", safeclick.ErrInvalidManifest, i, msg.Role)
		}
	}
	if m.ResponseFormat != nil && len(m.Sections) > 0 {
		return fmt.Errorf("%w: response_format and sections are mutually exclusive", safeclick.ErrInvalidManifest)
	}
	if rf := m.ResponseFormat; rf != nil {
		if rf.Name == "" {
			return fmt.Errorf("%w: response_format: missing name", safeclick.ErrInvalidManifest)
		}
		if len(rf.Schema) == 0 {
			return fmt.Errorf("%w: response_format %q: empty schema", safeclick.ErrInvalidManifest, rf.Name)
		}
	}
	seen := make(map[string]bool, len(m.Sections))
	for _, tag := range m.Sections {
		if !sectionTag.MatchString(tag) {
			return fmt.Errorf("%w: invalid section tag %q", safeclick.ErrInvalidManifest, tag)
		}
		if seen[tag] {
			return fmt.Errorf("%w: duplicate section tag %q", safeclick.ErrInvalidManifest, tag)
		}
		seen[tag] = true
	}
	return nil
}

func (m *fileManifest) template() (*safeclick.ChatPromptTemplate, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	opts := []safeclick.ChatTemplateOption{
		safeclick.WithMetadata(safeclick.PromptMetadata{
			ID:          m.ID,
			Version:     m.Version,
			Description: m.Description,
			Tags:        m.Metadata.Tags,
		}),
	}
	if len(m.Variables.Required) > 0 {
		opts = append(opts, safeclick.WithRequiredVars(m.Variables.Required))
	}
	if len(m.Variables.Partial) > 0 {
		opts = append(opts, safeclick.WithPartialVariables(m.Variables.Partial))
	}
	if len(m.ModelConfig) > 0 {
		opts = append(opts, safeclick.WithConfig(m.ModelConfig))
	}
	if m.ResponseFormat != nil {
		opts = append(opts, safeclick.WithResponseFormat(m.ResponseFormat))
	}
	if len(m.Sections) > 0 {
		opts = append(opts, safeclick.WithSections(m.Sections))
	}
	if m.Grounding {
		opts = append(opts, safeclick.WithGrounding(true))
	}
	return safeclick.NewChatPromptTemplate(m.Messages, opts...)
}
