package gemini

import (
	"fmt"

	"github.com/safeclick/safeclick/internal/cast"

	"google.golang.org/genai"
)

var schemaTypes = map[string]genai.Type{
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
	"object":  genai.TypeObject,
}

// toSchema converts a JSON Schema document (as decoded from YAML) into genai.Schema.
// Supported keywords: type, description, enum, properties, required, items, minimum, maximum.
func toSchema(m map[string]any) (*genai.Schema, error) {
	if m == nil {
		return nil, nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		gt, known := schemaTypes[t]
		if !known {
			return nil, fmt.Errorf("unsupported type %q", t)
		}
		s.Type = gt
	}
	s.Description, _ = m["description"].(string)
	if enum, ok := cast.ToStringSlice(m["enum"]); ok {
		s.Enum = enum
	}
	if req, ok := cast.ToStringSlice(m["required"]); ok {
		s.Required = req
	}
	if v, ok := cast.ToFloat64(m["minimum"]); ok {
		s.Minimum = &v
	}
	if v, ok := cast.ToFloat64(m["maximum"]); ok {
		s.Maximum = &v
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			sub, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("property %q: not an object", name)
			}
			conv, err := toSchema(sub)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			s.Properties[name] = conv
		}
	}
	if raw, ok := m["items"]; ok {
		sub, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("items: not an object")
		}
		conv, err := toSchema(sub)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		s.Items = conv
	}
	return s, nil
}
