package safeclick

import (
	"errors"
	"fmt"
)

// Sentinel errors for template and registry operations.
// All use prefix "safeclick:" for identification. Callers should use errors.Is/errors.As.
var (
	ErrMissingVariable  = errors.New("safeclick: required template variable not provided")
	ErrTemplateRender   = errors.New("safeclick: template rendering failed")
	ErrTemplateParse    = errors.New("safeclick: template parsing failed")
	ErrInvalidPayload   = errors.New("safeclick: payload struct is invalid or missing prompt tags")
	ErrTemplateNotFound = errors.New("safeclick: template not found in registry")
	ErrInvalidManifest  = errors.New("safeclick: manifest file is malformed")
	ErrInvalidName      = errors.New("safeclick: invalid template name")
)

// VariableError wraps a sentinel error with variable and template context.
// Use errors.Is(err, ErrMissingVariable) and errors.As(err, &variableErr) to inspect.
type VariableError struct {
	Variable string
	Template string
	Err      error
}

// Error implements error.
func (e *VariableError) Error() string {
	return fmt.Sprintf("safeclick: variable %q in template %q: %v", e.Variable, e.Template, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/errors.As.
func (e *VariableError) Unwrap() error { return e.Err }

var _ error = (*VariableError)(nil)
