package safeclick

import (
	"fmt"
	"strings"
)

const maxNameLen = 128

// ValidateName checks a template name and optional environment used for registry lookup.
func ValidateName(name, env string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if err := checkSegment(name); err != nil {
		return err
	}
	if env == "" {
		return nil
	}
	return checkSegment(env)
}

// ValidateID checks a manifest id. An empty id is allowed; registries fill it from the file name.
func ValidateID(id string) error {
	if id == "" {
		return nil
	}
	return checkSegment(id)
}

// checkSegment rejects values that could escape a directory or break a cache key.
func checkSegment(s string) error {
	switch {
	case len(s) > maxNameLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, maxNameLen)
	case strings.ContainsAny(s, `/\`), strings.Contains(s, ".."), strings.HasPrefix(s, "."):
		return fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: control character in %q", ErrInvalidName, s)
		}
	}
	return nil
}
