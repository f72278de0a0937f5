package safeclick

import (
	"fmt"
	"reflect"
	"strings"
	"text/template"
	"unicode/utf8"
)

// defaultFuncMap returns the helpers available to every message template.
func defaultFuncMap(tc TokenCounter) template.FuncMap {
	if tc == nil {
		tc = &CharFallbackCounter{}
	}
	return template.FuncMap{
		"truncate_chars":  truncateChars,
		"truncate_tokens": makeTruncateTokens(tc),
		"join":            join,
		"default":         defaultValue,
	}
}

// truncateChars cuts text to at most maxChars runes.
func truncateChars(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	return string([]rune(text)[:maxChars])
}

// makeTruncateTokens binds tc into a helper that cuts text to the longest rune prefix within maxTokens.
func makeTruncateTokens(tc TokenCounter) func(string, int) (string, error) {
	return func(text string, maxTokens int) (string, error) {
		if maxTokens <= 0 {
			return "", nil
		}
		total, err := tc.Count(text)
		if err != nil {
			return "", err
		}
		if total <= maxTokens {
			return text, nil
		}
		runes := []rune(text)
		keep, limit := 0, len(runes)
		for keep < limit {
			mid := (keep + limit + 1) / 2
			n, err := tc.Count(string(runes[:mid]))
			if err != nil {
				return "", err
			}
			if n <= maxTokens {
				keep = mid
			} else {
				limit = mid - 1
			}
		}
		return string(runes[:keep]), nil
	}
}

// join renders a slice of strings (or of any values via %v) separated by sep.
func join(sep string, items any) (string, error) {
	if items == nil {
		return "", nil
	}
	if ss, ok := items.([]string); ok {
		return strings.Join(ss, sep), nil
	}
	v := reflect.ValueOf(items)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return "", fmt.Errorf("join: expected a slice, got %T", items)
	}
	parts := make([]string, v.Len())
	for i := range v.Len() {
		parts[i] = fmt.Sprint(v.Index(i).Interface())
	}
	return strings.Join(parts, sep), nil
}

// defaultValue returns fallback when value is nil or the zero value of its type.
func defaultValue(fallback, value any) any {
	if value == nil {
		return fallback
	}
	if reflect.ValueOf(value).IsZero() {
		return fallback
	}
	return value
}
