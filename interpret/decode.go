package interpret

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/safeclick/safeclick/threat"
)

// ErrCoreOffline is returned for any structured answer that cannot be trusted in full.
var ErrCoreOffline = errors.New("interpret: intelligence core offline")

// DecodeAnalysis parses a structured threat verdict. A surrounding ```json fence is tolerated.
// Malformed JSON, a missing or null required field, an out-of-range score or an unknown
// threat level fail the whole answer with ErrCoreOffline. Optional lists default to empty.
func DecodeAnalysis(text string) (*threat.AnalysisResult, error) {
	raw := []byte(stripFence(text))
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCoreOffline, err)
	}
	for _, name := range threat.RequiredFields {
		v, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return nil, fmt.Errorf("%w: missing field %q", ErrCoreOffline, name)
		}
	}
	var res threat.AnalysisResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCoreOffline, err)
	}
	if err := threat.ValidateResult(&res); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCoreOffline, err)
	}
	res.Indicators = cleanList(res.Indicators)
	res.LinguisticManipulation = cleanList(res.LinguisticManipulation)
	res.PsychologicalTriggers = cleanList(res.PsychologicalTriggers)
	return &res, nil
}

// cleanList trims entries and drops blank ones. The result is never nil.
func cleanList(items []string) []string {
	return lo.Compact(lo.Map(items, func(s string, _ int) string { return strings.TrimSpace(s) }))
}

// stripFence removes a Markdown code fence (``` or ```json) wrapping the whole text.
func stripFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	_, rest, ok := strings.Cut(s, "\n")
	if !ok {
		return s
	}
	rest = strings.TrimSpace(rest)
	return strings.TrimSpace(strings.TrimSuffix(rest, "```"))
}
