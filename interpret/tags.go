package interpret

import (
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/safeclick/safeclick/threat"
)

// VideoTags are the sections of a video audit, in report order.
var VideoTags = []string{"VERDICT", "CONFIDENCE", "VISUAL_INTEGRITY", "PSYCHOLOGICAL_ANALYSIS", "TECHNICAL_FLAGS"}

// TagValue is the captured body of one declared tag.
type TagValue struct {
	Tag   string
	Value string
}

// Tags is a ParseTags result, ordered as the tags were declared.
type Tags []TagValue

// Get returns the value of tag, or threat.DataUnavailable when tag was not declared.
func (ts Tags) Get(tag string) string {
	if tv, ok := lo.Find(ts, func(tv TagValue) bool { return tv.Tag == tag }); ok {
		return tv.Value
	}
	return threat.DataUnavailable
}

// ParseTags extracts the body of each declared tag from free text. A tag starts at its first
// exact "[TAG]" marker (an optional ':' follows) and runs to the next declared marker or the
// end of text. Brackets that are not declared markers are ordinary content. Values are trimmed;
// tags that do not appear hold threat.DataUnavailable.
func ParseTags(text string, tags []string) Tags {
	markers := markerOffsets(text, tags)
	out := make(Tags, 0, len(tags))
	for _, tag := range tags {
		value := threat.DataUnavailable
		marker := "[" + tag + "]"
		if start := strings.Index(text, marker); start >= 0 {
			from := start + len(marker)
			if strings.HasPrefix(text[from:], ":") {
				from++
			}
			to := len(text)
			if next, ok := lo.Find(markers, func(off int) bool { return off >= from }); ok {
				to = next
			}
			value = strings.TrimSpace(text[from:to])
		}
		out = append(out, TagValue{Tag: tag, Value: value})
	}
	return out
}

// markerOffsets returns the sorted start offsets of every declared marker occurrence.
func markerOffsets(text string, tags []string) []int {
	var offs []int
	for _, tag := range lo.Uniq(tags) {
		marker := "[" + tag + "]"
		for i := 0; ; {
			j := strings.Index(text[i:], marker)
			if j < 0 {
				break
			}
			offs = append(offs, i+j)
			i += j + len(marker)
		}
	}
	slices.Sort(offs)
	return slices.Compact(offs)
}

// ParseVideoReport reads a video audit. It never fails: absent sections are threat.DataUnavailable.
func ParseVideoReport(text string) threat.VideoForensicReport {
	tags := ParseTags(text, VideoTags)
	return threat.VideoForensicReport{
		Verdict:               tags.Get("VERDICT"),
		Confidence:            tags.Get("CONFIDENCE"),
		VisualIntegrity:       tags.Get("VISUAL_INTEGRITY"),
		PsychologicalAnalysis: tags.Get("PSYCHOLOGICAL_ANALYSIS"),
		TechnicalFlags:        tags.Get("TECHNICAL_FLAGS"),
	}
}
