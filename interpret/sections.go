package interpret

import (
	"strings"

	"github.com/samber/lo"
)

// SectionDelimiter starts a section of a structured chat reply.
const SectionDelimiter = "###"

// Section is one titled block of a chat reply.
type Section struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

var bracketStripper = strings.NewReplacer("[", "", "]", "")

// SplitSections splits a chat reply on SectionDelimiter. Each non-blank chunk becomes a section
// whose title is its first line without brackets. Replies with fewer than two sections return
// nil and are shown as plain text.
func SplitSections(text string) []Section {
	chunks := lo.Filter(strings.Split(text, SectionDelimiter), func(c string, _ int) bool {
		return strings.TrimSpace(c) != ""
	})
	if len(chunks) < 2 {
		return nil
	}
	return lo.Map(chunks, func(c string, _ int) Section {
		title, body, _ := strings.Cut(strings.TrimSpace(c), "\n")
		return Section{
			Title: strings.TrimSpace(bracketStripper.Replace(title)),
			Body:  strings.TrimSpace(body),
		}
	})
}
