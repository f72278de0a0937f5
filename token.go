package safeclick

import "unicode/utf8"

// DefaultCharsPerToken is the rune-to-token ratio used when no tokenizer is configured.
const DefaultCharsPerToken = 4

// TokenCounter sizes analyst-submitted URLs, emails, SMS bodies and SOC chat
// turns for the truncate_tokens template function.
// A provider tokenizer can replace the rune estimate via WithTokenCounter.
type TokenCounter interface {
	Count(text string) (int, error)
}

// CharFallbackCounter estimates tokens from the rune count.
// A non-positive CharsPerToken means DefaultCharsPerToken.
type CharFallbackCounter struct {
	CharsPerToken int
}

func (c *CharFallbackCounter) ratio() int {
	if c.CharsPerToken <= 0 {
		return DefaultCharsPerToken
	}
	return c.CharsPerToken
}

// Count returns the rune count divided by the ratio, rounded up.
func (c *CharFallbackCounter) Count(text string) (int, error) {
	cpt := c.ratio()
	return (utf8.RuneCountInString(text) + cpt - 1) / cpt, nil
}
