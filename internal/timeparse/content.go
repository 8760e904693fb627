package timeparse

import "strings"

// boilerplatePhrases are scanned in order; the first one found anywhere in
// the text is removed. Order matters: longer phrases come before their
// prefixes so "remind me to" wins over "remind me".
var boilerplatePhrases = []string{
	"remind me to",
	"remind me",
	"set a reminder to",
	"set reminder",
	"set a reminder for",
	"reminder to",
	"reminder for",
}

// ExtractContent strips the first matching boilerplate phrase from the
// text and returns the trimmed remainder as reminder content. This is a
// single best-effort edit: if nothing matches, or stripping leaves an
// empty string, the original text is returned unchanged.
func ExtractContent(text string) string {
	lower := strings.ToLower(text)
	for _, phrase := range boilerplatePhrases {
		idx := strings.Index(lower, phrase)
		if idx < 0 {
			continue
		}
		content := strings.TrimSpace(text[:idx] + text[idx+len(phrase):])
		if content == "" {
			return text
		}
		return content
	}
	return text
}
