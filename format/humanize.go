// Package format renders machine tokens for display.
package format

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// HumanizeEnum turns a SNAKE_CASE token into space separated title case,
// e.g. "COURSE_REGISTRATION" becomes "Course Registration". Runs of
// underscores and whitespace collapse into a single space.
func HumanizeEnum(value string) string {
	words := strings.Fields(strings.ReplaceAll(value, "_", " "))
	if len(words) == 0 {
		return ""
	}
	// Casers carry state and are not safe for concurrent use.
	upper := cases.Upper(language.Und)
	lower := cases.Lower(language.Und)
	for i, w := range words {
		_, size := utf8.DecodeRuneInString(w)
		words[i] = upper.String(w[:size]) + lower.String(w[size:])
	}
	return strings.Join(words, " ")
}
