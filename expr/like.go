package expr

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// LikeToRegexp translates a LIKE pattern into an anchored regular expression.
// % matches any run of characters and _ any single character. escape, when not
// empty, is a single character that makes the following character literal.
func LikeToRegexp(pattern, escape string) (*regexp.Regexp, error) {
	var esc rune = -1
	if escape != "" {
		if utf8.RuneCountInString(escape) != 1 {
			return nil, fmt.Errorf("%w: escape %q must be one character", ErrInvalidPattern, escape)
		}
		esc, _ = utf8.DecodeRuneInString(escape)
	}
	var b strings.Builder
	b.WriteString("(?s)^")
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == esc:
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		return nil, fmt.Errorf("%w: %q ends with the escape character", ErrInvalidPattern, pattern)
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
