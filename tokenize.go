package linechunk

import (
	"strings"
	"unicode"
)

// Tokenize splits a line on runs of whitespace, dropping leading and
// trailing whitespace. The line terminator counts as whitespace, so lines
// from Lines can be passed directly. A blank line yields an empty slice.
func Tokenize(line string) []string {
	return strings.FieldsFunc(line, isSpace)
}

// isSpace extends unicode.IsSpace with the ASCII information separators
// (U+001C..U+001F), which corpus tooling conventionally treats as
// whitespace.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}
