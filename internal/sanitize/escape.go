package sanitize

import "strings"

var whitespaceEscaper = strings.NewReplacer(
	"\n", `\n`,
	"\t", `\t`,
	"\r", `\r`,
)

// EscapeWhitespace turns literal newline, tab, and carriage-return bytes
// into their two-character JSON escapes. It is the fallback applied to
// stored text that fails to parse because a writer embedded raw
// whitespace inside a string value. Whitespace between tokens is escaped
// too, so the fallback only helps documents written on a single line.
func EscapeWhitespace(raw string) string {
	return whitespaceEscaper.Replace(raw)
}
