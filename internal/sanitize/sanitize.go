// Package sanitize strips characters that would corrupt a stored record.
//
// Every string leaf of a record has newline, carriage-return, and tab
// replaced by a space, other C0 controls and DEL replaced by a space,
// ASCII and typographic quotes deleted, space runs collapsed, and the
// result trimmed. Non-string leaves pass through and the record shape
// (keys, lengths, order) is preserved. The transform is total and
// idempotent.
package sanitize

import (
	"strings"

	"github.com/mesh-intelligence/intake/pkg/types"
)

// quotes lists the quote characters removed from strings.
var quotes = map[rune]bool{
	'"':      true,
	'\'':     true,
	'\u2018': true, // left single
	'\u2019': true, // right single
	'\u201A': true, // low single
	'\u201B': true, // reversed single
	'\u201C': true, // left double
	'\u201D': true, // right double
	'\u201E': true, // low double
	'\u201F': true, // reversed double
	'\u2032': true, // prime
	'\u2033': true, // double prime
}

// IsQuote reports whether r is removed by String.
func IsQuote(r rune) bool {
	return quotes[r]
}

// IsControl reports whether r is a C0 control character or DEL.
func IsControl(r rune) bool {
	return r < 0x20 || r == 0x7F
}

// String cleans a single string.
func String(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case IsControl(r) || r == ' ':
			pendingSpace = true
		case IsQuote(r):
			// Deleted without leaving a gap.
		default:
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Record returns a sanitized copy of r. The input is not modified.
func Record(r types.FormRecord) types.FormRecord {
	if r == nil {
		return nil
	}
	out := make(types.FormRecord, len(r))
	for k, v := range r {
		out[k] = Value(v)
	}
	return out
}

// Value sanitizes an arbitrary decoded value, recursing into maps and
// slices. Concrete map and slice types are kept.
func Value(v any) any {
	switch x := v.(type) {
	case string:
		return String(x)
	case types.FormRecord:
		return Record(x)
	case types.RowRecord:
		return row(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = Value(val)
		}
		return out
	case []types.RowRecord:
		out := make([]types.RowRecord, len(x))
		for i, r := range x {
			out[i] = row(r)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(x))
		for i, m := range x {
			out[i], _ = Value(m).(map[string]any)
		}
		return out
	case []string:
		out := make([]string, len(x))
		for i, s := range x {
			out[i] = String(s)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Value(item)
		}
		return out
	default:
		return v
	}
}

func row(r types.RowRecord) types.RowRecord {
	if r == nil {
		return nil
	}
	out := make(types.RowRecord, len(r))
	for k, v := range r {
		out[k] = Value(v)
	}
	return out
}
