package guard

import (
	"strings"
	"unicode/utf8"
)

// MaxParameterLength is the maximum length, in characters, of a string parameter
const MaxParameterLength = 10000

// Sanitize returns a copy of params with every string value stripped of ASCII
// control characters (except tab, LF and CR) and truncated to
// MaxParameterLength characters. Other values pass through unchanged.
// Sanitize never fails and is idempotent.
func Sanitize(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			out[k] = SanitizeString(s)
			continue
		}
		out[k] = v
	}
	return out
}

// SanitizeString applies the string rules of Sanitize to a single value.
// Bytes that are not valid UTF-8 are kept as they are and count as one
// character each.
func SanitizeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		// stripped bytes are ASCII and never occur inside a multibyte sequence
		if !isStrippedControl(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return truncateChars(b.String(), MaxParameterLength)
}

// truncateChars cuts s after max characters without re-encoding it
func truncateChars(s string, max int) string {
	chars := 0
	for i := 0; i < len(s); {
		if chars == max {
			return s[:i]
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		chars++
	}
	return s
}

// isStrippedControl matches 0x00-0x08, 0x0B, 0x0C, 0x0E-0x1F and 0x7F
func isStrippedControl(c byte) bool {
	switch {
	case c <= 0x08:
		return true
	case c == 0x0B, c == 0x0C:
		return true
	case c >= 0x0E && c <= 0x1F:
		return true
	case c == 0x7F:
		return true
	default:
		return false
	}
}
