package jsparse

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// DecodeIdentifier resolves `\uXXXX` and `\u{X...}` escapes, which esbuild
// emits for non-ASCII identifiers under its default ASCII charset. Malformed
// escapes are kept as written.
func DecodeIdentifier(raw string) string {
	if !strings.Contains(raw, `\u`) {
		return raw
	}
	var out strings.Builder
	out.Grow(len(raw))
	for i := 0; i < len(raw); {
		if !strings.HasPrefix(raw[i:], `\u`) {
			out.WriteByte(raw[i])
			i++
			continue
		}
		r, width, ok := unicodeEscape(raw[i+2:])
		if !ok {
			out.WriteByte(raw[i])
			i++
			continue
		}
		out.WriteRune(r)
		i += 2 + width
	}
	return out.String()
}

func unicodeEscape(rest string) (rune, int, bool) {
	var digits string
	var width int
	if strings.HasPrefix(rest, "{") {
		closeAt := strings.IndexByte(rest, '}')
		if closeAt < 2 {
			return 0, 0, false
		}
		digits, width = rest[1:closeAt], closeAt+1
	} else {
		if len(rest) < 4 {
			return 0, 0, false
		}
		digits, width = rest[:4], 4
	}
	value, err := strconv.ParseUint(digits, 16, 32)
	if err != nil || !utf8.ValidRune(rune(value)) {
		return 0, 0, false
	}
	return rune(value), width, true
}
