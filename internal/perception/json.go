package perception

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject returns the first balanced {...} span of s that parses as
// JSON. Models often wrap their JSON in prose or code fences.
func ExtractJSONObject(s string) (string, bool) {
	if t := strings.TrimSpace(s); strings.HasPrefix(t, "{") && json.Valid([]byte(t)) {
		return t, true
	}
	for from := 0; from < len(s); {
		start, end := nextObject(s, from)
		if start < 0 {
			break
		}
		if obj := s[start:end]; json.Valid([]byte(obj)) {
			return obj, true
		}
		from = end
	}
	return "", false
}

// nextObject finds the next brace-balanced span at or after from. Quotes are
// only honoured inside a span, so apostrophes in surrounding prose are
// harmless. Byte iteration is safe: UTF-8 continuation bytes never equal
// ASCII delimiters.
func nextObject(s string, from int) (start, end int) {
	start = -1
	depth := 0
	quoted, escaped := false, false
	for i := from; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case quoted:
			escaped = c == '\\'
			quoted = c != '"'
		case c == '"' && depth > 0:
			quoted = true
		case c == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case c == '}' && depth > 0:
			depth--
			if depth == 0 {
				return start, i + 1
			}
		}
	}
	return -1, -1
}
