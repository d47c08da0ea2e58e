package pipeline

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoObject = errors.New("no balanced {...} found")

// ExtractObject returns the first balanced {...} span in s that is valid JSON,
// skipping markdown fences and surrounding prose, including prose that itself
// contains braces. When no span is valid JSON the first balanced span is
// returned so the caller can report why it failed to decode.
func ExtractObject(s string) (string, error) {
	s = strings.TrimSpace(s)

	first := ""
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end, ok := balancedEnd(s, start); ok {
			span := s[start : end+1]
			if json.Valid([]byte(span)) {
				return span, nil
			}
			if first == "" {
				first = span
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	if first == "" {
		return "", errNoObject
	}
	return first, nil
}

// balancedEnd returns the index of the brace closing the one at start.
// Braces inside strings are ignored.
func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
