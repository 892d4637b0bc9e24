package llm

import (
	"encoding/json"
	"strings"
)

// DecodeObject parses a completion reply that is expected to be a JSON object.
// It tries a strict parse first; on failure it scans for the first balanced
// top-level {...} block and parses that. Returns (nil, false) when nothing in
// the text decodes to an object; callers degrade to an empty result instead
// of failing the pass.
func DecodeObject(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		return obj, true
	}

	block, ok := firstObjectBlock(trimmed)
	if !ok {
		return nil, false
	}
	if err := json.Unmarshal([]byte(block), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// firstObjectBlock returns the first balanced {...} span in s, tracking string
// literals and escapes so braces inside values don't end the scan early.
func firstObjectBlock(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

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
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
