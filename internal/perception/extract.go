package perception

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls the first parseable JSON object out of raw model
// output. Models wrap JSON in markdown fences or surround it with prose;
// this tries, in order: the whole string, a fence-stripped string, and
// every balanced top-level {...} span.
func ExtractJSON(raw string, out interface{}) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return fmt.Errorf("empty model output")
	}

	if err := json.Unmarshal([]byte(s), out); err == nil {
		return nil
	}

	stripped := stripMarkdownFence(s)
	if err := json.Unmarshal([]byte(stripped), out); err == nil {
		return nil
	}

	for _, candidate := range balancedObjects(s) {
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no parseable JSON object in model output")
}

// stripMarkdownFence removes ```json ... ``` wrapping.
func stripMarkdownFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// balancedObjects returns every balanced top-level {...} span, respecting
// string literals and escapes.
func balancedObjects(s string) []string {
	var spans []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				if depth == 0 {
					start = i
				}
				depth++
			}
		case '}':
			if !inString && depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					spans = append(spans, s[start:i+1])
					start = -1
				}
			}
		}
	}
	return spans
}
