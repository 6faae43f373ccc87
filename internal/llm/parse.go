package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fieldRe = regexp.MustCompile(`"([^"]+)"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// ParseObject decodes a model completion into a flat object. Code
// fences are stripped first; if the payload still fails to decode, a
// best-effort regex pass recovers the string fields. The zero map is
// returned rather than an error so a garbled completion degrades into
// missing keys instead of a failed turn.
func ParseObject(raw json.RawMessage) map[string]any {
	text := StripFences(string(raw))
	if text == "" {
		return map[string]any{}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj != nil {
		return obj
	}
	obj = map[string]any{}
	for _, m := range fieldRe.FindAllStringSubmatch(text, -1) {
		var val string
		if err := json.Unmarshal([]byte(`"`+m[2]+`"`), &val); err != nil {
			val = m[2]
		}
		obj[m[1]] = val
	}
	return obj
}

// ParseInto decodes a completion into dst after stripping fences.
func ParseInto(raw json.RawMessage, dst any) error {
	return json.Unmarshal([]byte(StripFences(string(raw))), dst)
}

// StripFences removes markdown code fences and a leading "json"
// language tag from a completion.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "json"))
	}
	return strings.TrimSpace(text)
}

// Str reads a string field from a parsed object, tolerating absent or
// non-string values.
func Str(obj map[string]any, key string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}
