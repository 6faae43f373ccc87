package llm

import "strings"

// RenderConversation flattens the most recent window turns into the
// transcript block embedded in prompts. Older turns are dropped.
func RenderConversation(turns []Message, window int) string {
	if window > 0 && len(turns) > window {
		turns = turns[len(turns)-window:]
	}
	var b strings.Builder
	for _, t := range turns {
		role := t.Role
		if role == "" {
			role = "user"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(t.Content))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
