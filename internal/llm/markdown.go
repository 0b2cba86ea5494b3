package llm

import "strings"

// StripCodeFence returns the body of the first ``` fenced block in text, with
// the language tag dropped. Text without a complete fence is returned trimmed.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)

	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}
	rest := trimmed[start+3:]

	// Language tag runs to the end of the opening line.
	newline := strings.IndexByte(rest, '\n')
	if newline < 0 {
		return trimmed
	}
	body := rest[newline+1:]

	end := strings.Index(body, "```")
	if end < 0 {
		return trimmed
	}
	return strings.TrimSpace(body[:end])
}
