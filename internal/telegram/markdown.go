package telegram

import (
	"strings"
)

// SplitMessage cuts text into chunks of at most maxLen runes, preferring to
// break after a newline in the second half of a chunk.
func SplitMessage(text string, maxLen int) []string {
	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(runes) > maxLen {
		cut := maxLen
		for i := maxLen - 1; i > maxLen/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// FixMarkdown closes code fences and inline code spans the agent left open,
// so Telegram's legacy Markdown parser accepts the reply.
func FixMarkdown(text string) string {
	if strings.Count(text, "```")%2 != 0 {
		text += "\n```"
	}

	var sb strings.Builder
	sb.Grow(len(text) + 1)
	inFence, inCode := false, false

	for i := 0; i < len(text); i++ {
		if strings.HasPrefix(text[i:], "```") {
			if inCode {
				sb.WriteByte('`')
				inCode = false
			}
			inFence = !inFence
			sb.WriteString("```")
			i += 2
			continue
		}
		if !inFence && text[i] == '`' {
			inCode = !inCode
		}
		sb.WriteByte(text[i])
	}
	if inCode {
		sb.WriteByte('`')
	}
	return sb.String()
}

// truncate shortens text to maxLen runes, marking the cut.
func truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	const marker = "\n\n... (truncated)"
	return string(runes[:maxLen-len([]rune(marker))]) + marker
}
