package telegram

import "strings"

// maxMessageRunes is the Bot API limit for message text length.
const maxMessageRunes = 4096

// splitMessage splits text into chunks that each fit within the Bot API
// message length limit, preferring line boundaries. A single line longer
// than the limit is force-split.
func splitMessage(text string) []string {
	if len([]rune(text)) <= maxMessageRunes {
		return []string{text}
	}

	var chunks []string
	var current []rune

	for _, line := range strings.Split(text, "\n") {
		lineRunes := []rune(line + "\n")

		if len(current)+len(lineRunes) > maxMessageRunes {
			if len(current) > 0 {
				chunks = append(chunks, strings.TrimRight(string(current), "\n"))
				current = current[:0]
			}
			// A single oversized line is split mid-line.
			for len(lineRunes) > maxMessageRunes {
				chunks = append(chunks, string(lineRunes[:maxMessageRunes]))
				lineRunes = lineRunes[maxMessageRunes:]
			}
		}
		current = append(current, lineRunes...)
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.TrimRight(string(current), "\n"))
	}

	return chunks
}
