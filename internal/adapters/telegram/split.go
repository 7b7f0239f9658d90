package telegram

import "strings"

// MessageLimit задаёт максимальную длину сообщения Bot API в символах.
const MessageLimit = 4096

// SplitMessage режет ответ на части не длиннее limit символов.
// Части собираются из целых строк; строка длиннее лимита режется жёстко.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MessageLimit
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		parts   []string
		current []rune
	)
	flush := func() {
		if chunk := strings.Trim(string(current), "\n"); chunk != "" {
			parts = append(parts, chunk)
		}
		current = current[:0]
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		if len(current)+len(runes) <= limit {
			current = append(current, runes...)
			continue
		}
		flush()
		for len(runes) > limit {
			parts = append(parts, string(runes[:limit]))
			runes = runes[limit:]
		}
		current = append(current, runes...)
	}
	flush()
	return parts
}
